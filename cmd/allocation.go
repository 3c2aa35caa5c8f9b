package cmd

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"markalloc/internal/bootstrap"
	"markalloc/internal/bootstrap/logging"
	"markalloc/internal/errs"
	"markalloc/internal/usecase/allocation"
)

var allocationCmd = &cobra.Command{
	Use:   "allocation",
	Short: "Run and manage examiner allocations",
}

var allocationRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the allocation for one subject of an OPEN cycle",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cycleID, _ := cmd.Flags().GetUint64("cycle")
		subjectID, _ := cmd.Flags().GetUint64("subject")
		result, err := svc.RunAllocation(ctx, allocation.RunAllocationInput{
			CycleID:      cycleID,
			SubjectID:    subjectID,
			ActingUserID: actingUserID,
		})
		if err != nil {
			logging.Error(ctx, "run allocation failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "run allocation")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\napproved=%d waitlisted=%d rejected=%d run_id=%s\n",
			result.Message, result.Approved, result.Waitlisted, result.Rejected, result.RunID); err != nil {
			return errs.Wrap(err, "write run output")
		}
		return nil
	}),
}

var allocationPromoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote waitlisted examiners in rank order",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cycleID, _ := cmd.Flags().GetUint64("cycle")
		subjectID, _ := cmd.Flags().GetUint64("subject")
		slots, _ := cmd.Flags().GetInt("slots")
		result, err := svc.PromoteWaitlist(ctx, allocation.PromoteWaitlistInput{
			CycleID:      cycleID,
			SubjectID:    subjectID,
			SlotCount:    slots,
			ActingUserID: actingUserID,
		})
		if err != nil {
			logging.Error(ctx, "promote waitlist failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "promote waitlist")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (skipped=%d)\n", result.Message, result.Skipped); err != nil {
			return errs.Wrap(err, "write promote output")
		}
		return nil
	}),
}

var allocationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List allocations of a cycle by rank",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cycleID, _ := cmd.Flags().GetUint64("cycle")
		subjectID, _ := cmd.Flags().GetUint64("subject")
		status, _ := cmd.Flags().GetString("status")
		items, err := svc.ListAllocations(ctx, allocation.ListAllocationsInput{
			CycleID:   cycleID,
			SubjectID: subjectID,
			Status:    status,
		})
		if err != nil {
			logging.Error(ctx, "list allocations failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list allocations")
		}
		return renderAllocations(cmd.OutOrStdout(), items)
	}),
}

var allocationComplianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Check approved allocations against the quota rules",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cycleID, _ := cmd.Flags().GetUint64("cycle")
		subjectID, _ := cmd.Flags().GetUint64("subject")
		report, err := svc.QuotaCompliance(ctx, cycleID, subjectID)
		if err != nil {
			logging.Error(ctx, "quota compliance failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "quota compliance")
		}
		return renderCompliance(cmd.OutOrStdout(), report)
	}),
}

var allocationOverrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manually promote or demote one allocation",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		allocationID, _ := cmd.Flags().GetUint64("id")
		action, _ := cmd.Flags().GetString("action")
		reason, _ := cmd.Flags().GetString("reason")
		item, err := svc.Override(ctx, allocation.OverrideInput{
			AllocationID: allocationID,
			Action:       action,
			ActingUserID: actingUserID,
			Reason:       reason,
		})
		if err != nil {
			logging.Error(ctx, "override allocation failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "override allocation")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "allocation %d (%s) is now %s\n", item.ID, item.ExaminerName, item.Status); err != nil {
			return errs.Wrap(err, "write override output")
		}
		return nil
	}),
}

var allocationQuotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Manage quota rules of a cycle subject",
}

var allocationQuotaSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or replace one quota rule",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		input := allocation.SetQuotaInput{}
		input.CycleID, _ = cmd.Flags().GetUint64("cycle")
		input.SubjectID, _ = cmd.Flags().GetUint64("subject")
		input.QuotaType, _ = cmd.Flags().GetString("type")
		input.QuotaKey, _ = cmd.Flags().GetString("key")
		if cmd.Flags().Changed("min") {
			v, _ := cmd.Flags().GetInt("min")
			input.MinCount = &v
		}
		if cmd.Flags().Changed("max") {
			v, _ := cmd.Flags().GetInt("max")
			input.MaxCount = &v
		}
		if cmd.Flags().Changed("percentage") {
			v, _ := cmd.Flags().GetFloat64("percentage")
			input.Percentage = &v
		}

		item, err := svc.SetQuota(ctx, input)
		if err != nil {
			logging.Error(ctx, "set quota failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "set quota")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "saved quota: %s\n", item); err != nil {
			return errs.Wrap(err, "write quota output")
		}
		return nil
	}),
}

var allocationQuotaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List quota rules of a cycle subject",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cycleID, _ := cmd.Flags().GetUint64("cycle")
		subjectID, _ := cmd.Flags().GetUint64("subject")
		items, err := svc.ListQuotas(ctx, cycleID, subjectID)
		if err != nil {
			logging.Error(ctx, "list quotas failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list quotas")
		}

		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{
				strconv.FormatUint(item.ID, 10),
				string(item.QuotaType),
				item.QuotaKey,
				optionalInt(item.MinCount),
				optionalInt(item.MaxCount),
				optionalFloat(item.Percentage),
			})
		}
		return renderTable(cmd.OutOrStdout(), []string{"ID", "TYPE", "KEY", "MIN", "MAX", "PERCENT"}, rows)
	}),
}

func init() {
	rootCmd.AddCommand(allocationCmd)
	allocationCmd.AddCommand(allocationRunCmd)
	allocationCmd.AddCommand(allocationPromoteCmd)
	allocationCmd.AddCommand(allocationListCmd)
	allocationCmd.AddCommand(allocationComplianceCmd)
	allocationCmd.AddCommand(allocationOverrideCmd)
	allocationCmd.AddCommand(allocationQuotaCmd)
	allocationQuotaCmd.AddCommand(allocationQuotaSetCmd)
	allocationQuotaCmd.AddCommand(allocationQuotaListCmd)

	for _, c := range []*cobra.Command{allocationRunCmd, allocationPromoteCmd, allocationComplianceCmd, allocationQuotaSetCmd, allocationQuotaListCmd} {
		c.Flags().Uint64("cycle", 0, "Marking cycle id")
		c.Flags().Uint64("subject", 0, "Subject id")
		_ = c.MarkFlagRequired("cycle")
		_ = c.MarkFlagRequired("subject")
	}

	allocationPromoteCmd.Flags().Int("slots", 0, "Number of waitlisted examiners to consider")
	_ = allocationPromoteCmd.MarkFlagRequired("slots")

	allocationListCmd.Flags().Uint64("cycle", 0, "Marking cycle id")
	allocationListCmd.Flags().Uint64("subject", 0, "Subject id (all subjects when omitted)")
	allocationListCmd.Flags().String("status", "", "Filter by status (APPROVED|WAITLISTED)")
	_ = allocationListCmd.MarkFlagRequired("cycle")

	allocationOverrideCmd.Flags().Uint64("id", 0, "Allocation id")
	allocationOverrideCmd.Flags().String("action", "", "force-approve, force-decline, promote or demote")
	allocationOverrideCmd.Flags().String("reason", "", "Reason recorded in the audit trail")
	_ = allocationOverrideCmd.MarkFlagRequired("id")
	_ = allocationOverrideCmd.MarkFlagRequired("action")

	allocationQuotaSetCmd.Flags().String("type", "", "REGION or GENDER")
	allocationQuotaSetCmd.Flags().String("key", "", "Region or gender value")
	allocationQuotaSetCmd.Flags().Int("min", 0, "Minimum approved count")
	allocationQuotaSetCmd.Flags().Int("max", 0, "Maximum approved count")
	allocationQuotaSetCmd.Flags().Float64("percentage", 0, "Minimum share of approved, in percent (floor only)")
	_ = allocationQuotaSetCmd.MarkFlagRequired("type")
	_ = allocationQuotaSetCmd.MarkFlagRequired("key")
}
