package cmd

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"markalloc/internal/bootstrap"
	"markalloc/internal/bootstrap/logging"
	"markalloc/internal/errs"
	"markalloc/internal/usecase/allocation"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Inspect and advance marking cycles",
}

var cycleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a marking cycle",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cycleID, _ := cmd.Flags().GetUint64("cycle")
		item, err := svc.GetCycle(ctx, cycleID)
		if err != nil {
			logging.Error(ctx, "get cycle failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "get cycle")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "cycle=%d year=%d status=%s total_required=%d experience_ratio=%.2f\n",
			item.ID, item.Year, item.Status, item.TotalRequired, item.ExperienceRatio); err != nil {
			return errs.Wrap(err, "write cycle output")
		}
		return nil
	}),
}

var cycleCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close an ALLOCATED cycle",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cycleID, _ := cmd.Flags().GetUint64("cycle")
		item, err := svc.CloseCycle(ctx, allocation.CloseCycleInput{CycleID: cycleID, ActingUserID: actingUserID})
		if err != nil {
			logging.Error(ctx, "close cycle failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "close cycle")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "cycle %d is now %s\n", item.ID, item.Status); err != nil {
			return errs.Wrap(err, "write close output")
		}
		return nil
	}),
}

var cycleArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Fold approved allocations of a CLOSED cycle into marking history",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cycleID, _ := cmd.Flags().GetUint64("cycle")
		result, err := svc.Archive(ctx, allocation.ArchiveInput{CycleID: cycleID, ActingUserID: actingUserID})
		if err != nil {
			logging.Error(ctx, "archive cycle failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "archive cycle")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (history updated=%d created=%d)\n",
			result.Message, result.UpdatedHistoryCount, result.CreatedHistoryCount); err != nil {
			return errs.Wrap(err, "write archive output")
		}
		return nil
	}),
}

var cycleNotifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notify approved examiners and open acceptance records",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cycleID, _ := cmd.Flags().GetUint64("cycle")
		input := allocation.NotifyInput{CycleID: cycleID, ActingUserID: actingUserID}
		if raw, _ := cmd.Flags().GetString("deadline"); raw != "" {
			deadline, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return errs.WithKind(err, errs.KindInvalidInput, "deadline must be RFC3339")
			}
			input.ResponseDeadline = &deadline
		}

		result, err := svc.NotifyApproved(ctx, input)
		if err != nil {
			logging.Error(ctx, "notify approved failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "notify approved")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (already notified=%d, deadline=%s)\n",
			result.Message, result.AlreadyNotified, result.ResponseDeadline.Format(time.RFC3339)); err != nil {
			return errs.Wrap(err, "write notify output")
		}
		return nil
	}),
}

var cycleAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit trail of a cycle",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		query := allocation.AuditQuery{}
		query.CycleID, _ = cmd.Flags().GetUint64("cycle")
		query.SubjectID, _ = cmd.Flags().GetUint64("subject")
		query.AllocationID, _ = cmd.Flags().GetUint64("allocation")
		items, err := svc.ListAudit(ctx, query)
		if err != nil {
			logging.Error(ctx, "list audit failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list audit")
		}

		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{
				item.CreatedAt.Format(time.RFC3339),
				string(item.ActionType),
				strconv.FormatUint(item.PerformedByUserID, 10),
				optionalID(item.SubjectID),
				optionalID(item.AllocationID),
				string(item.Details),
			})
		}
		return renderTable(cmd.OutOrStdout(), []string{"AT", "ACTION", "USER", "SUBJECT", "ALLOCATION", "DETAILS"}, rows)
	}),
}

var cycleAcceptancesCmd = &cobra.Command{
	Use:   "acceptances",
	Short: "List acceptance records of a cycle",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cycleID, _ := cmd.Flags().GetUint64("cycle")
		items, err := svc.ListAcceptances(ctx, cycleID)
		if err != nil {
			logging.Error(ctx, "list acceptances failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list acceptances")
		}

		rows := make([][]string, 0, len(items))
		for _, item := range items {
			rows = append(rows, []string{
				strconv.FormatUint(item.AllocationID, 10),
				strconv.FormatUint(item.ExaminerID, 10),
				item.Status,
				item.NotifiedAt.Format(time.RFC3339),
				item.ResponseDeadline.Format(time.RFC3339),
			})
		}
		return renderTable(cmd.OutOrStdout(), []string{"ALLOCATION", "EXAMINER", "STATUS", "NOTIFIED", "DEADLINE"}, rows)
	}),
}

func optionalID(v *uint64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(*v, 10)
}

func init() {
	rootCmd.AddCommand(cycleCmd)
	for _, c := range []*cobra.Command{cycleShowCmd, cycleCloseCmd, cycleArchiveCmd, cycleNotifyCmd, cycleAuditCmd, cycleAcceptancesCmd} {
		cycleCmd.AddCommand(c)
		c.Flags().Uint64("cycle", 0, "Marking cycle id")
		_ = c.MarkFlagRequired("cycle")
	}

	cycleNotifyCmd.Flags().String("deadline", "", "Response deadline (RFC3339); defaults to now + allocation.response_window")
	cycleAuditCmd.Flags().Uint64("subject", 0, "Only entries of this subject")
	cycleAuditCmd.Flags().Uint64("allocation", 0, "Only entries of this allocation")
}
