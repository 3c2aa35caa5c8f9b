package allocation

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"markalloc/internal/bootstrap/logging"
	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

type promotionAuditDetails struct {
	PreviousStatus domain.Status `json:"previous_status"`
	NewStatus      domain.Status `json:"new_status"`
	Rank           int           `json:"rank"`
}

// PromoteWaitlist considers up to SlotCount waitlisted allocations by rank and approves
// those that keep the subject's quotas satisfied. Each check sees the approvals made
// earlier in the same batch. A non-compliant candidate is skipped, not an error.
func (s *Service) PromoteWaitlist(ctx context.Context, input PromoteWaitlistInput) (PromotionResult, error) {
	if err := s.checkReady(ctx); err != nil {
		return PromotionResult{}, err
	}
	if input.SlotCount <= 0 {
		return PromotionResult{}, errs.InvalidInput("slot count must be positive, got %d", input.SlotCount)
	}

	ctx = logging.WithScope(logging.WithAttrs(ctx, slog.String("component", "usecase.allocation")), input.CycleID, input.SubjectID)
	ctx, span := s.tracer.Start(ctx, "allocation.promote_waitlist", trace.WithAttributes(
		attribute.Int64("cycle_id", int64(input.CycleID)),
		attribute.Int64("subject_id", int64(input.SubjectID)),
		attribute.Int("slot_count", input.SlotCount),
	))
	defer span.End()
	ctx = tagSpan(ctx, span)

	unlock := s.locks.lock(input.CycleID)
	defer unlock()

	if _, err := s.loadCycle(ctx, input.CycleID); err != nil {
		return PromotionResult{}, err
	}
	if _, err := s.loadSubject(ctx, input.SubjectID); err != nil {
		return PromotionResult{}, err
	}

	result := PromotionResult{AllocationIDs: []uint64{}}
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		waitlisted, err := s.repo.ListAllocations(txCtx, ports.AllocationFilter{
			CycleID:   input.CycleID,
			SubjectID: input.SubjectID,
			Status:    domain.StatusWaitlisted,
			Limit:     input.SlotCount,
		})
		if err != nil {
			return errs.Wrap(err, "list waitlisted allocations")
		}
		if len(waitlisted) == 0 {
			return nil
		}

		candidates, err := s.repo.ListExaminersByIDs(txCtx, examinerIDs(waitlisted))
		if err != nil {
			return errs.Wrap(err, "list waitlisted examiners")
		}
		members := make(map[uint64]domain.Member, len(candidates))
		for _, e := range candidates {
			members[e.ID] = e.Member()
		}

		now := s.now()
		for _, row := range waitlisted {
			// Re-read the approved set so earlier promotions in this batch count.
			quotas, err := s.loadQuotaSnapshot(txCtx, input.CycleID, input.SubjectID)
			if err != nil {
				return err
			}
			member, ok := members[row.ExaminerID]
			if !ok {
				member = domain.Member{ExaminerID: row.ExaminerID}
			}
			if violations := quotas.evaluate([]domain.Member{member}); len(violations) > 0 {
				result.Skipped++
				logging.Debug(txCtx, "waitlist candidate skipped",
					slog.Uint64("allocation_id", row.ID),
					slog.Int("violations", len(violations)),
				)
				continue
			}

			if err := s.repo.UpdateAllocationStatus(txCtx, row.ID, domain.StatusApproved, now); err != nil {
				return errs.Wrapf(err, "approve allocation %d", row.ID)
			}
			if err := s.repo.AppendAudit(txCtx, ports.AuditEntryCreate{
				ActionType:        domain.AuditWaitlistPromotion,
				PerformedByUserID: input.ActingUserID,
				CycleID:           input.CycleID,
				SubjectID:         uint64Ptr(input.SubjectID),
				AllocationID:      uint64Ptr(row.ID),
				ExaminerID:        uint64Ptr(row.ExaminerID),
				Details: promotionAuditDetails{
					PreviousStatus: domain.StatusWaitlisted,
					NewStatus:      domain.StatusApproved,
					Rank:           row.Rank,
				},
				CreatedAt: now,
			}); err != nil {
				return err
			}
			result.Promoted++
			result.AllocationIDs = append(result.AllocationIDs, row.ID)
		}
		return nil
	}); err != nil {
		logging.Warn(ctx, "waitlist promotion failed", slog.Any("err", errs.Loggable(err)))
		return PromotionResult{}, err
	}

	switch {
	case result.Promoted == 0 && result.Skipped == 0:
		result.Message = "No waitlisted examiners to promote"
	default:
		result.Message = fmt.Sprintf("Promoted %d of %d requested slots", result.Promoted, input.SlotCount)
	}

	logging.Info(ctx, "waitlist promotion completed",
		slog.Int("promoted", result.Promoted),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}
