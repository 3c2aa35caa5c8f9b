package allocation

import (
	"context"
	"log/slog"
	"strings"

	"markalloc/internal/bootstrap/logging"
	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

type overrideAuditDetails struct {
	PreviousStatus domain.Status `json:"previous_status"`
	NewStatus      domain.Status `json:"new_status"`
	Reason         string        `json:"reason,omitempty"`
}

// Override applies an administrative status change to one allocation. Quotas are not
// consulted. Every call writes an audit row, including calls that leave the status unchanged.
func (s *Service) Override(ctx context.Context, input OverrideInput) (AllocationItem, error) {
	if err := s.checkReady(ctx); err != nil {
		return AllocationItem{}, err
	}

	action, err := domain.ParseOverrideAction(input.Action)
	if err != nil {
		return AllocationItem{}, err
	}
	reason := strings.TrimSpace(input.Reason)

	ctx = logging.WithAttrs(ctx,
		slog.String("component", "usecase.allocation"),
		slog.Uint64("allocation_id", input.AllocationID),
		slog.String("action", string(action)),
	)

	target, err := s.loadAllocation(ctx, input.AllocationID)
	if err != nil {
		return AllocationItem{}, err
	}

	unlock := s.locks.lock(target.CycleID)
	defer unlock()

	var updated ports.Allocation
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.loadAllocation(txCtx, input.AllocationID)
		if err != nil {
			return err
		}

		next, err := domain.ApplyOverride(action, current.Status)
		if err != nil {
			return err
		}

		now := s.now()
		if err := s.repo.UpdateAllocationStatus(txCtx, current.ID, next, now); err != nil {
			return errs.Wrapf(err, "update allocation %d", current.ID)
		}
		if err := s.repo.AppendAudit(txCtx, ports.AuditEntryCreate{
			ActionType:        action.AuditAction(),
			PerformedByUserID: input.ActingUserID,
			CycleID:           current.CycleID,
			SubjectID:         uint64Ptr(current.SubjectID),
			AllocationID:      uint64Ptr(current.ID),
			ExaminerID:        uint64Ptr(current.ExaminerID),
			Details: overrideAuditDetails{
				PreviousStatus: current.Status,
				NewStatus:      next,
				Reason:         reason,
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		updated, err = s.loadAllocation(txCtx, current.ID)
		return err
	}); err != nil {
		return AllocationItem{}, err
	}

	var examiner *ports.Examiner
	if found, err := s.repo.ListExaminersByIDs(ctx, []uint64{updated.ExaminerID}); err == nil && len(found) == 1 {
		examiner = &found[0]
	}

	logging.Info(ctx, "allocation overridden",
		slog.String("previous_status", string(target.Status)),
		slog.String("new_status", string(updated.Status)),
	)
	return toAllocationItem(updated, examiner), nil
}
