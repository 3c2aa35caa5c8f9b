package allocation

import (
	"context"
	"log/slog"

	"markalloc/internal/bootstrap/logging"
	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

// CloseCycle ends the allocation phase of an ALLOCATED cycle so it can be archived.
func (s *Service) CloseCycle(ctx context.Context, input CloseCycleInput) (CycleItem, error) {
	if err := s.checkReady(ctx); err != nil {
		return CycleItem{}, err
	}

	ctx = logging.WithScope(logging.WithAttrs(ctx, slog.String("component", "usecase.allocation")), input.CycleID, 0)

	unlock := s.locks.lock(input.CycleID)
	defer unlock()

	var closed ports.MarkingCycle
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		cycle, err := s.loadCycle(txCtx, input.CycleID)
		if err != nil {
			return err
		}
		if err := domain.RequireCycleStatus(cycle.Status, domain.CycleAllocated); err != nil {
			return err
		}

		now := s.now()
		if err := s.repo.SetCycleStatus(txCtx, input.CycleID, domain.CycleClosed, now); err != nil {
			return errs.Wrap(err, "close marking cycle")
		}
		if err := s.repo.AppendAudit(txCtx, ports.AuditEntryCreate{
			ActionType:        domain.AuditCycleClosed,
			PerformedByUserID: input.ActingUserID,
			CycleID:           input.CycleID,
			Details: map[string]string{
				"previous_status": string(cycle.Status),
				"new_status":      string(domain.CycleClosed),
			},
			CreatedAt: now,
		}); err != nil {
			return err
		}

		closed, err = s.loadCycle(txCtx, input.CycleID)
		return err
	}); err != nil {
		return CycleItem{}, err
	}

	s.setCacheBestEffort(ctx, cacheCycleStatusKey(input.CycleID), string(domain.CycleClosed))
	logging.Info(ctx, "marking cycle closed")
	return toCycleItem(closed), nil
}

// GetCycle returns the cycle with its current status.
func (s *Service) GetCycle(ctx context.Context, cycleID uint64) (CycleItem, error) {
	if err := s.checkReady(ctx); err != nil {
		return CycleItem{}, err
	}
	cycle, err := s.loadCycle(ctx, cycleID)
	if err != nil {
		return CycleItem{}, err
	}
	return toCycleItem(cycle), nil
}
