package allocation

import (
	"context"
	"fmt"
	"log/slog"

	"markalloc/internal/bootstrap/logging"
	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

// NotifyApproved opens a PENDING acceptance for every APPROVED allocation of the cycle that
// has none yet. Created acceptances are handed to the notifier after commit; delivery
// failures are logged and do not undo the records.
func (s *Service) NotifyApproved(ctx context.Context, input NotifyInput) (NotifyResult, error) {
	if err := s.checkReady(ctx); err != nil {
		return NotifyResult{}, err
	}

	ctx = logging.WithScope(logging.WithAttrs(ctx, slog.String("component", "usecase.allocation")), input.CycleID, 0)

	unlock := s.locks.lock(input.CycleID)
	defer unlock()

	now := s.now()
	deadline := now.Add(s.settings.ResponseWindow)
	if input.ResponseDeadline != nil {
		deadline = input.ResponseDeadline.UTC()
	}

	result := NotifyResult{ResponseDeadline: deadline}
	var notices []ports.AcceptanceNotice

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.loadCycle(txCtx, input.CycleID); err != nil {
			return err
		}

		approved, err := s.repo.ListAllocations(txCtx, ports.AllocationFilter{
			CycleID: input.CycleID,
			Status:  domain.StatusApproved,
		})
		if err != nil {
			return errs.Wrap(err, "list approved allocations")
		}

		for _, row := range approved {
			exists, err := s.repo.HasAcceptance(txCtx, row.ID)
			if err != nil {
				return errs.Wrapf(err, "check acceptance for allocation %d", row.ID)
			}
			if exists {
				result.AlreadyNotified++
				continue
			}

			acceptance, created, err := s.repo.CreateAcceptance(txCtx, ports.AcceptanceCreate{
				ExaminerID:       row.ExaminerID,
				AllocationID:     row.ID,
				Status:           domain.AcceptancePending,
				NotifiedAt:       now,
				ResponseDeadline: deadline,
			})
			if err != nil {
				return errs.Wrapf(err, "create acceptance for allocation %d", row.ID)
			}
			if !created {
				result.AlreadyNotified++
				continue
			}

			result.Notified++
			notices = append(notices, ports.AcceptanceNotice{
				AcceptanceID:     acceptance.ID,
				AllocationID:     row.ID,
				ExaminerID:       row.ExaminerID,
				CycleID:          row.CycleID,
				SubjectID:        row.SubjectID,
				ResponseDeadline: deadline,
			})
		}
		return nil
	}); err != nil {
		logging.Warn(ctx, "notify approved failed", slog.Any("err", errs.Loggable(err)))
		return NotifyResult{}, err
	}

	s.dispatchNotices(ctx, notices)

	result.Message = fmt.Sprintf("Notified %d approved examiners", result.Notified)
	logging.Info(ctx, "acceptance requests created",
		slog.Int("notified", result.Notified),
		slog.Int("already_notified", result.AlreadyNotified),
	)
	return result, nil
}

func (s *Service) dispatchNotices(ctx context.Context, notices []ports.AcceptanceNotice) {
	if s.notifier == nil {
		return
	}
	for _, notice := range notices {
		if err := s.notifier.NotifyApproved(ctx, notice); err != nil {
			logging.Warn(ctx, "acceptance notice delivery failed",
				slog.Uint64("acceptance_id", notice.AcceptanceID),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}
}
