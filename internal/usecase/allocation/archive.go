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

type archiveAuditDetails struct {
	Year                int `json:"year"`
	Archived            int `json:"archived"`
	UpdatedHistoryCount int `json:"updated_history_count"`
	CreatedHistoryCount int `json:"created_history_count"`
}

// Archive folds every APPROVED allocation of a CLOSED cycle into the examiners' marking
// history. There is no guard against archiving twice: each call counts again.
func (s *Service) Archive(ctx context.Context, input ArchiveInput) (ArchiveResult, error) {
	if err := s.checkReady(ctx); err != nil {
		return ArchiveResult{}, err
	}

	ctx = logging.WithScope(logging.WithAttrs(ctx, slog.String("component", "usecase.allocation")), input.CycleID, 0)

	unlock := s.locks.lock(input.CycleID)
	defer unlock()

	result := ArchiveResult{CycleID: input.CycleID}
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		cycle, err := s.loadCycle(txCtx, input.CycleID)
		if err != nil {
			return err
		}
		if err := domain.RequireCycleStatus(cycle.Status, domain.CycleClosed); err != nil {
			return err
		}
		result.Year = cycle.Year

		approved, err := s.repo.ListAllocations(txCtx, ports.AllocationFilter{
			CycleID: input.CycleID,
			Status:  domain.StatusApproved,
		})
		if err != nil {
			return errs.Wrap(err, "list approved allocations")
		}

		for _, row := range approved {
			inserted, err := s.repo.IncrementHistory(txCtx, row.ExaminerID, row.SubjectID, cycle.Year)
			if err != nil {
				return errs.Wrapf(err, "archive allocation %d", row.ID)
			}
			result.Archived++
			result.UpdatedHistoryCount++
			if inserted {
				result.CreatedHistoryCount++
			}
		}

		return s.repo.AppendAudit(txCtx, ports.AuditEntryCreate{
			ActionType:        domain.AuditCycleArchived,
			PerformedByUserID: input.ActingUserID,
			CycleID:           input.CycleID,
			Details: archiveAuditDetails{
				Year:                result.Year,
				Archived:            result.Archived,
				UpdatedHistoryCount: result.UpdatedHistoryCount,
				CreatedHistoryCount: result.CreatedHistoryCount,
			},
			CreatedAt: s.now(),
		})
	}); err != nil {
		logging.Warn(ctx, "archive failed", slog.Any("err", errs.Loggable(err)))
		return ArchiveResult{}, err
	}

	result.Message = fmt.Sprintf("Archived %d approved allocations for %d", result.Archived, result.Year)
	logging.Info(ctx, "cycle archived",
		slog.Int("archived", result.Archived),
		slog.Int("created_history", result.CreatedHistoryCount),
	)
	return result, nil
}
