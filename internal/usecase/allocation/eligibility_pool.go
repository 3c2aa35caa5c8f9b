package allocation

import (
	"context"

	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

// EligiblePool returns the examiners considered for (cycle, subject) before scoring:
// ACTIVE examiners flagged eligible for the subject, by examiner id ascending.
func (s *Service) EligiblePool(ctx context.Context, cycleID uint64, subjectID uint64) ([]ports.Examiner, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	if _, err := s.loadCycle(ctx, cycleID); err != nil {
		return nil, err
	}
	return s.eligiblePool(ctx, subjectID)
}

func (s *Service) eligiblePool(ctx context.Context, subjectID uint64) ([]ports.Examiner, error) {
	pool, err := s.repo.ListEligibleExaminers(ctx, subjectID)
	if err != nil {
		return nil, errs.Wrapf(err, "list eligible examiners subject=%d", subjectID)
	}
	return pool, nil
}
