package allocation

import (
	"context"

	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

// quotaSnapshot holds the rules for a (cycle, subject) and the members already approved
// at the time it was loaded.
type quotaSnapshot struct {
	rules    []domain.QuotaRule
	approved []domain.Member
}

// evaluate checks approved ∪ proposed against every rule.
func (q quotaSnapshot) evaluate(proposed []domain.Member) []domain.Violation {
	if len(q.rules) == 0 {
		return nil
	}
	return domain.EvaluateQuotas(q.rules, domain.UnionMembers(q.approved, proposed))
}

// loadQuotaSnapshot rebuilds the quota view from storage. Callers load a fresh snapshot
// whenever the approved set may have changed since the last one.
func (s *Service) loadQuotaSnapshot(ctx context.Context, cycleID uint64, subjectID uint64) (quotaSnapshot, error) {
	quotas, err := s.repo.ListQuotas(ctx, cycleID, subjectID)
	if err != nil {
		return quotaSnapshot{}, errs.Wrap(err, "list subject quotas")
	}
	if len(quotas) == 0 {
		return quotaSnapshot{}, nil
	}

	rules := make([]domain.QuotaRule, 0, len(quotas))
	for _, q := range quotas {
		rules = append(rules, q.Rule())
	}

	approved, err := s.approvedMembers(ctx, cycleID, subjectID)
	if err != nil {
		return quotaSnapshot{}, err
	}
	return quotaSnapshot{rules: rules, approved: approved}, nil
}

func (s *Service) approvedMembers(ctx context.Context, cycleID uint64, subjectID uint64) ([]domain.Member, error) {
	rows, err := s.repo.ListAllocations(ctx, ports.AllocationFilter{
		CycleID:   cycleID,
		SubjectID: subjectID,
		Status:    domain.StatusApproved,
	})
	if err != nil {
		return nil, errs.Wrap(err, "list approved allocations")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	examiners, err := s.repo.ListExaminersByIDs(ctx, examinerIDs(rows))
	if err != nil {
		return nil, errs.Wrap(err, "list approved examiners")
	}
	members := make([]domain.Member, 0, len(examiners))
	for _, e := range examiners {
		members = append(members, e.Member())
	}
	return members, nil
}

// ValidateQuotas evaluates the approved set for (cycle, subject) plus the proposed examiners.
// Unmet rules come back as violations, never as an error.
func (s *Service) ValidateQuotas(ctx context.Context, cycleID uint64, subjectID uint64, proposedExaminerIDs []uint64) (bool, []domain.Violation, error) {
	if err := s.checkReady(ctx); err != nil {
		return false, nil, err
	}

	snapshot, err := s.loadQuotaSnapshot(ctx, cycleID, subjectID)
	if err != nil {
		return false, nil, err
	}
	if len(snapshot.rules) == 0 {
		return true, nil, nil
	}

	proposed := make([]domain.Member, 0, len(proposedExaminerIDs))
	if len(proposedExaminerIDs) > 0 {
		examiners, err := s.repo.ListExaminersByIDs(ctx, proposedExaminerIDs)
		if err != nil {
			return false, nil, errs.Wrap(err, "list proposed examiners")
		}
		for _, e := range examiners {
			proposed = append(proposed, e.Member())
		}
	}

	violations := snapshot.evaluate(proposed)
	return len(violations) == 0, violations, nil
}
