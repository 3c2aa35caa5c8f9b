package allocation

import (
	"context"

	"markalloc/internal/errs"
)

// experiencedSet returns the examiners among examinerIDs who have marked the subject
// before (times_marked > 0 in any year). History is fetched in one query.
func (s *Service) experiencedSet(ctx context.Context, subjectID uint64, examinerIDs []uint64) (map[uint64]struct{}, error) {
	out := make(map[uint64]struct{})
	if len(examinerIDs) == 0 {
		return out, nil
	}

	history, err := s.repo.ListHistory(ctx, subjectID, examinerIDs)
	if err != nil {
		return nil, errs.Wrapf(err, "list marking history subject=%d", subjectID)
	}
	for _, h := range history {
		if h.TimesMarked > 0 {
			out[h.ExaminerID] = struct{}{}
		}
	}
	return out, nil
}
