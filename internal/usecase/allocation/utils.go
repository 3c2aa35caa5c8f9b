package allocation

import (
	"context"
	"errors"
	"fmt"

	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

func (s *Service) loadCycle(ctx context.Context, cycleID uint64) (ports.MarkingCycle, error) {
	cycle, err := s.repo.GetCycle(ctx, cycleID)
	if err != nil {
		if errors.Is(err, ports.ErrCycleNotFound) {
			return ports.MarkingCycle{}, errs.WithKind(err, errs.KindNotFound, fmt.Sprintf("marking cycle %d not found", cycleID))
		}
		return ports.MarkingCycle{}, errs.Wrapf(err, "load marking cycle %d", cycleID)
	}
	return cycle, nil
}

func (s *Service) loadSubject(ctx context.Context, subjectID uint64) (ports.Subject, error) {
	subject, err := s.repo.GetSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ports.ErrSubjectNotFound) {
			return ports.Subject{}, errs.WithKind(err, errs.KindNotFound, fmt.Sprintf("subject %d not found", subjectID))
		}
		return ports.Subject{}, errs.Wrapf(err, "load subject %d", subjectID)
	}
	return subject, nil
}

func (s *Service) loadAllocation(ctx context.Context, allocationID uint64) (ports.Allocation, error) {
	allocation, err := s.repo.GetAllocation(ctx, allocationID)
	if err != nil {
		if errors.Is(err, ports.ErrAllocationNotFound) {
			return ports.Allocation{}, errs.WithKind(err, errs.KindNotFound, fmt.Sprintf("allocation %d not found", allocationID))
		}
		return ports.Allocation{}, errs.Wrapf(err, "load allocation %d", allocationID)
	}
	return allocation, nil
}

func toAllocationItem(row ports.Allocation, examiner *ports.Examiner) AllocationItem {
	item := AllocationItem{
		ID:                row.ID,
		CycleID:           row.CycleID,
		SubjectID:         row.SubjectID,
		ExaminerID:        row.ExaminerID,
		Score:             row.Score,
		Rank:              row.Rank,
		Status:            row.Status,
		AllocatedByUserID: row.AllocatedByUserID,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if examiner != nil {
		item.ExaminerName = examiner.FullName
		item.Region = examiner.Region
		item.Gender = examiner.Gender
	}
	return item
}

func toCycleItem(cycle ports.MarkingCycle) CycleItem {
	return CycleItem{
		ID:              cycle.ID,
		Year:            cycle.Year,
		Status:          cycle.Status,
		TotalRequired:   cycle.TotalRequired,
		ExperienceRatio: cycle.ExperienceRatio,
		UpdatedAt:       cycle.UpdatedAt,
	}
}

func examinerIDs(rows []ports.Allocation) []uint64 {
	ids := make([]uint64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ExaminerID)
	}
	return ids
}

func countStatus(decisions []domain.Decision, status domain.Status) int {
	n := 0
	for _, d := range decisions {
		if d.Status == status {
			n++
		}
	}
	return n
}

func uint64Ptr(v uint64) *uint64 { return &v }

func cacheRunSummaryKey(cycleID uint64, subjectID uint64) string {
	return fmt.Sprintf("allocation_run:%d:%d", cycleID, subjectID)
}

func cacheCycleStatusKey(cycleID uint64) string {
	return fmt.Sprintf("cycle_status:%d", cycleID)
}
