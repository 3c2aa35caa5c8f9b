package allocation

import (
	"context"
	"encoding/json"
	"time"

	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

type AuditQuery struct {
	CycleID      uint64
	SubjectID    uint64
	AllocationID uint64
}

type AuditItem struct {
	ID                uint64             `json:"id"`
	ActionType        domain.AuditAction `json:"action_type"`
	PerformedByUserID uint64             `json:"performed_by_user_id"`
	CycleID           uint64             `json:"cycle_id"`
	SubjectID         *uint64            `json:"subject_id,omitempty"`
	AllocationID      *uint64            `json:"allocation_id,omitempty"`
	ExaminerID        *uint64            `json:"examiner_id,omitempty"`
	Details           json.RawMessage    `json:"details"`
	CreatedAt         time.Time          `json:"created_at"`
}

type AcceptanceItem struct {
	ID               uint64    `json:"id"`
	AllocationID     uint64    `json:"allocation_id"`
	ExaminerID       uint64    `json:"examiner_id"`
	Status           string    `json:"status"`
	NotifiedAt       time.Time `json:"notified_at"`
	ResponseDeadline time.Time `json:"response_deadline"`
}

// ListAllocations returns the allocations of a cycle by rank ascending, optionally narrowed
// to one subject and one status.
func (s *Service) ListAllocations(ctx context.Context, input ListAllocationsInput) ([]AllocationItem, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}

	filter := ports.AllocationFilter{CycleID: input.CycleID, SubjectID: input.SubjectID}
	if input.Status != "" {
		status, err := domain.ParseStatus(input.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}

	if _, err := s.loadCycle(ctx, input.CycleID); err != nil {
		return nil, err
	}
	if input.SubjectID != 0 {
		if _, err := s.loadSubject(ctx, input.SubjectID); err != nil {
			return nil, err
		}
	}

	rows, err := s.repo.ListAllocations(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(err, "list allocations")
	}
	if len(rows) == 0 {
		return []AllocationItem{}, nil
	}

	examiners, err := s.repo.ListExaminersByIDs(ctx, examinerIDs(rows))
	if err != nil {
		return nil, errs.Wrap(err, "list allocated examiners")
	}
	byID := make(map[uint64]*ports.Examiner, len(examiners))
	for i := range examiners {
		byID[examiners[i].ID] = &examiners[i]
	}

	items := make([]AllocationItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toAllocationItem(row, byID[row.ExaminerID]))
	}
	return items, nil
}

// QuotaCompliance evaluates the current APPROVED set of (cycle, subject) without changing anything.
func (s *Service) QuotaCompliance(ctx context.Context, cycleID uint64, subjectID uint64) (ComplianceReport, error) {
	if err := s.checkReady(ctx); err != nil {
		return ComplianceReport{}, err
	}
	if _, err := s.loadCycle(ctx, cycleID); err != nil {
		return ComplianceReport{}, err
	}
	if _, err := s.loadSubject(ctx, subjectID); err != nil {
		return ComplianceReport{}, err
	}

	snapshot, err := s.loadQuotaSnapshot(ctx, cycleID, subjectID)
	if err != nil {
		return ComplianceReport{}, err
	}
	approved := snapshot.approved
	if len(snapshot.rules) == 0 {
		// The snapshot skips the approved set when there is nothing to check it against.
		approved, err = s.approvedMembers(ctx, cycleID, subjectID)
		if err != nil {
			return ComplianceReport{}, err
		}
	}

	violations := snapshot.evaluate(nil)
	if violations == nil {
		violations = []domain.Violation{}
	}
	return ComplianceReport{
		CycleID:       cycleID,
		SubjectID:     subjectID,
		Compliant:     len(violations) == 0,
		ApprovedCount: len(approved),
		Violations:    violations,
	}, nil
}

// ListAudit returns audit entries in insertion order.
func (s *Service) ListAudit(ctx context.Context, query AuditQuery) ([]AuditItem, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	if query.CycleID != 0 {
		if _, err := s.loadCycle(ctx, query.CycleID); err != nil {
			return nil, err
		}
	}

	entries, err := s.repo.ListAudit(ctx, ports.AuditFilter{
		CycleID:      query.CycleID,
		SubjectID:    query.SubjectID,
		AllocationID: query.AllocationID,
	})
	if err != nil {
		return nil, errs.Wrap(err, "list audit entries")
	}

	items := make([]AuditItem, 0, len(entries))
	for _, e := range entries {
		details := json.RawMessage(e.DetailsJSON)
		if len(details) == 0 {
			details = json.RawMessage("{}")
		}
		items = append(items, AuditItem{
			ID:                e.ID,
			ActionType:        e.ActionType,
			PerformedByUserID: e.PerformedByUserID,
			CycleID:           e.CycleID,
			SubjectID:         e.SubjectID,
			AllocationID:      e.AllocationID,
			ExaminerID:        e.ExaminerID,
			Details:           details,
			CreatedAt:         e.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) ListAcceptances(ctx context.Context, cycleID uint64) ([]AcceptanceItem, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	if _, err := s.loadCycle(ctx, cycleID); err != nil {
		return nil, err
	}

	rows, err := s.repo.ListAcceptances(ctx, cycleID)
	if err != nil {
		return nil, errs.Wrap(err, "list acceptances")
	}
	items := make([]AcceptanceItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, AcceptanceItem{
			ID:               row.ID,
			AllocationID:     row.AllocationID,
			ExaminerID:       row.ExaminerID,
			Status:           row.Status,
			NotifiedAt:       row.NotifiedAt,
			ResponseDeadline: row.ResponseDeadline,
		})
	}
	return items, nil
}

// LastRunSummary returns the cached result of the latest run for (cycle, subject).
// A cache miss is not an error: the summary is derived data.
func (s *Service) LastRunSummary(ctx context.Context, cycleID uint64, subjectID uint64) (AllocationResult, bool, error) {
	if s.cache == nil {
		return AllocationResult{}, false, nil
	}
	raw, found, err := s.cache.Get(ctx, cacheRunSummaryKey(cycleID, subjectID))
	if err != nil || !found {
		return AllocationResult{}, false, err
	}

	var result AllocationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return AllocationResult{}, false, errs.Wrap(err, "decode cached run summary")
	}
	return result, true, nil
}
