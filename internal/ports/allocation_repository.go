package ports

import (
	"context"
	"errors"
	"time"

	domain "markalloc/internal/domain/allocation"
)

var (
	ErrCycleNotFound      = errors.New("marking cycle not found")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrExaminerNotFound   = errors.New("examiner not found")
	ErrAllocationNotFound = errors.New("allocation not found")
)

type MarkingCycle struct {
	ID              uint64
	Year            int
	Status          domain.CycleStatus
	TotalRequired   int
	ExperienceRatio float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Subject struct {
	ID   uint64
	Code string
	Name string
	Type string
}

type Examiner struct {
	ID       uint64
	FullName string
	Status   domain.ExaminerStatus
	Region   string
	Gender   string
}

func (e Examiner) Member() domain.Member {
	return domain.Member{ExaminerID: e.ID, Region: e.Region, Gender: e.Gender}
}

type ExaminerHistory struct {
	ExaminerID     uint64
	SubjectID      uint64
	TimesMarked    int
	LastMarkedYear *int
}

type SubjectQuota struct {
	ID         uint64
	CycleID    uint64
	SubjectID  uint64
	QuotaType  domain.QuotaType
	QuotaKey   string
	MinCount   *int
	MaxCount   *int
	Percentage *float64
}

func (q SubjectQuota) Rule() domain.QuotaRule {
	return domain.QuotaRule{
		Type:       q.QuotaType,
		Key:        q.QuotaKey,
		MinCount:   q.MinCount,
		MaxCount:   q.MaxCount,
		Percentage: q.Percentage,
	}
}

type Allocation struct {
	ID                uint64
	ExaminerID        uint64
	CycleID           uint64
	SubjectID         uint64
	Score             float64
	Rank              int
	Status            domain.Status
	AllocatedByUserID uint64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type AllocationCreate struct {
	ExaminerID        uint64
	CycleID           uint64
	SubjectID         uint64
	Score             float64
	Rank              int
	Status            domain.Status
	AllocatedByUserID uint64
	CreatedAt         time.Time
}

// AllocationFilter selects allocations; results are ordered by rank ascending.
// Zero SubjectID means every subject of the cycle. Limit <= 0 means no limit.
type AllocationFilter struct {
	CycleID   uint64
	SubjectID uint64
	Status    domain.Status
	Limit     int
}

type AuditEntry struct {
	ID                uint64
	ActionType        domain.AuditAction
	PerformedByUserID uint64
	CycleID           uint64
	SubjectID         *uint64
	AllocationID      *uint64
	ExaminerID        *uint64
	DetailsJSON       []byte
	CreatedAt         time.Time
}

type AuditEntryCreate struct {
	ActionType        domain.AuditAction
	PerformedByUserID uint64
	CycleID           uint64
	SubjectID         *uint64
	AllocationID      *uint64
	ExaminerID        *uint64
	Details           any
	CreatedAt         time.Time
}

type AuditFilter struct {
	CycleID      uint64
	SubjectID    uint64
	AllocationID uint64
}

type Acceptance struct {
	ID               uint64
	ExaminerID       uint64
	AllocationID     uint64
	Status           string
	NotifiedAt       time.Time
	ResponseDeadline time.Time
}

type AcceptanceCreate struct {
	ExaminerID       uint64
	AllocationID     uint64
	Status           string
	NotifiedAt       time.Time
	ResponseDeadline time.Time
}

type AllocationReadRepository interface {
	GetCycle(ctx context.Context, cycleID uint64) (MarkingCycle, error)
	GetSubject(ctx context.Context, subjectID uint64) (Subject, error)
	// ListEligibleExaminers returns ACTIVE examiners flagged eligible for the subject, by id ascending.
	ListEligibleExaminers(ctx context.Context, subjectID uint64) ([]Examiner, error)
	ListExaminersByIDs(ctx context.Context, examinerIDs []uint64) ([]Examiner, error)
	ListHistory(ctx context.Context, subjectID uint64, examinerIDs []uint64) ([]ExaminerHistory, error)
	GetHistory(ctx context.Context, examinerID uint64, subjectID uint64) (ExaminerHistory, bool, error)
	ListQuotas(ctx context.Context, cycleID uint64, subjectID uint64) ([]SubjectQuota, error)
	ListAllocations(ctx context.Context, filter AllocationFilter) ([]Allocation, error)
	GetAllocation(ctx context.Context, allocationID uint64) (Allocation, error)
	ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
	HasAcceptance(ctx context.Context, allocationID uint64) (bool, error)
	ListAcceptances(ctx context.Context, cycleID uint64) ([]Acceptance, error)
}

type AllocationRepository interface {
	AllocationReadRepository
	CreateAllocations(ctx context.Context, rows []AllocationCreate) ([]Allocation, error)
	UpdateAllocationStatus(ctx context.Context, allocationID uint64, status domain.Status, updatedAt time.Time) error
	SetCycleStatus(ctx context.Context, cycleID uint64, status domain.CycleStatus, updatedAt time.Time) error
	AppendAudit(ctx context.Context, input AuditEntryCreate) error
	// IncrementHistory bumps times_marked and last_marked_year, inserting a first row when absent.
	IncrementHistory(ctx context.Context, examinerID uint64, subjectID uint64, year int) (inserted bool, err error)
	// CreateAcceptance returns false when the allocation already has an acceptance.
	CreateAcceptance(ctx context.Context, input AcceptanceCreate) (Acceptance, bool, error)
}

// ReferenceRepository maintains the data the allocation core only reads. It stands in
// for the surrounding administration suite (imports, fixtures).
type ReferenceRepository interface {
	SaveCycle(ctx context.Context, cycle MarkingCycle) (MarkingCycle, error)
	SaveSubject(ctx context.Context, subject Subject) (Subject, error)
	SaveExaminer(ctx context.Context, examiner Examiner) (Examiner, error)
	SetEligibility(ctx context.Context, examinerID uint64, subjectID uint64, eligible bool) error
	SaveHistory(ctx context.Context, history ExaminerHistory) error
	SaveQuota(ctx context.Context, quota SubjectQuota) (SubjectQuota, error)
	SaveScore(ctx context.Context, examinerID uint64, subjectID uint64, year int, score float64) error
}
