package model

import (
	"time"

	"gorm.io/datatypes"
)

type ExaminerAllocation struct {
	ID                uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	ExaminerID        uint64    `gorm:"column:examiner_id;not null;uniqueIndex:uq_allocation_examiner,priority:3"`
	CycleID           uint64    `gorm:"column:cycle_id;not null;uniqueIndex:uq_allocation_examiner,priority:1;index:idx_allocation_scope,priority:1"`
	SubjectID         uint64    `gorm:"column:subject_id;not null;uniqueIndex:uq_allocation_examiner,priority:2;index:idx_allocation_scope,priority:2"`
	Score             float64   `gorm:"column:score;not null"`
	Rank              int       `gorm:"column:rank;not null"`
	AllocationStatus  string    `gorm:"column:allocation_status;type:varchar(16);not null;index"`
	AllocatedByUserID uint64    `gorm:"column:allocated_by_user_id;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;not null"`
	UpdatedAt         time.Time `gorm:"column:updated_at;not null"`
}

func (ExaminerAllocation) TableName() string {
	return "examiner_allocations"
}

// AllocationAuditLog rows are only ever inserted.
type AllocationAuditLog struct {
	ID                uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	ActionType        string         `gorm:"column:action_type;type:varchar(32);not null;index"`
	PerformedByUserID uint64         `gorm:"column:performed_by_user_id;not null"`
	CycleID           uint64         `gorm:"column:cycle_id;not null;index:idx_audit_scope,priority:1"`
	SubjectID         *uint64        `gorm:"column:subject_id;index:idx_audit_scope,priority:2"`
	AllocationID      *uint64        `gorm:"column:allocation_id;index"`
	ExaminerID        *uint64        `gorm:"column:examiner_id"`
	Details           datatypes.JSON `gorm:"column:details;not null"`
	CreatedAt         time.Time      `gorm:"column:created_at;not null"`
}

func (AllocationAuditLog) TableName() string {
	return "allocation_audit_logs"
}

type ExaminerAcceptance struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	ExaminerID       uint64    `gorm:"column:examiner_id;not null;index"`
	AllocationID     uint64    `gorm:"column:allocation_id;not null;uniqueIndex"`
	Status           string    `gorm:"column:status;type:varchar(16);not null"`
	NotifiedAt       time.Time `gorm:"column:notified_at;not null"`
	ResponseDeadline time.Time `gorm:"column:response_deadline;not null"`
}

func (ExaminerAcceptance) TableName() string {
	return "examiner_acceptances"
}
