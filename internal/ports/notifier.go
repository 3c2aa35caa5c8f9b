package ports

import (
	"context"
	"time"
)

type AcceptanceNotice struct {
	AcceptanceID     uint64
	AllocationID     uint64
	ExaminerID       uint64
	CycleID          uint64
	SubjectID        uint64
	ResponseDeadline time.Time
}

// Notifier delivers acceptance requests to examiners. Delivery failures never
// undo the acceptance record.
type Notifier interface {
	NotifyApproved(ctx context.Context, notice AcceptanceNotice) error
}
