package notify

import (
	"context"
	"log/slog"
	"time"

	"markalloc/internal/bootstrap/logging"
	"markalloc/internal/ports"
)

// LogNotifier records acceptance requests in the structured log. Mail delivery
// is handled by a separate system that tails these entries.
type LogNotifier struct{}

var _ ports.Notifier = LogNotifier{}

func NewLogNotifier() LogNotifier {
	return LogNotifier{}
}

func (LogNotifier) NotifyApproved(ctx context.Context, notice ports.AcceptanceNotice) error {
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "notify.log")),
		"acceptance request issued",
		slog.Uint64("acceptance_id", notice.AcceptanceID),
		slog.Uint64("allocation_id", notice.AllocationID),
		slog.Uint64("examiner_id", notice.ExaminerID),
		slog.Uint64("cycle_id", notice.CycleID),
		slog.Uint64("subject_id", notice.SubjectID),
		slog.String("response_deadline", notice.ResponseDeadline.Format(time.RFC3339)),
	)
	return nil
}
