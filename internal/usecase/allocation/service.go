package allocation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"markalloc/internal/bootstrap/logging"
	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

const tracerName = "markalloc/usecase/allocation"

const (
	defaultScoringWorkers = 4
	defaultResponseWindow = 7 * 24 * time.Hour
)

// Settings are the tunables the service reads from configuration.
type Settings struct {
	ScoringWorkers int
	ResponseWindow time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.ScoringWorkers <= 0 {
		s.ScoringWorkers = defaultScoringWorkers
	}
	if s.ResponseWindow <= 0 {
		s.ResponseWindow = defaultResponseWindow
	}
	return s
}

type Service struct {
	repo     ports.AllocationRepository
	ref      ports.ReferenceRepository
	uow      ports.UnitOfWork
	oracle   ports.ScoringOracle
	cache    ports.Cache
	notifier ports.Notifier
	settings Settings
	tracer   trace.Tracer
	validate *validator.Validate
	locks    *scopeLocks
	now      func() time.Time
}

type Option func(*Service)

func WithReferenceRepository(ref ports.ReferenceRepository) Option {
	return func(s *Service) { s.ref = ref }
}

func WithCache(cache ports.Cache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithNotifier(notifier ports.Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

func WithSettings(settings Settings) Option {
	return func(s *Service) { s.settings = settings.withDefaults() }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the allocation usecases. Cache, notifier and reference repository are optional.
func NewService(repo ports.AllocationRepository, uow ports.UnitOfWork, oracle ports.ScoringOracle, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		uow:      uow,
		oracle:   oracle,
		settings: Settings{}.withDefaults(),
		tracer:   otel.Tracer(tracerName),
		validate: validator.New(),
		locks:    newScopeLocks(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RunAllocationInput struct {
	CycleID      uint64
	SubjectID    uint64
	ActingUserID uint64
}

type AllocationResult struct {
	CycleID    uint64 `json:"cycle_id"`
	SubjectID  uint64 `json:"subject_id"`
	RunID      string `json:"run_id,omitempty"`
	Approved   int    `json:"approved"`
	Waitlisted int    `json:"waitlisted"`
	// Rejected is always 0: unapproved examiners are waitlisted.
	Rejected int    `json:"rejected"`
	Message  string `json:"message"`
}

type PromoteWaitlistInput struct {
	CycleID      uint64
	SubjectID    uint64
	SlotCount    int
	ActingUserID uint64
}

type PromotionResult struct {
	Promoted      int      `json:"promoted"`
	Skipped       int      `json:"skipped"`
	AllocationIDs []uint64 `json:"allocation_ids"`
	Message       string   `json:"message"`
}

type ListAllocationsInput struct {
	CycleID   uint64
	SubjectID uint64
	// Status filters by allocation status when non-empty.
	Status string
}

type AllocationItem struct {
	ID                uint64        `json:"id"`
	CycleID           uint64        `json:"cycle_id"`
	SubjectID         uint64        `json:"subject_id"`
	ExaminerID        uint64        `json:"examiner_id"`
	ExaminerName      string        `json:"examiner_name,omitempty"`
	Region            string        `json:"region,omitempty"`
	Gender            string        `json:"gender,omitempty"`
	Score             float64       `json:"score"`
	Rank              int           `json:"rank"`
	Status            domain.Status `json:"status"`
	AllocatedByUserID uint64        `json:"allocated_by_user_id"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

type ComplianceReport struct {
	CycleID       uint64             `json:"cycle_id"`
	SubjectID     uint64             `json:"subject_id"`
	Compliant     bool               `json:"compliant"`
	ApprovedCount int                `json:"approved_count"`
	Violations    []domain.Violation `json:"violations"`
}

type OverrideInput struct {
	AllocationID uint64
	Action       string
	ActingUserID uint64
	Reason       string
}

type ArchiveInput struct {
	CycleID      uint64
	ActingUserID uint64
}

type ArchiveResult struct {
	CycleID             uint64 `json:"cycle_id"`
	Year                int    `json:"year"`
	Archived            int    `json:"archived"`
	UpdatedHistoryCount int    `json:"updated_history_count"`
	CreatedHistoryCount int    `json:"created_history_count"`
	Message             string `json:"message"`
}

type NotifyInput struct {
	CycleID      uint64
	ActingUserID uint64
	// ResponseDeadline overrides now + the configured response window.
	ResponseDeadline *time.Time
}

type NotifyResult struct {
	Notified         int       `json:"notified"`
	AlreadyNotified  int       `json:"already_notified"`
	ResponseDeadline time.Time `json:"response_deadline"`
	Message          string    `json:"message"`
}

type CloseCycleInput struct {
	CycleID      uint64
	ActingUserID uint64
}

type CycleItem struct {
	ID              uint64             `json:"id"`
	Year            int                `json:"year"`
	Status          domain.CycleStatus `json:"status"`
	TotalRequired   int                `json:"total_required"`
	ExperienceRatio float64            `json:"experience_ratio"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func (s *Service) checkReady(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("allocation repository is required")
	}
	if s.uow == nil {
		return errors.New("allocation unit of work is required")
	}
	return nil
}

// tagSpan adds the span's trace and span ids to the context logger.
func tagSpan(ctx context.Context, span trace.Span) context.Context {
	sc := span.SpanContext()
	if !sc.IsValid() {
		return ctx
	}
	return logging.WithTelemetry(ctx, sc.TraceID().String(), sc.SpanID().String())
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		logging.Debug(ctx, "cache set failed", slog.String("key", key), slog.Any("err", errs.Loggable(err)))
	}
}
