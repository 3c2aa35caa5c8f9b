package allocation

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "markalloc/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "markalloc/internal/infrastructure/persistence/sqlite/uow"
	"markalloc/internal/ports"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type recordingNotifier struct {
	notices []ports.AcceptanceNotice
}

func (n *recordingNotifier) NotifyApproved(_ context.Context, notice ports.AcceptanceNotice) error {
	n.notices = append(n.notices, notice)
	return nil
}

type testEnv struct {
	svc      *Service
	repo     *sqliterepo.AllocationRepository
	ref      *sqliterepo.ReferenceRepository
	db       *gorm.DB
	cache    *testCache
	notifier *recordingNotifier
}

func setupEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "markalloc.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := sqliterepo.NewAllocationRepository(db)
	ref := sqliterepo.NewReferenceRepository(db)
	cache := newTestCache()
	notifier := &recordingNotifier{}

	all := append([]Option{
		WithReferenceRepository(ref),
		WithCache(cache),
		WithNotifier(notifier),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	svc := NewService(repo, sqliteuow.NewUnitOfWork(db), sqliterepo.NewScoreTableOracle(db), all...)

	return &testEnv{svc: svc, repo: repo, ref: ref, db: db, cache: cache, notifier: notifier}
}

func (e *testEnv) cycle(t *testing.T, total int, ratio float64) ports.MarkingCycle {
	t.Helper()
	cycle, err := e.ref.SaveCycle(context.Background(), ports.MarkingCycle{
		Year:            2026,
		Status:          domain.CycleOpen,
		TotalRequired:   total,
		ExperienceRatio: ratio,
	})
	if err != nil {
		t.Fatalf("save cycle: %v", err)
	}
	return cycle
}

func (e *testEnv) subject(t *testing.T, code string) ports.Subject {
	t.Helper()
	subject, err := e.ref.SaveSubject(context.Background(), ports.Subject{Code: code, Name: code, Type: "CORE"})
	if err != nil {
		t.Fatalf("save subject: %v", err)
	}
	return subject
}

type examinerSpec struct {
	name        string
	region      string
	gender      string
	score       float64
	experienced bool
}

// examiner saves an ACTIVE examiner eligible for subject with a stored 2026 score.
func (e *testEnv) examiner(t *testing.T, subject ports.Subject, spec examinerSpec) ports.Examiner {
	t.Helper()
	ctx := context.Background()

	region := spec.region
	if region == "" {
		region = "North"
	}
	gender := spec.gender
	if gender == "" {
		gender = "F"
	}
	saved, err := e.ref.SaveExaminer(ctx, ports.Examiner{
		FullName: spec.name,
		Status:   domain.ExaminerActive,
		Region:   region,
		Gender:   gender,
	})
	if err != nil {
		t.Fatalf("save examiner: %v", err)
	}
	if err := e.ref.SetEligibility(ctx, saved.ID, subject.ID, true); err != nil {
		t.Fatalf("set eligibility: %v", err)
	}
	if err := e.ref.SaveScore(ctx, saved.ID, subject.ID, 2026, spec.score); err != nil {
		t.Fatalf("save score: %v", err)
	}
	if spec.experienced {
		year := 2025
		if err := e.ref.SaveHistory(ctx, ports.ExaminerHistory{
			ExaminerID:     saved.ID,
			SubjectID:      subject.ID,
			TimesMarked:    2,
			LastMarkedYear: &year,
		}); err != nil {
			t.Fatalf("save history: %v", err)
		}
	}
	return saved
}

func (e *testEnv) quota(t *testing.T, cycle ports.MarkingCycle, subject ports.Subject, in SetQuotaInput) {
	t.Helper()
	in.CycleID = cycle.ID
	in.SubjectID = subject.ID
	if _, err := e.svc.SetQuota(context.Background(), in); err != nil {
		t.Fatalf("SetQuota() error = %v", err)
	}
}

func (e *testEnv) allocations(t *testing.T, cycle ports.MarkingCycle, subject ports.Subject) []AllocationItem {
	t.Helper()
	items, err := e.svc.ListAllocations(context.Background(), ListAllocationsInput{CycleID: cycle.ID, SubjectID: subject.ID})
	if err != nil {
		t.Fatalf("ListAllocations() error = %v", err)
	}
	return items
}

func (e *testEnv) audit(t *testing.T, cycle ports.MarkingCycle) []AuditItem {
	t.Helper()
	items, err := e.svc.ListAudit(context.Background(), AuditQuery{CycleID: cycle.ID})
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	return items
}

func (e *testEnv) run(t *testing.T, cycle ports.MarkingCycle, subject ports.Subject) AllocationResult {
	t.Helper()
	result, err := e.svc.RunAllocation(context.Background(), RunAllocationInput{
		CycleID:      cycle.ID,
		SubjectID:    subject.ID,
		ActingUserID: 7,
	})
	if err != nil {
		t.Fatalf("RunAllocation() error = %v", err)
	}
	return result
}

func intPtr(v int) *int { return &v }

func statusByExaminer(items []AllocationItem) map[uint64]domain.Status {
	out := make(map[uint64]domain.Status, len(items))
	for _, item := range items {
		out[item.ExaminerID] = item.Status
	}
	return out
}
