package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/infrastructure/persistence/sqlite/model"
	"markalloc/internal/ports"
)

func setupRepositories(t *testing.T) (*AllocationRepository, *ReferenceRepository, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "allocation.sqlite")
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
	return NewAllocationRepository(db), NewReferenceRepository(db), db
}

func mustSaveExaminer(t *testing.T, ref *ReferenceRepository, ex ports.Examiner) ports.Examiner {
	t.Helper()
	saved, err := ref.SaveExaminer(context.Background(), ex)
	if err != nil {
		t.Fatalf("save examiner: %v", err)
	}
	return saved
}

func TestListEligibleExaminersFiltersStatusAndFlag(t *testing.T) {
	repo, ref, _ := setupRepositories(t)
	ctx := context.Background()

	subject, err := ref.SaveSubject(ctx, ports.Subject{Code: "MATH", Name: "Mathematics"})
	if err != nil {
		t.Fatalf("save subject: %v", err)
	}

	active := mustSaveExaminer(t, ref, ports.Examiner{FullName: "A", Region: "North", Gender: "F"})
	suspended := mustSaveExaminer(t, ref, ports.Examiner{FullName: "B", Status: domain.ExaminerSuspended})
	notEligible := mustSaveExaminer(t, ref, ports.Examiner{FullName: "C"})
	mustSaveExaminer(t, ref, ports.Examiner{FullName: "D"})

	for _, e := range []struct {
		id       uint64
		eligible bool
	}{
		{active.ID, true},
		{suspended.ID, true},
		{notEligible.ID, false},
	} {
		if err := ref.SetEligibility(ctx, e.id, subject.ID, e.eligible); err != nil {
			t.Fatalf("set eligibility: %v", err)
		}
	}

	pool, err := repo.ListEligibleExaminers(ctx, subject.ID)
	if err != nil {
		t.Fatalf("ListEligibleExaminers() error = %v", err)
	}
	if len(pool) != 1 || pool[0].ID != active.ID {
		t.Fatalf("ListEligibleExaminers() = %#v", pool)
	}
	if pool[0].Region != "North" || pool[0].Gender != "F" {
		t.Fatalf("examiner attributes = %#v", pool[0])
	}
}

func TestIncrementHistoryInsertsThenIncrements(t *testing.T) {
	repo, _, _ := setupRepositories(t)
	ctx := context.Background()

	inserted, err := repo.IncrementHistory(ctx, 7, 3, 2024)
	if err != nil {
		t.Fatalf("IncrementHistory() error = %v", err)
	}
	if !inserted {
		t.Fatalf("IncrementHistory() inserted = false on first call")
	}

	inserted, err = repo.IncrementHistory(ctx, 7, 3, 2025)
	if err != nil {
		t.Fatalf("IncrementHistory() second error = %v", err)
	}
	if inserted {
		t.Fatalf("IncrementHistory() inserted = true on second call")
	}

	history, found, err := repo.GetHistory(ctx, 7, 3)
	if err != nil || !found {
		t.Fatalf("GetHistory() found=%v err=%v", found, err)
	}
	if history.TimesMarked != 2 {
		t.Fatalf("times_marked = %d, want 2", history.TimesMarked)
	}
	if history.LastMarkedYear == nil || *history.LastMarkedYear != 2025 {
		t.Fatalf("last_marked_year = %v", history.LastMarkedYear)
	}
}

func TestCreateAcceptanceIsUniquePerAllocation(t *testing.T) {
	repo, _, _ := setupRepositories(t)
	ctx := context.Background()
	now := time.Now().UTC()

	input := ports.AcceptanceCreate{
		ExaminerID:       1,
		AllocationID:     11,
		Status:           domain.AcceptancePending,
		NotifiedAt:       now,
		ResponseDeadline: now.Add(7 * 24 * time.Hour),
	}
	created, ok, err := repo.CreateAcceptance(ctx, input)
	if err != nil || !ok {
		t.Fatalf("CreateAcceptance() ok=%v err=%v", ok, err)
	}
	if created.ID == 0 {
		t.Fatalf("CreateAcceptance() id = 0")
	}

	_, ok, err = repo.CreateAcceptance(ctx, input)
	if err != nil {
		t.Fatalf("CreateAcceptance() duplicate error = %v", err)
	}
	if ok {
		t.Fatalf("CreateAcceptance() duplicate inserted")
	}

	has, err := repo.HasAcceptance(ctx, 11)
	if err != nil || !has {
		t.Fatalf("HasAcceptance() = %v, %v", has, err)
	}
}

func TestListAllocationsOrdersByRankAndFilters(t *testing.T) {
	repo, _, _ := setupRepositories(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := []ports.AllocationCreate{
		{ExaminerID: 3, CycleID: 1, SubjectID: 2, Rank: 3, Status: domain.StatusWaitlisted, CreatedAt: now},
		{ExaminerID: 1, CycleID: 1, SubjectID: 2, Rank: 1, Status: domain.StatusApproved, CreatedAt: now},
		{ExaminerID: 2, CycleID: 1, SubjectID: 2, Rank: 2, Status: domain.StatusWaitlisted, CreatedAt: now},
		{ExaminerID: 4, CycleID: 1, SubjectID: 9, Rank: 1, Status: domain.StatusApproved, CreatedAt: now},
	}
	if _, err := repo.CreateAllocations(ctx, rows); err != nil {
		t.Fatalf("CreateAllocations() error = %v", err)
	}

	items, err := repo.ListAllocations(ctx, ports.AllocationFilter{CycleID: 1, SubjectID: 2})
	if err != nil {
		t.Fatalf("ListAllocations() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("ListAllocations() len = %d", len(items))
	}
	for i, item := range items {
		if item.Rank != i+1 {
			t.Fatalf("items[%d].Rank = %d", i, item.Rank)
		}
	}

	waitlisted, err := repo.ListAllocations(ctx, ports.AllocationFilter{CycleID: 1, SubjectID: 2, Status: domain.StatusWaitlisted, Limit: 1})
	if err != nil {
		t.Fatalf("ListAllocations(waitlisted) error = %v", err)
	}
	if len(waitlisted) != 1 || waitlisted[0].ExaminerID != 2 {
		t.Fatalf("ListAllocations(waitlisted) = %#v", waitlisted)
	}

	cycleWide, err := repo.ListAllocations(ctx, ports.AllocationFilter{CycleID: 1, Status: domain.StatusApproved})
	if err != nil {
		t.Fatalf("ListAllocations(cycle) error = %v", err)
	}
	if len(cycleWide) != 2 {
		t.Fatalf("ListAllocations(cycle) len = %d", len(cycleWide))
	}
}

func TestAppendAuditStoresDetailsJSON(t *testing.T) {
	repo, _, _ := setupRepositories(t)
	ctx := context.Background()
	subjectID := uint64(2)
	allocationID := uint64(5)

	if err := repo.AppendAudit(ctx, ports.AuditEntryCreate{
		ActionType:        domain.AuditOverridePromote,
		PerformedByUserID: 42,
		CycleID:           1,
		SubjectID:         &subjectID,
		AllocationID:      &allocationID,
		Details:           map[string]string{"previous_status": "WAITLISTED", "new_status": "APPROVED"},
		CreatedAt:         time.Now().UTC(),
	}); err != nil {
		t.Fatalf("AppendAudit() error = %v", err)
	}

	entries, err := repo.ListAudit(ctx, ports.AuditFilter{AllocationID: allocationID})
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListAudit() len = %d", len(entries))
	}

	var details map[string]string
	if err := json.Unmarshal(entries[0].DetailsJSON, &details); err != nil {
		t.Fatalf("decode details: %v", err)
	}
	if details["new_status"] != "APPROVED" || entries[0].PerformedByUserID != 42 {
		t.Fatalf("entry = %#v details = %#v", entries[0], details)
	}
}

func TestSaveQuotaUpsertsByNaturalKey(t *testing.T) {
	_, ref, db := setupRepositories(t)
	ctx := context.Background()
	maxTwo, maxThree := 2, 3

	first, err := ref.SaveQuota(ctx, ports.SubjectQuota{CycleID: 1, SubjectID: 2, QuotaType: domain.QuotaRegion, QuotaKey: "North", MaxCount: &maxTwo})
	if err != nil {
		t.Fatalf("SaveQuota() error = %v", err)
	}
	second, err := ref.SaveQuota(ctx, ports.SubjectQuota{CycleID: 1, SubjectID: 2, QuotaType: domain.QuotaRegion, QuotaKey: "North", MaxCount: &maxThree})
	if err != nil {
		t.Fatalf("SaveQuota() second error = %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("SaveQuota() ids differ: %d vs %d", first.ID, second.ID)
	}
	if second.MaxCount == nil || *second.MaxCount != 3 {
		t.Fatalf("max_count = %v", second.MaxCount)
	}

	var count int64
	if err := db.Model(&model.SubjectQuota{}).Count(&count).Error; err != nil {
		t.Fatalf("count quotas: %v", err)
	}
	if count != 1 {
		t.Fatalf("quota rows = %d, want 1", count)
	}
}

func TestScoreTableOracleDefaultsToZero(t *testing.T) {
	_, ref, db := setupRepositories(t)
	ctx := context.Background()
	oracle := NewScoreTableOracle(db)

	if err := ref.SaveScore(ctx, 1, 2, 2025, 81.5); err != nil {
		t.Fatalf("SaveScore() error = %v", err)
	}

	got, err := oracle.Score(ctx, 1, 2, 2025)
	if err != nil || got != 81.5 {
		t.Fatalf("Score() = %v, %v", got, err)
	}
	missing, err := oracle.Score(ctx, 1, 2, 2024)
	if err != nil || missing != 0 {
		t.Fatalf("Score(missing) = %v, %v", missing, err)
	}
}
