package allocation

import (
	"context"
	"strings"
	"testing"

	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
)

func floatPtr(v float64) *float64 { return &v }

func TestSetQuotaValidatesRules(t *testing.T) {
	env := setupEnv(t)
	cycle := env.cycle(t, 1, 0)
	subject := env.subject(t, "MATH")

	cases := []struct {
		name  string
		input SetQuotaInput
	}{
		{"unknown type", SetQuotaInput{QuotaType: "AGE", QuotaKey: "30", MinCount: intPtr(1)}},
		{"empty key", SetQuotaInput{QuotaType: "REGION", QuotaKey: "  ", MinCount: intPtr(1)}},
		{"negative count", SetQuotaInput{QuotaType: "REGION", QuotaKey: "North", MinCount: intPtr(-1)}},
		{"percentage above 100", SetQuotaInput{QuotaType: "GENDER", QuotaKey: "F", Percentage: floatPtr(120)}},
		{"no rule", SetQuotaInput{QuotaType: "GENDER", QuotaKey: "F"}},
		{"min above max", SetQuotaInput{QuotaType: "REGION", QuotaKey: "North", MinCount: intPtr(3), MaxCount: intPtr(2)}},
	}
	for _, tc := range cases {
		in := tc.input
		in.CycleID = cycle.ID
		in.SubjectID = subject.ID
		_, err := env.svc.SetQuota(context.Background(), in)
		if !errs.IsKind(err, errs.KindInvalidInput) {
			t.Fatalf("%s: SetQuota() error = %v, want invalid input", tc.name, err)
		}
	}
}

func TestSetQuotaUpsertsByKey(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	cycle := env.cycle(t, 1, 0)
	subject := env.subject(t, "PHY")

	first, err := env.svc.SetQuota(ctx, SetQuotaInput{CycleID: cycle.ID, SubjectID: subject.ID, QuotaType: "region", QuotaKey: "North", MaxCount: intPtr(2)})
	if err != nil {
		t.Fatalf("SetQuota() error = %v", err)
	}
	second, err := env.svc.SetQuota(ctx, SetQuotaInput{CycleID: cycle.ID, SubjectID: subject.ID, QuotaType: "REGION", QuotaKey: "North", MaxCount: intPtr(5)})
	if err != nil {
		t.Fatalf("SetQuota() error = %v", err)
	}
	if first.ID != second.ID || second.MaxCount == nil || *second.MaxCount != 5 {
		t.Fatalf("SetQuota() upsert = %+v then %+v", first, second)
	}

	quotas, err := env.svc.ListQuotas(ctx, cycle.ID, subject.ID)
	if err != nil {
		t.Fatalf("ListQuotas() error = %v", err)
	}
	if len(quotas) != 1 || !strings.Contains(quotas[0].String(), "max=5") {
		t.Fatalf("ListQuotas() = %+v", quotas)
	}
}

func TestQuotaComplianceWithoutRules(t *testing.T) {
	env := setupEnv(t)
	cycle := env.cycle(t, 2, 0)
	subject := env.subject(t, "BIO")
	env.examiner(t, subject, examinerSpec{name: "a", score: 90})
	env.examiner(t, subject, examinerSpec{name: "b", score: 80})
	env.run(t, cycle, subject)

	report, err := env.svc.QuotaCompliance(context.Background(), cycle.ID, subject.ID)
	if err != nil {
		t.Fatalf("QuotaCompliance() error = %v", err)
	}
	if !report.Compliant || report.ApprovedCount != 2 || len(report.Violations) != 0 {
		t.Fatalf("QuotaCompliance() = %+v", report)
	}
}

func TestValidateQuotasMaxCountPersistsWithUnrelatedExaminer(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	cycle := env.cycle(t, 4, 0)
	subject := env.subject(t, "GEO")
	n1 := env.examiner(t, subject, examinerSpec{name: "n1", region: "North", score: 1})
	n2 := env.examiner(t, subject, examinerSpec{name: "n2", region: "North", score: 1})
	n3 := env.examiner(t, subject, examinerSpec{name: "n3", region: "North", score: 1})
	s1 := env.examiner(t, subject, examinerSpec{name: "s1", region: "South", score: 1})
	env.quota(t, cycle, subject, SetQuotaInput{QuotaType: "REGION", QuotaKey: "North", MaxCount: intPtr(2)})

	ok, violations, err := env.svc.ValidateQuotas(ctx, cycle.ID, subject.ID, []uint64{n1.ID, n2.ID, n3.ID})
	if err != nil || ok || len(violations) != 1 {
		t.Fatalf("ValidateQuotas(3 North) ok=%v violations=%+v err=%v", ok, violations, err)
	}

	ok, violations, err = env.svc.ValidateQuotas(ctx, cycle.ID, subject.ID, []uint64{n1.ID, n2.ID, n3.ID, s1.ID})
	if err != nil || ok || len(violations) != 1 || violations[0].QuotaKey != "North" {
		t.Fatalf("ValidateQuotas(+South) ok=%v violations=%+v err=%v", ok, violations, err)
	}
}

func TestListAllocationsFiltersByStatus(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	cycle := env.cycle(t, 1, 0)
	subject := env.subject(t, "ECO")
	env.examiner(t, subject, examinerSpec{name: "a", score: 90})
	env.examiner(t, subject, examinerSpec{name: "b", score: 80})
	env.examiner(t, subject, examinerSpec{name: "c", score: 70})
	env.run(t, cycle, subject)

	waitlisted, err := env.svc.ListAllocations(ctx, ListAllocationsInput{CycleID: cycle.ID, SubjectID: subject.ID, Status: "waitlisted"})
	if err != nil {
		t.Fatalf("ListAllocations() error = %v", err)
	}
	if len(waitlisted) != 2 || waitlisted[0].Rank != 2 || waitlisted[1].Rank != 3 {
		t.Fatalf("ListAllocations(WAITLISTED) = %+v", waitlisted)
	}
	if waitlisted[0].ExaminerName != "b" {
		t.Fatalf("examiner name = %q", waitlisted[0].ExaminerName)
	}

	_, err = env.svc.ListAllocations(ctx, ListAllocationsInput{CycleID: cycle.ID, Status: "REJECTED"})
	if !errs.IsKind(err, errs.KindInvalidInput) {
		t.Fatalf("ListAllocations(REJECTED) error = %v", err)
	}
}

func TestRunAllocationPercentageQuotaIsAFloor(t *testing.T) {
	env := setupEnv(t)
	cycle := env.cycle(t, 1, 0)
	subject := env.subject(t, "GEOG")
	south := env.examiner(t, subject, examinerSpec{name: "south", region: "South", score: 90})
	north := env.examiner(t, subject, examinerSpec{name: "north", region: "North", score: 80})
	env.quota(t, cycle, subject, SetQuotaInput{QuotaType: "REGION", QuotaKey: "North", Percentage: floatPtr(50)})

	env.run(t, cycle, subject)

	got := statusByExaminer(env.allocations(t, cycle, subject))
	if got[south.ID] != domain.StatusWaitlisted || got[north.ID] != domain.StatusApproved {
		t.Fatalf("statuses = %v, want south WAITLISTED and north APPROVED", got)
	}
}
