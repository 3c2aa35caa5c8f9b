package model

// All lists every table the allocation schema migrates.
func All() []any {
	return []any{
		&MarkingCycle{},
		&Subject{},
		&Examiner{},
		&ExaminerSubjectEligibility{},
		&ExaminerSubjectHistory{},
		&ExaminerScore{},
		&SubjectQuota{},
		&ExaminerAllocation{},
		&AllocationAuditLog{},
		&ExaminerAcceptance{},
		&AllocationKV{},
	}
}
