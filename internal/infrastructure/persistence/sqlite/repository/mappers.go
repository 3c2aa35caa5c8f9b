package repository

import (
	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/infrastructure/persistence/sqlite/model"
	"markalloc/internal/ports"
)

func mapCycle(row model.MarkingCycle) ports.MarkingCycle {
	return ports.MarkingCycle{
		ID:              row.ID,
		Year:            row.Year,
		Status:          domain.CycleStatus(row.Status),
		TotalRequired:   row.TotalRequired,
		ExperienceRatio: row.ExperienceRatio,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func mapSubject(row model.Subject) ports.Subject {
	return ports.Subject{
		ID:   row.ID,
		Code: row.Code,
		Name: row.Name,
		Type: row.Type,
	}
}

func mapExaminer(row model.Examiner) ports.Examiner {
	return ports.Examiner{
		ID:       row.ID,
		FullName: row.FullName,
		Status:   domain.ExaminerStatus(row.Status),
		Region:   row.Region,
		Gender:   row.Gender,
	}
}

func mapExaminers(rows []model.Examiner) []ports.Examiner {
	items := make([]ports.Examiner, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapExaminer(row))
	}
	return items
}

func mapHistory(row model.ExaminerSubjectHistory) ports.ExaminerHistory {
	return ports.ExaminerHistory{
		ExaminerID:     row.ExaminerID,
		SubjectID:      row.SubjectID,
		TimesMarked:    row.TimesMarked,
		LastMarkedYear: row.LastMarkedYear,
	}
}

func mapQuota(row model.SubjectQuota) ports.SubjectQuota {
	return ports.SubjectQuota{
		ID:         row.ID,
		CycleID:    row.CycleID,
		SubjectID:  row.SubjectID,
		QuotaType:  domain.QuotaType(row.QuotaType),
		QuotaKey:   row.QuotaKey,
		MinCount:   row.MinCount,
		MaxCount:   row.MaxCount,
		Percentage: row.Percentage,
	}
}

func mapAllocation(row model.ExaminerAllocation) ports.Allocation {
	return ports.Allocation{
		ID:                row.ID,
		ExaminerID:        row.ExaminerID,
		CycleID:           row.CycleID,
		SubjectID:         row.SubjectID,
		Score:             row.Score,
		Rank:              row.Rank,
		Status:            domain.Status(row.AllocationStatus),
		AllocatedByUserID: row.AllocatedByUserID,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func mapAcceptance(row model.ExaminerAcceptance) ports.Acceptance {
	return ports.Acceptance{
		ID:               row.ID,
		ExaminerID:       row.ExaminerID,
		AllocationID:     row.AllocationID,
		Status:           row.Status,
		NotifiedAt:       row.NotifiedAt,
		ResponseDeadline: row.ResponseDeadline,
	}
}
