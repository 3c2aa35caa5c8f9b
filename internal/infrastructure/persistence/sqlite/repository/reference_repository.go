package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/infrastructure/persistence/sqlite/model"
	"markalloc/internal/ports"
)

// ReferenceRepository upserts the reference rows the allocation core reads.
type ReferenceRepository struct {
	db *gorm.DB
}

var _ ports.ReferenceRepository = (*ReferenceRepository)(nil)

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) SaveCycle(ctx context.Context, cycle ports.MarkingCycle) (ports.MarkingCycle, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.MarkingCycle{}, err
	}

	now := time.Now().UTC()
	status := cycle.Status
	if status == "" {
		status = domain.CycleOpen
	}
	row := model.MarkingCycle{
		ID:              cycle.ID,
		Year:            cycle.Year,
		Status:          string(status),
		TotalRequired:   cycle.TotalRequired,
		ExperienceRatio: cycle.ExperienceRatio,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"year", "status", "total_required", "experience_ratio", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return ports.MarkingCycle{}, errs.Wrap(err, "upsert marking cycle")
	}
	return mapCycle(row), nil
}

func (r *ReferenceRepository) SaveSubject(ctx context.Context, subject ports.Subject) (ports.Subject, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Subject{}, err
	}

	row := model.Subject{
		ID:   subject.ID,
		Code: subject.Code,
		Name: subject.Name,
		Type: subject.Type,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "name", "type"}),
	}).Create(&row).Error; err != nil {
		return ports.Subject{}, errs.Wrap(err, "upsert subject")
	}
	return mapSubject(row), nil
}

func (r *ReferenceRepository) SaveExaminer(ctx context.Context, examiner ports.Examiner) (ports.Examiner, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Examiner{}, err
	}

	status := examiner.Status
	if status == "" {
		status = domain.ExaminerActive
	}
	row := model.Examiner{
		ID:       examiner.ID,
		FullName: examiner.FullName,
		Status:   string(status),
		Region:   examiner.Region,
		Gender:   examiner.Gender,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "status", "region", "gender"}),
	}).Create(&row).Error; err != nil {
		return ports.Examiner{}, errs.Wrap(err, "upsert examiner")
	}
	return mapExaminer(row), nil
}

func (r *ReferenceRepository) SetEligibility(ctx context.Context, examinerID uint64, subjectID uint64, eligible bool) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.ExaminerSubjectEligibility{
		ExaminerID: examinerID,
		SubjectID:  subjectID,
		Eligible:   eligible,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "examiner_id"}, {Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"eligible"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert eligibility")
	}
	return nil
}

func (r *ReferenceRepository) SaveHistory(ctx context.Context, history ports.ExaminerHistory) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.ExaminerSubjectHistory{
		ExaminerID:     history.ExaminerID,
		SubjectID:      history.SubjectID,
		TimesMarked:    history.TimesMarked,
		LastMarkedYear: history.LastMarkedYear,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "examiner_id"}, {Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"times_marked", "last_marked_year"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert examiner history")
	}
	return nil
}

func (r *ReferenceRepository) SaveQuota(ctx context.Context, quota ports.SubjectQuota) (ports.SubjectQuota, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.SubjectQuota{}, err
	}

	row := model.SubjectQuota{
		CycleID:    quota.CycleID,
		SubjectID:  quota.SubjectID,
		QuotaType:  string(quota.QuotaType),
		QuotaKey:   quota.QuotaKey,
		MinCount:   quota.MinCount,
		MaxCount:   quota.MaxCount,
		Percentage: quota.Percentage,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "cycle_id"},
			{Name: "subject_id"},
			{Name: "quota_type"},
			{Name: "quota_key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"min_count", "max_count", "percentage"}),
	}).Create(&row).Error; err != nil {
		return ports.SubjectQuota{}, errs.Wrap(err, "upsert subject quota")
	}

	var saved model.SubjectQuota
	if err := db.Where(
		"cycle_id = ? AND subject_id = ? AND quota_type = ? AND quota_key = ?",
		row.CycleID, row.SubjectID, row.QuotaType, row.QuotaKey,
	).Take(&saved).Error; err != nil {
		return ports.SubjectQuota{}, errs.Wrap(err, "reload subject quota")
	}
	return mapQuota(saved), nil
}

func (r *ReferenceRepository) SaveScore(ctx context.Context, examinerID uint64, subjectID uint64, year int, score float64) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.ExaminerScore{
		ExaminerID: examinerID,
		SubjectID:  subjectID,
		Year:       year,
		Score:      score,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "examiner_id"}, {Name: "subject_id"}, {Name: "year"}},
		DoUpdates: clause.AssignmentColumns([]string{"score"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert examiner score")
	}
	return nil
}
