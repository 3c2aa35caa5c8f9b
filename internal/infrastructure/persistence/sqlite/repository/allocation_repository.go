package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/infrastructure/persistence/sqlite/model"
	"markalloc/internal/ports"
)

type AllocationRepository struct {
	db *gorm.DB
}

var _ ports.AllocationRepository = (*AllocationRepository)(nil)

func NewAllocationRepository(db *gorm.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

func (r *AllocationRepository) GetCycle(ctx context.Context, cycleID uint64) (ports.MarkingCycle, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.MarkingCycle{}, err
	}

	var row model.MarkingCycle
	if err := db.Where("id = ?", cycleID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.MarkingCycle{}, ports.ErrCycleNotFound
		}
		return ports.MarkingCycle{}, errs.Wrap(err, "query marking cycle")
	}
	return mapCycle(row), nil
}

func (r *AllocationRepository) GetSubject(ctx context.Context, subjectID uint64) (ports.Subject, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Subject{}, err
	}

	var row model.Subject
	if err := db.Where("id = ?", subjectID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Subject{}, ports.ErrSubjectNotFound
		}
		return ports.Subject{}, errs.Wrap(err, "query subject")
	}
	return mapSubject(row), nil
}

func (r *AllocationRepository) ListEligibleExaminers(ctx context.Context, subjectID uint64) ([]ports.Examiner, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	eligible := db.Model(&model.ExaminerSubjectEligibility{}).
		Select("examiner_id").
		Where("subject_id = ? AND eligible = ?", subjectID, true)

	var rows []model.Examiner
	if err := db.
		Where("id IN (?)", eligible).
		Where("status = ?", string(domain.ExaminerActive)).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query eligible examiners")
	}
	return mapExaminers(rows), nil
}

func (r *AllocationRepository) ListExaminersByIDs(ctx context.Context, examinerIDs []uint64) ([]ports.Examiner, error) {
	if len(examinerIDs) == 0 {
		return nil, nil
	}
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Examiner
	if err := db.Where("id IN ?", examinerIDs).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query examiners by id")
	}
	return mapExaminers(rows), nil
}

func (r *AllocationRepository) ListHistory(ctx context.Context, subjectID uint64, examinerIDs []uint64) ([]ports.ExaminerHistory, error) {
	if len(examinerIDs) == 0 {
		return nil, nil
	}
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.ExaminerSubjectHistory
	if err := db.
		Where("subject_id = ? AND examiner_id IN ?", subjectID, examinerIDs).
		Order("examiner_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query examiner history")
	}

	items := make([]ports.ExaminerHistory, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapHistory(row))
	}
	return items, nil
}

func (r *AllocationRepository) GetHistory(ctx context.Context, examinerID uint64, subjectID uint64) (ports.ExaminerHistory, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.ExaminerHistory{}, false, err
	}

	var row model.ExaminerSubjectHistory
	if err := db.Where("examiner_id = ? AND subject_id = ?", examinerID, subjectID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ExaminerHistory{}, false, nil
		}
		return ports.ExaminerHistory{}, false, errs.Wrap(err, "query examiner history row")
	}
	return mapHistory(row), true, nil
}

func (r *AllocationRepository) ListQuotas(ctx context.Context, cycleID uint64, subjectID uint64) ([]ports.SubjectQuota, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.SubjectQuota
	if err := db.
		Where("cycle_id = ? AND subject_id = ?", cycleID, subjectID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query subject quotas")
	}

	items := make([]ports.SubjectQuota, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapQuota(row))
	}
	return items, nil
}

func (r *AllocationRepository) ListAllocations(ctx context.Context, filter ports.AllocationFilter) ([]ports.Allocation, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.ExaminerAllocation{}).Where("cycle_id = ?", filter.CycleID)
	if filter.SubjectID != 0 {
		query = query.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.Status != "" {
		query = query.Where("allocation_status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.ExaminerAllocation
	if err := query.Order("subject_id asc").Order("rank asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query allocations")
	}

	items := make([]ports.Allocation, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAllocation(row))
	}
	return items, nil
}

func (r *AllocationRepository) GetAllocation(ctx context.Context, allocationID uint64) (ports.Allocation, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Allocation{}, err
	}

	var row model.ExaminerAllocation
	if err := db.Where("id = ?", allocationID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Allocation{}, ports.ErrAllocationNotFound
		}
		return ports.Allocation{}, errs.Wrap(err, "query allocation")
	}
	return mapAllocation(row), nil
}

func (r *AllocationRepository) ListAudit(ctx context.Context, filter ports.AuditFilter) ([]ports.AuditEntry, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.AllocationAuditLog{})
	if filter.CycleID != 0 {
		query = query.Where("cycle_id = ?", filter.CycleID)
	}
	if filter.SubjectID != 0 {
		query = query.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.AllocationID != 0 {
		query = query.Where("allocation_id = ?", filter.AllocationID)
	}

	var rows []model.AllocationAuditLog
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query audit log")
	}

	items := make([]ports.AuditEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.AuditEntry{
			ID:                row.ID,
			ActionType:        domain.AuditAction(row.ActionType),
			PerformedByUserID: row.PerformedByUserID,
			CycleID:           row.CycleID,
			SubjectID:         row.SubjectID,
			AllocationID:      row.AllocationID,
			ExaminerID:        row.ExaminerID,
			DetailsJSON:       []byte(row.Details),
			CreatedAt:         row.CreatedAt,
		})
	}
	return items, nil
}

func (r *AllocationRepository) HasAcceptance(ctx context.Context, allocationID uint64) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&model.ExaminerAcceptance{}).
		Where("allocation_id = ?", allocationID).
		Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "count acceptances")
	}
	return count > 0, nil
}

func (r *AllocationRepository) ListAcceptances(ctx context.Context, cycleID uint64) ([]ports.Acceptance, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	allocations := db.Model(&model.ExaminerAllocation{}).Select("id").Where("cycle_id = ?", cycleID)

	var rows []model.ExaminerAcceptance
	if err := db.
		Where("allocation_id IN (?)", allocations).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query acceptances")
	}

	items := make([]ports.Acceptance, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAcceptance(row))
	}
	return items, nil
}

func (r *AllocationRepository) CreateAllocations(ctx context.Context, rows []ports.AllocationCreate) ([]ports.Allocation, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	var created []ports.Allocation
	err := inTx(ctx, r.db, func(txCtx context.Context) error {
		db, err := dbFromContext(txCtx, r.db)
		if err != nil {
			return err
		}

		models := make([]model.ExaminerAllocation, 0, len(rows))
		for _, in := range rows {
			models = append(models, model.ExaminerAllocation{
				ExaminerID:        in.ExaminerID,
				CycleID:           in.CycleID,
				SubjectID:         in.SubjectID,
				Score:             in.Score,
				Rank:              in.Rank,
				AllocationStatus:  string(in.Status),
				AllocatedByUserID: in.AllocatedByUserID,
				CreatedAt:         in.CreatedAt,
				UpdatedAt:         in.CreatedAt,
			})
		}
		if err := db.Create(&models).Error; err != nil {
			return errs.Wrap(err, "insert allocations")
		}

		created = make([]ports.Allocation, 0, len(models))
		for _, row := range models {
			created = append(created, mapAllocation(row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *AllocationRepository) UpdateAllocationStatus(ctx context.Context, allocationID uint64, status domain.Status, updatedAt time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.ExaminerAllocation{}).
		Where("id = ?", allocationID).
		Updates(map[string]any{
			"allocation_status": string(status),
			"updated_at":        updatedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update allocation status")
	}
	if result.RowsAffected == 0 {
		return ports.ErrAllocationNotFound
	}
	return nil
}

func (r *AllocationRepository) SetCycleStatus(ctx context.Context, cycleID uint64, status domain.CycleStatus, updatedAt time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.MarkingCycle{}).
		Where("id = ?", cycleID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": updatedAt,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update marking cycle status")
	}
	if result.RowsAffected == 0 {
		return ports.ErrCycleNotFound
	}
	return nil
}

func (r *AllocationRepository) AppendAudit(ctx context.Context, input ports.AuditEntryCreate) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	details := []byte("{}")
	if input.Details != nil {
		raw, err := json.Marshal(input.Details)
		if err != nil {
			return errs.Wrap(err, "encode audit details")
		}
		details = raw
	}

	row := model.AllocationAuditLog{
		ActionType:        string(input.ActionType),
		PerformedByUserID: input.PerformedByUserID,
		CycleID:           input.CycleID,
		SubjectID:         input.SubjectID,
		AllocationID:      input.AllocationID,
		ExaminerID:        input.ExaminerID,
		Details:           datatypes.JSON(details),
		CreatedAt:         input.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert audit log")
	}
	return nil
}

func (r *AllocationRepository) IncrementHistory(ctx context.Context, examinerID uint64, subjectID uint64, year int) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	var existing model.ExaminerSubjectHistory
	err = db.Where("examiner_id = ? AND subject_id = ?", examinerID, subjectID).Take(&existing).Error
	switch {
	case err == nil:
		if err := db.Model(&model.ExaminerSubjectHistory{}).
			Where("examiner_id = ? AND subject_id = ?", examinerID, subjectID).
			Updates(map[string]any{
				"times_marked":     gorm.Expr("times_marked + ?", 1),
				"last_marked_year": year,
			}).Error; err != nil {
			return false, errs.Wrap(err, "increment examiner history")
		}
		return false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := model.ExaminerSubjectHistory{
			ExaminerID:     examinerID,
			SubjectID:      subjectID,
			TimesMarked:    1,
			LastMarkedYear: &year,
		}
		if err := db.Create(&row).Error; err != nil {
			return false, errs.Wrap(err, "insert examiner history")
		}
		return true, nil
	default:
		return false, errs.Wrap(err, "query examiner history row")
	}
}

func (r *AllocationRepository) CreateAcceptance(ctx context.Context, input ports.AcceptanceCreate) (ports.Acceptance, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Acceptance{}, false, err
	}

	row := model.ExaminerAcceptance{
		ExaminerID:       input.ExaminerID,
		AllocationID:     input.AllocationID,
		Status:           input.Status,
		NotifiedAt:       input.NotifiedAt,
		ResponseDeadline: input.ResponseDeadline,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "allocation_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return ports.Acceptance{}, false, errs.Wrap(result.Error, "insert acceptance")
	}
	if result.RowsAffected == 0 {
		return ports.Acceptance{}, false, nil
	}
	return mapAcceptance(row), true, nil
}
