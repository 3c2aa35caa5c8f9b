package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"markalloc/internal/errs"
	"markalloc/internal/infrastructure/persistence/sqlite/model"
	"markalloc/internal/ports"
)

// ScoreTableOracle serves scores computed upstream and stored in examiner_scores.
// An examiner without a stored score ranks with 0.
type ScoreTableOracle struct {
	db *gorm.DB
}

var _ ports.ScoringOracle = (*ScoreTableOracle)(nil)

func NewScoreTableOracle(db *gorm.DB) *ScoreTableOracle {
	return &ScoreTableOracle{db: db}
}

func (o *ScoreTableOracle) Score(ctx context.Context, examinerID uint64, subjectID uint64, year int) (float64, error) {
	db, err := dbFromContext(ctx, o.db)
	if err != nil {
		return 0, err
	}

	var row model.ExaminerScore
	if err := db.
		Where("examiner_id = ? AND subject_id = ? AND year = ?", examinerID, subjectID, year).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, errs.Wrapf(err, "query score examiner=%d subject=%d year=%d", examinerID, subjectID, year)
	}
	return row.Score, nil
}
