package allocation

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/pelletier/go-toml/v2"

	"markalloc/internal/bootstrap/logging"
	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

type datasetCycle struct {
	ID              uint64  `toml:"id"`
	Year            int     `toml:"year"`
	Status          string  `toml:"status"`
	TotalRequired   int     `toml:"total_required"`
	ExperienceRatio float64 `toml:"experience_ratio"`
}

type datasetSubject struct {
	ID   uint64 `toml:"id"`
	Code string `toml:"code"`
	Name string `toml:"name"`
	Type string `toml:"type"`
}

type datasetExaminer struct {
	ID       uint64 `toml:"id"`
	FullName string `toml:"full_name"`
	Status   string `toml:"status"`
	Region   string `toml:"region"`
	Gender   string `toml:"gender"`
	// Subjects lists the subject ids the examiner is eligible for.
	Subjects []uint64 `toml:"subjects"`
}

type datasetHistory struct {
	ExaminerID     uint64 `toml:"examiner_id"`
	SubjectID      uint64 `toml:"subject_id"`
	TimesMarked    int    `toml:"times_marked"`
	LastMarkedYear *int   `toml:"last_marked_year"`
}

type datasetQuota struct {
	CycleID    uint64   `toml:"cycle_id"`
	SubjectID  uint64   `toml:"subject_id"`
	QuotaType  string   `toml:"quota_type"`
	QuotaKey   string   `toml:"quota_key"`
	MinCount   *int     `toml:"min_count"`
	MaxCount   *int     `toml:"max_count"`
	Percentage *float64 `toml:"percentage"`
}

type datasetScore struct {
	ExaminerID uint64  `toml:"examiner_id"`
	SubjectID  uint64  `toml:"subject_id"`
	Year       int     `toml:"year"`
	Score      float64 `toml:"score"`
}

// Dataset is the reference data a deployment seeds before running allocations.
type Dataset struct {
	Cycles    []datasetCycle    `toml:"cycles"`
	Subjects  []datasetSubject  `toml:"subjects"`
	Examiners []datasetExaminer `toml:"examiners"`
	History   []datasetHistory  `toml:"history"`
	Quotas    []datasetQuota    `toml:"quotas"`
	Scores    []datasetScore    `toml:"scores"`
}

type ImportSummary struct {
	Cycles      int `json:"cycles"`
	Subjects    int `json:"subjects"`
	Examiners   int `json:"examiners"`
	Eligibility int `json:"eligibility"`
	History     int `json:"history"`
	Quotas      int `json:"quotas"`
	Scores      int `json:"scores"`
}

// ParseDataset decodes a TOML dataset, rejecting unknown keys.
func ParseDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ds); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return Dataset{}, errs.InvalidInput("dataset has unknown fields: %s", strictErr.String())
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return Dataset{}, errs.InvalidInput("dataset line %d column %d: %s", row, col, decodeErr.Error())
		}
		return Dataset{}, errs.Wrap(err, "decode dataset")
	}
	return ds, nil
}

// ImportDataset upserts every record of ds in one transaction. Quotas go through the same
// validation as SetQuota.
func (s *Service) ImportDataset(ctx context.Context, ds Dataset) (ImportSummary, error) {
	if err := s.checkReady(ctx); err != nil {
		return ImportSummary{}, err
	}
	if s.ref == nil {
		return ImportSummary{}, errors.New("reference repository is required")
	}

	for _, q := range ds.Quotas {
		if err := s.validateQuota(q.input()); err != nil {
			return ImportSummary{}, err
		}
	}

	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.allocation.import"))

	var summary ImportSummary
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		for _, c := range ds.Cycles {
			status := domain.CycleOpen
			if c.Status != "" {
				parsed, err := domain.ParseCycleStatus(c.Status)
				if err != nil {
					return err
				}
				status = parsed
			}
			if _, err := domain.SplitCapacity(c.TotalRequired, c.ExperienceRatio); err != nil {
				return errs.Wrapf(err, "cycle %d", c.ID)
			}
			if _, err := s.ref.SaveCycle(txCtx, ports.MarkingCycle{
				ID:              c.ID,
				Year:            c.Year,
				Status:          status,
				TotalRequired:   c.TotalRequired,
				ExperienceRatio: c.ExperienceRatio,
			}); err != nil {
				return err
			}
			summary.Cycles++
		}

		for _, sub := range ds.Subjects {
			if _, err := s.ref.SaveSubject(txCtx, ports.Subject{ID: sub.ID, Code: sub.Code, Name: sub.Name, Type: sub.Type}); err != nil {
				return err
			}
			summary.Subjects++
		}

		for _, e := range ds.Examiners {
			status := domain.ExaminerActive
			if e.Status != "" {
				parsed, err := domain.ParseExaminerStatus(e.Status)
				if err != nil {
					return err
				}
				status = parsed
			}
			if _, err := s.ref.SaveExaminer(txCtx, ports.Examiner{
				ID:       e.ID,
				FullName: e.FullName,
				Status:   status,
				Region:   e.Region,
				Gender:   e.Gender,
			}); err != nil {
				return err
			}
			summary.Examiners++

			for _, subjectID := range e.Subjects {
				if err := s.ref.SetEligibility(txCtx, e.ID, subjectID, true); err != nil {
					return err
				}
				summary.Eligibility++
			}
		}

		for _, h := range ds.History {
			if err := s.ref.SaveHistory(txCtx, ports.ExaminerHistory{
				ExaminerID:     h.ExaminerID,
				SubjectID:      h.SubjectID,
				TimesMarked:    h.TimesMarked,
				LastMarkedYear: h.LastMarkedYear,
			}); err != nil {
				return err
			}
			summary.History++
		}

		for _, q := range ds.Quotas {
			in := q.input()
			if _, err := s.ref.SaveQuota(txCtx, ports.SubjectQuota{
				CycleID:    in.CycleID,
				SubjectID:  in.SubjectID,
				QuotaType:  domain.QuotaType(in.QuotaType),
				QuotaKey:   in.QuotaKey,
				MinCount:   in.MinCount,
				MaxCount:   in.MaxCount,
				Percentage: in.Percentage,
			}); err != nil {
				return err
			}
			summary.Quotas++
		}

		for _, sc := range ds.Scores {
			if err := s.ref.SaveScore(txCtx, sc.ExaminerID, sc.SubjectID, sc.Year, sc.Score); err != nil {
				return err
			}
			summary.Scores++
		}
		return nil
	}); err != nil {
		logging.Warn(ctx, "dataset import failed", slog.Any("err", errs.Loggable(err)))
		return ImportSummary{}, err
	}

	logging.Info(ctx, "dataset imported",
		slog.Int("cycles", summary.Cycles),
		slog.Int("subjects", summary.Subjects),
		slog.Int("examiners", summary.Examiners),
		slog.Int("quotas", summary.Quotas),
		slog.Int("scores", summary.Scores),
	)
	return summary, nil
}

func (q datasetQuota) input() SetQuotaInput {
	return SetQuotaInput{
		CycleID:    q.CycleID,
		SubjectID:  q.SubjectID,
		QuotaType:  normalizeQuotaType(q.QuotaType),
		QuotaKey:   q.QuotaKey,
		MinCount:   q.MinCount,
		MaxCount:   q.MaxCount,
		Percentage: q.Percentage,
	}
}
