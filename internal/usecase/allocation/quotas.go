package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"markalloc/internal/bootstrap/logging"
	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

type SetQuotaInput struct {
	CycleID    uint64   `json:"cycle_id" validate:"required"`
	SubjectID  uint64   `json:"subject_id" validate:"required"`
	QuotaType  string   `json:"quota_type" validate:"required,oneof=REGION GENDER"`
	QuotaKey   string   `json:"quota_key" validate:"required,max=64"`
	MinCount   *int     `json:"min_count,omitempty" validate:"omitempty,min=0"`
	MaxCount   *int     `json:"max_count,omitempty" validate:"omitempty,min=0"`
	Percentage *float64 `json:"percentage,omitempty" validate:"omitempty,min=0,max=100"`
}

type QuotaItem struct {
	ID         uint64           `json:"id"`
	CycleID    uint64           `json:"cycle_id"`
	SubjectID  uint64           `json:"subject_id"`
	QuotaType  domain.QuotaType `json:"quota_type"`
	QuotaKey   string           `json:"quota_key"`
	MinCount   *int             `json:"min_count,omitempty"`
	MaxCount   *int             `json:"max_count,omitempty"`
	Percentage *float64         `json:"percentage,omitempty"`
}

// SetQuota creates or replaces the rule for (cycle, subject, type, key).
func (s *Service) SetQuota(ctx context.Context, input SetQuotaInput) (QuotaItem, error) {
	if err := s.checkReady(ctx); err != nil {
		return QuotaItem{}, err
	}
	if s.ref == nil {
		return QuotaItem{}, errors.New("reference repository is required")
	}

	input.QuotaType = normalizeQuotaType(input.QuotaType)
	input.QuotaKey = strings.TrimSpace(input.QuotaKey)
	if err := s.validateQuota(input); err != nil {
		return QuotaItem{}, err
	}

	if _, err := s.loadCycle(ctx, input.CycleID); err != nil {
		return QuotaItem{}, err
	}
	if _, err := s.loadSubject(ctx, input.SubjectID); err != nil {
		return QuotaItem{}, err
	}

	unlock := s.locks.lock(input.CycleID)
	defer unlock()

	saved, err := s.ref.SaveQuota(ctx, ports.SubjectQuota{
		CycleID:    input.CycleID,
		SubjectID:  input.SubjectID,
		QuotaType:  domain.QuotaType(input.QuotaType),
		QuotaKey:   input.QuotaKey,
		MinCount:   input.MinCount,
		MaxCount:   input.MaxCount,
		Percentage: input.Percentage,
	})
	if err != nil {
		return QuotaItem{}, errs.Wrap(err, "save subject quota")
	}

	logging.Info(
		logging.WithScope(ctx, input.CycleID, input.SubjectID),
		"subject quota saved",
		slog.String("quota_type", input.QuotaType),
		slog.String("quota_key", input.QuotaKey),
	)
	return toQuotaItem(saved), nil
}

// ListQuotas returns the configured rules for (cycle, subject).
func (s *Service) ListQuotas(ctx context.Context, cycleID uint64, subjectID uint64) ([]QuotaItem, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListQuotas(ctx, cycleID, subjectID)
	if err != nil {
		return nil, errs.Wrap(err, "list subject quotas")
	}
	items := make([]QuotaItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toQuotaItem(row))
	}
	return items, nil
}

func (s *Service) validateQuota(input SetQuotaInput) error {
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errs.InvalidInput("invalid quota: field %s failed %q", fe.Field(), fe.Tag())
		}
		return errs.Wrap(err, "validate quota")
	}
	if input.MinCount == nil && input.MaxCount == nil && input.Percentage == nil {
		return errs.InvalidInput("invalid quota: one of min_count, max_count or percentage is required")
	}
	if input.MinCount != nil && input.MaxCount != nil && *input.MinCount > *input.MaxCount {
		return errs.InvalidInput("invalid quota: min_count %d exceeds max_count %d", *input.MinCount, *input.MaxCount)
	}
	return nil
}

func toQuotaItem(q ports.SubjectQuota) QuotaItem {
	return QuotaItem{
		ID:         q.ID,
		CycleID:    q.CycleID,
		SubjectID:  q.SubjectID,
		QuotaType:  q.QuotaType,
		QuotaKey:   q.QuotaKey,
		MinCount:   q.MinCount,
		MaxCount:   q.MaxCount,
		Percentage: q.Percentage,
	}
}

func (q QuotaItem) String() string {
	var parts []string
	if q.MinCount != nil {
		parts = append(parts, fmt.Sprintf("min=%d", *q.MinCount))
	}
	if q.MaxCount != nil {
		parts = append(parts, fmt.Sprintf("max=%d", *q.MaxCount))
	}
	if q.Percentage != nil {
		parts = append(parts, fmt.Sprintf("pct>=%.2f", *q.Percentage))
	}
	return fmt.Sprintf("%s=%s %s", q.QuotaType, q.QuotaKey, strings.Join(parts, " "))
}

func normalizeQuotaType(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
