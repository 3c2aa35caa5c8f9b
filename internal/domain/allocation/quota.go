package allocation

import "fmt"

// QuotaRule is one configured fairness constraint for a (cycle, subject).
// Any subset of MinCount, MaxCount and Percentage may be set.
type QuotaRule struct {
	Type       QuotaType
	Key        string
	MinCount   *int
	MaxCount   *int
	Percentage *float64
}

// Member is the part of an examiner a quota rule can see.
type Member struct {
	ExaminerID uint64
	Region     string
	Gender     string
}

type RuleKind string

const (
	RuleMinCount   RuleKind = "min_count"
	RuleMaxCount   RuleKind = "max_count"
	RulePercentage RuleKind = "percentage"
)

// Violation describes one unmet rule. Violations are results, not errors.
type Violation struct {
	QuotaType QuotaType `json:"quota_type"`
	QuotaKey  string    `json:"quota_key"`
	Rule      RuleKind  `json:"rule"`
	Limit     float64   `json:"limit"`
	Actual    float64   `json:"actual"`
	Message   string    `json:"message"`
}

func (r QuotaRule) matches(m Member) bool {
	switch r.Type {
	case QuotaRegion:
		return m.Region == r.Key
	case QuotaGender:
		return m.Gender == r.Key
	default:
		return false
	}
}

// UnionMembers merges approved and proposed members, keeping the first occurrence of each examiner.
func UnionMembers(approved []Member, proposed []Member) []Member {
	out := make([]Member, 0, len(approved)+len(proposed))
	seen := make(map[uint64]struct{}, len(approved)+len(proposed))
	for _, group := range [][]Member{approved, proposed} {
		for _, m := range group {
			if _, ok := seen[m.ExaminerID]; ok {
				continue
			}
			seen[m.ExaminerID] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// EvaluateQuotas checks every rule against the resulting member set.
// An empty rule set is always compliant.
func EvaluateQuotas(rules []QuotaRule, members []Member) []Violation {
	if len(rules) == 0 {
		return nil
	}

	total := len(members)
	var violations []Violation
	for _, rule := range rules {
		matching := 0
		for _, m := range members {
			if rule.matches(m) {
				matching++
			}
		}

		if rule.MinCount != nil && matching < *rule.MinCount {
			violations = append(violations, Violation{
				QuotaType: rule.Type,
				QuotaKey:  rule.Key,
				Rule:      RuleMinCount,
				Limit:     float64(*rule.MinCount),
				Actual:    float64(matching),
				Message:   fmt.Sprintf("%s %q requires at least %d examiners, has %d", rule.Type, rule.Key, *rule.MinCount, matching),
			})
		}
		if rule.MaxCount != nil && matching > *rule.MaxCount {
			violations = append(violations, Violation{
				QuotaType: rule.Type,
				QuotaKey:  rule.Key,
				Rule:      RuleMaxCount,
				Limit:     float64(*rule.MaxCount),
				Actual:    float64(matching),
				Message:   fmt.Sprintf("%s %q allows at most %d examiners, has %d", rule.Type, rule.Key, *rule.MaxCount, matching),
			})
		}
		if rule.Percentage != nil && total > 0 {
			share := float64(matching) / float64(total) * 100
			if share < *rule.Percentage {
				violations = append(violations, Violation{
					QuotaType: rule.Type,
					QuotaKey:  rule.Key,
					Rule:      RulePercentage,
					Limit:     *rule.Percentage,
					Actual:    share,
					Message:   fmt.Sprintf("%s %q requires at least %.2f%% of examiners, has %.2f%%", rule.Type, rule.Key, *rule.Percentage, share),
				})
			}
		}
	}
	return violations
}
