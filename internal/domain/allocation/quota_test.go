package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func member(id uint64, region, gender string) Member {
	return Member{ExaminerID: id, Region: region, Gender: gender}
}

func TestEvaluateQuotasWithoutRulesIsCompliant(t *testing.T) {
	violations := EvaluateQuotas(nil, []Member{member(1, "North", "F")})
	assert.Empty(t, violations)
}

func TestEvaluateQuotasMaxCountPersistsWhenUnrelatedMemberAdded(t *testing.T) {
	rules := []QuotaRule{{Type: QuotaRegion, Key: "North", MaxCount: intPtr(2)}}
	members := []Member{
		member(1, "North", "F"),
		member(2, "North", "M"),
		member(3, "North", "F"),
	}

	before := EvaluateQuotas(rules, members)
	assert.Len(t, before, 1)

	after := EvaluateQuotas(rules, append(members, member(4, "South", "M")))
	if assert.Len(t, after, 1) {
		assert.Equal(t, RuleMaxCount, after[0].Rule)
		assert.Equal(t, "North", after[0].QuotaKey)
		assert.Equal(t, 3.0, after[0].Actual)
		assert.Equal(t, 2.0, after[0].Limit)
	}
}

func TestEvaluateQuotasChecksRulesIndependently(t *testing.T) {
	rules := []QuotaRule{
		{Type: QuotaGender, Key: "F", MinCount: intPtr(2), Percentage: floatPtr(50)},
	}
	violations := EvaluateQuotas(rules, []Member{
		member(1, "North", "F"),
		member(2, "North", "M"),
		member(3, "South", "M"),
	})

	if assert.Len(t, violations, 2) {
		assert.Equal(t, RuleMinCount, violations[0].Rule)
		assert.Equal(t, RulePercentage, violations[1].Rule)
		assert.InDelta(t, 33.33, violations[1].Actual, 0.01)
	}
}

func TestEvaluateQuotasPercentageIsFloorOnly(t *testing.T) {
	rules := []QuotaRule{{Type: QuotaRegion, Key: "East", Percentage: floatPtr(25)}}
	all := []Member{member(1, "East", "F"), member(2, "East", "M")}
	assert.Empty(t, EvaluateQuotas(rules, all))
}

func TestEvaluateQuotasPercentageSkippedForEmptySet(t *testing.T) {
	rules := []QuotaRule{{Type: QuotaRegion, Key: "East", Percentage: floatPtr(25)}}
	assert.Empty(t, EvaluateQuotas(rules, nil))
}

func TestEvaluateQuotasMinCountOnEmptySet(t *testing.T) {
	rules := []QuotaRule{{Type: QuotaRegion, Key: "East", MinCount: intPtr(1)}}
	violations := EvaluateQuotas(rules, nil)
	assert.Len(t, violations, 1)
}

func TestUnionMembersDeduplicates(t *testing.T) {
	out := UnionMembers(
		[]Member{member(1, "North", "F"), member(2, "South", "M")},
		[]Member{member(2, "South", "M"), member(3, "East", "F")},
	)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{out[0].ExaminerID, out[1].ExaminerID, out[2].ExaminerID})
}
