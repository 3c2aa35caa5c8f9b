package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markalloc/internal/errs"
)

func TestSplitCapacity(t *testing.T) {
	cases := []struct {
		total int
		ratio float64
		exp   int
		fresh int
	}{
		{total: 4, ratio: 0.5, exp: 2, fresh: 2},
		{total: 5, ratio: 0.5, exp: 2, fresh: 3},
		{total: 10, ratio: 0.7, exp: 7, fresh: 3},
		{total: 3, ratio: 0, exp: 0, fresh: 3},
		{total: 3, ratio: 1, exp: 3, fresh: 0},
		{total: 0, ratio: 0.6, exp: 0, fresh: 0},
	}
	for _, tc := range cases {
		got, err := SplitCapacity(tc.total, tc.ratio)
		require.NoError(t, err)
		assert.Equal(t, tc.exp, got.Experienced, "total=%d ratio=%v", tc.total, tc.ratio)
		assert.Equal(t, tc.fresh, got.New, "total=%d ratio=%v", tc.total, tc.ratio)
		assert.Equal(t, tc.total, got.Total())
	}
}

func TestSplitCapacityRejectsOutOfRangeRatio(t *testing.T) {
	_, err := SplitCapacity(4, 1.5)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))

	_, err = SplitCapacity(-1, 0.5)
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))
}
