package allocation

import (
	"math"

	"markalloc/internal/errs"
)

// Capacity is the per-run slot split between experienced and new examiners.
type Capacity struct {
	Experienced int
	New         int
}

func (c Capacity) Total() int { return c.Experienced + c.New }

// SplitCapacity reserves floor(total*ratio) slots for experienced examiners and
// gives the remainder to new examiners. Unused experienced slots do not spill over.
func SplitCapacity(totalRequired int, experienceRatio float64) (Capacity, error) {
	if totalRequired < 0 {
		return Capacity{}, errs.InvalidInput("total_required must be >= 0, got %d", totalRequired)
	}
	if math.IsNaN(experienceRatio) || experienceRatio < 0 || experienceRatio > 1 {
		return Capacity{}, errs.InvalidInput("experience_ratio must be within [0,1], got %v", experienceRatio)
	}

	experienced := int(math.Floor(float64(totalRequired) * experienceRatio))
	return Capacity{
		Experienced: experienced,
		New:         totalRequired - experienced,
	}, nil
}
