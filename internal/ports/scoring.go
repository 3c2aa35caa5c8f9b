package ports

import "context"

// ScoringOracle converts an examiner's history into a merit score. The formula
// lives outside this module; callers only rely on higher being better.
type ScoringOracle interface {
	Score(ctx context.Context, examinerID uint64, subjectID uint64, year int) (float64, error)
}
