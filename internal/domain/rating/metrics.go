// Package rating computes puzzle rating adjustments from aggregated
// performance metrics.
package rating

import (
	"fmt"
	"math"
)

// Bounds for the success rate percentage.
const (
	minSuccessRate = 0
	maxSuccessRate = 100
)

// Metrics is the aggregated performance record a rating adjustment is
// computed from. Rates are percentages or averages, counts are whole numbers.
type Metrics struct {
	SuccessRate            float64 // percentage of attempts solved, 0-100
	AvgHints               float64 // average hints used per attempt
	AvgAttempts            float64 // average attempts per puzzle
	AvgRatingDiff          float64 // puzzle rating minus player rating, averaged
	HighRatedSuccesses     int     // solves well above the player's rating
	VeryHighRatedSuccesses int     // solves far above the player's rating
}

// Validate checks the record against the data model constraints.
// Returned errors wrap ErrInvalidInput.
func (m Metrics) Validate() error {
	floats := []struct {
		name string
		val  float64
	}{
		{"successRate", m.SuccessRate},
		{"avgHints", m.AvgHints},
		{"avgAttempts", m.AvgAttempts},
		{"avgRatingDiff", m.AvgRatingDiff},
	}
	for _, f := range floats {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidInput, f.name)
		}
	}

	switch {
	case m.SuccessRate < minSuccessRate || m.SuccessRate > maxSuccessRate:
		return fmt.Errorf("%w: successRate %v outside [0, 100]", ErrInvalidInput, m.SuccessRate)
	case m.AvgHints < 0:
		return fmt.Errorf("%w: avgHints must not be negative", ErrInvalidInput)
	case m.AvgAttempts < 0:
		return fmt.Errorf("%w: avgAttempts must not be negative", ErrInvalidInput)
	case m.HighRatedSuccesses < 0:
		return fmt.Errorf("%w: highRatedSuccesses must not be negative", ErrInvalidInput)
	case m.VeryHighRatedSuccesses < 0:
		return fmt.Errorf("%w: veryHighRatedSuccesses must not be negative", ErrInvalidInput)
	}
	return nil
}
