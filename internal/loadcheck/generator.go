package loadcheck

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/okian/puzzlerating/internal/adapters/wire"
	"github.com/okian/puzzlerating/internal/domain/rating"
)

// profile draws metrics for one region of the formula.
type profile struct {
	name                string
	successMin, success float64
	hintsMax            float64
	attemptsMin         float64
	attempts            float64
	diffMin, diff       float64
	highMax, veryMax    int
}

// Profiles cover the easy, neutral, hard and very-low-success bands, plus
// records that lean on the rating-difference bonus.
var profiles = []profile{ //nolint:gochecknoglobals // fixed generator table
	{name: "easy", successMin: 70, success: 30, hintsMax: 3, attemptsMin: 1, attempts: 0.5, diffMin: -200, diff: 250},
	{name: "neutral", successMin: 40, success: 30, hintsMax: 2, attemptsMin: 1, attempts: 1, diffMin: -100, diff: 200, highMax: 3, veryMax: 1},
	{name: "hard", successMin: 25, success: 15, hintsMax: 4, attemptsMin: 1, attempts: 2, diffMin: -50, diff: 350, highMax: 4, veryMax: 2},
	{name: "struggling", successMin: 0, success: 25, hintsMax: 5, attemptsMin: 1.5, attempts: 3.5, diffMin: 0, diff: 800, highMax: 5, veryMax: 3},
	{name: "upset", successMin: 0, success: 100, hintsMax: 1, attemptsMin: 1, attempts: 2, diffMin: 200, diff: 800, highMax: 6, veryMax: 4},
}

// Generate returns n cases cycling through every profile. The metrics are a
// pure function of seed; case ids are fresh UUIDs.
func Generate(ctx context.Context, n int, seed uint64) ([]Case, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible test data
	cases := make([]Case, n)
	for i := range cases {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		p := profiles[i%len(profiles)]
		m := p.draw(rng)
		cases[i] = Case{
			ID:       uuid.NewString(),
			Profile:  p.name,
			Record:   wire.NewRecord(m),
			Expected: rating.Compute(m),
		}
	}
	return cases, nil
}

func (p profile) draw(rng *rand.Rand) rating.Metrics {
	return rating.Metrics{
		SuccessRate:            round2(p.successMin + rng.Float64()*p.success),
		AvgHints:               round2(rng.Float64() * p.hintsMax),
		AvgAttempts:            round2(p.attemptsMin + rng.Float64()*p.attempts),
		AvgRatingDiff:          round2(p.diffMin + rng.Float64()*p.diff),
		HighRatedSuccesses:     rng.IntN(p.highMax + 1),
		VeryHighRatedSuccesses: rng.IntN(p.veryMax + 1),
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
