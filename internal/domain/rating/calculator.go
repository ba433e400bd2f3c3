package rating

import "math"

// Success-rate bands driving the base adjustment.
const (
	easyThreshold = 70.0 // above: puzzle too easy, rating drops
	hardThreshold = 40.0 // below: puzzle too hard, rating rises

	easyMalusPerPoint = 3.0
	easyMalusCap      = 200.0
	hardBonusPerPoint = 20.0
	hardBonusCap      = 800.0
)

// Attempt multipliers for the hard band.
const (
	manyAttempts       = 2.0
	someAttempts       = 1.0
	manyAttemptsFactor = 2.5
	someAttemptsFactor = 1.8
)

// Hint penalty.
const (
	hintThreshold  = 1.0
	hintPerHint    = 30.0
	hintPenaltyCap = 100.0
)

// Rating-difference bonus.
const (
	ratingDiffFactor     = 1.5
	ratingDiffCap        = 1000.0
	veryHighBonus        = 800.0
	highBonus            = 600.0
	anyHighBonus         = 400.0
	veryHighBonusMin     = 2
	highBonusMin         = 3
	consistentRate       = 50.0
	fairRate             = 30.0
	consistentMultiplier = 2.0
	fairMultiplier       = 1.5
	poorMultiplier       = 1.2
)

// Minimum-increase floor, listed in priority order.
const (
	veryLowRate       = 25.0
	floorVeryHigh     = 600.0
	floorVeryLowRate  = 800.0
	floorManyAttempts = 400.0
	floorDefault      = 300.0
)

// Challenge bonus for struggling on hard puzzles.
const (
	challengePerAttempt = 80.0
	challengeCap        = 400.0
)

// Breakdown records what each stage of the adjustment contributed.
// Contributions are signed and sum with the floor lift to Delta.
type Breakdown struct {
	Base           int  `json:"base"`
	HintPenalty    int  `json:"hintPenalty"`
	RatingBonus    int  `json:"ratingBonus"`
	FloorApplied   bool `json:"floorApplied"`
	Floor          int  `json:"floor"`
	FloorLift      int  `json:"floorLift"`
	ChallengeBonus int  `json:"challengeBonus"`
	Delta          int  `json:"ratingDelta"`
}

// Compute returns the rating delta for m. It is a pure function of its input.
func Compute(m Metrics) int {
	return Explain(m).Delta
}

// Explain runs the adjustment and reports every stage's contribution.
func Explain(m Metrics) Breakdown {
	var b Breakdown

	delta := baseAdjustment(m)
	b.Base = int(delta)

	if m.AvgHints > hintThreshold {
		penalty := math.Min(hintPenaltyCap, math.Floor(m.AvgHints*hintPerHint))
		delta -= penalty
		b.HintPenalty = -int(penalty)
	}

	if m.AvgRatingDiff > 0 {
		bonus := ratingDiffBonus(m)
		delta += bonus
		b.RatingBonus = int(bonus)
	}

	if floor, ok := minimumIncrease(m); ok {
		b.FloorApplied = true
		b.Floor = int(floor)
		lifted := math.Max(delta, floor)
		b.FloorLift = int(lifted - delta)
		delta = lifted
	}

	if m.AvgAttempts > manyAttempts && m.SuccessRate < hardThreshold {
		challenge := math.Min(challengeCap, math.Floor(m.AvgAttempts*challengePerAttempt))
		delta += challenge
		b.ChallengeBonus = int(challenge)
	}

	b.Delta = int(delta)
	return b
}

func baseAdjustment(m Metrics) float64 {
	switch {
	case m.SuccessRate > easyThreshold:
		return -math.Min(easyMalusCap, math.Floor((m.SuccessRate-easyThreshold)*easyMalusPerPoint))
	case m.SuccessRate < hardThreshold:
		base := math.Min(hardBonusCap, math.Floor((hardThreshold-m.SuccessRate)*hardBonusPerPoint))
		return math.Floor(base * attemptMultiplier(m.AvgAttempts))
	default:
		return 0
	}
}

func attemptMultiplier(avgAttempts float64) float64 {
	switch {
	case avgAttempts > manyAttempts:
		return manyAttemptsFactor
	case avgAttempts > someAttempts:
		return someAttemptsFactor
	default:
		return 1.0
	}
}

func ratingDiffBonus(m Metrics) float64 {
	base := math.Min(ratingDiffCap, math.Floor(m.AvgRatingDiff*ratingDiffFactor))

	var bonus float64
	switch {
	case m.VeryHighRatedSuccesses >= veryHighBonusMin:
		bonus = veryHighBonus
	case m.HighRatedSuccesses >= highBonusMin:
		bonus = highBonus
	case m.HighRatedSuccesses > 0:
		bonus = anyHighBonus
	}

	consistency := poorMultiplier
	switch {
	case m.SuccessRate > consistentRate:
		consistency = consistentMultiplier
	case m.SuccessRate > fairRate:
		consistency = fairMultiplier
	}

	return math.Floor((base + bonus) * consistency)
}

// minimumIncrease reports the enforced floor, if any. The floor is chosen by
// trigger priority, not by magnitude: a very-high-rated success selects 600
// even when a low success rate alone would select 800.
func minimumIncrease(m Metrics) (float64, bool) {
	if !(m.SuccessRate < veryLowRate || m.VeryHighRatedSuccesses > 0 || m.AvgAttempts > manyAttempts) {
		return 0, false
	}
	switch {
	case m.VeryHighRatedSuccesses > 0:
		return floorVeryHigh, true
	case m.SuccessRate < veryLowRate:
		return floorVeryLowRate, true
	case m.AvgAttempts > manyAttempts:
		return floorManyAttempts, true
	default:
		return floorDefault, true
	}
}
