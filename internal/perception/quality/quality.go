// Package quality folds ring scores into a single graded signal-quality
// verdict. The adjustment rules run in a fixed order so repeated evaluations
// of the same rings are reproducible.
package quality

import (
	"math"

	"perception/internal/perception/rings"
	"perception/internal/types"
)

// Grade buckets the quality score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// Reason codes, emitted in rule order.
const (
	ReasonTrendBiasConflict = "trend_bias_conflict"
	ReasonTrendBiasAligned  = "trend_bias_aligned"
	ReasonOrderflowStrong   = "orderflow_strong"
	ReasonOrderflowWeak     = "orderflow_weak"
	ReasonEventRiskElevated = "event_risk_elevated"
	ReasonSentimentExtreme  = "sentiment_extreme"
	ReasonLowConfidence     = "confidence_low"
	ReasonStableContext     = "stable_context"
)

// SignalQuality is the scorer's output. Grade is always the step function of
// Score; Reasons lists the rules that fired, or a single stable-context code.
type SignalQuality struct {
	Grade   Grade    `json:"grade"`
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// penaltyTable captures the profile-dependent rule constants. Keeping the
// asymmetry in data rather than scattered conditionals keeps the swing floor
// auditable.
type penaltyTable struct {
	divergenceGate       int
	divergenceNeedsFlag  bool
	divergenceExclusive  bool // gate compares with > instead of >=
	divergencePenalty    float64
	lowConfidencePenalty float64
	lowConfidenceFloor   int // applied only when low confidence is the sole negative
}

var penaltyTables = map[types.Profile]penaltyTable{
	types.ProfileSwing: {
		divergenceGate:       25,
		divergenceNeedsFlag:  true,
		divergencePenalty:    12,
		lowConfidencePenalty: 3,
		lowConfidenceFloor:   60,
	},
	types.ProfileIntraday: {
		divergenceGate:       30,
		divergenceExclusive:  true,
		divergencePenalty:    10,
		lowConfidencePenalty: 5,
	},
	types.ProfilePosition: {
		divergenceGate:       30,
		divergenceExclusive:  true,
		divergencePenalty:    10,
		lowConfidencePenalty: 5,
	},
}

func tableFor(profile types.Profile) penaltyTable {
	if t, ok := penaltyTables[profile]; ok {
		return t
	}
	return penaltyTables[types.ProfileIntraday]
}

// Compute derives signal quality from the rings. conflict marks an explicit
// trend/bias conflict indicator supplied by the orchestration layer.
func Compute(r rings.RingScores, profile types.Profile, conflict bool) SignalQuality {
	table := tableFor(profile)
	base := float64(r.Trend+r.Bias+r.Sentiment+r.Orderflow+r.Confidence) / 5

	adjusted := base
	reasons := make([]string, 0, 4)
	negatives := 0

	// 1. Trend/bias divergence.
	delta := absInt(r.Trend - r.Bias)
	divergent := delta >= table.divergenceGate
	if table.divergenceExclusive {
		divergent = delta > table.divergenceGate
	}
	if table.divergenceNeedsFlag {
		divergent = divergent && conflict
	}
	switch {
	case divergent:
		adjusted -= table.divergencePenalty
		negatives++
		reasons = append(reasons, ReasonTrendBiasConflict)
	case r.Trend > 60 && r.Bias > 60 && delta < 15:
		adjusted += 5
		reasons = append(reasons, ReasonTrendBiasAligned)
	}

	// 2. Orderflow.
	switch {
	case r.Orderflow >= 65:
		adjusted += 3
		reasons = append(reasons, ReasonOrderflowStrong)
	case r.Orderflow <= 40:
		adjusted -= 6
		negatives++
		reasons = append(reasons, ReasonOrderflowWeak)
	}

	// 3. Event risk.
	if r.Event >= 70 {
		adjusted -= 7
		negatives++
		reasons = append(reasons, ReasonEventRiskElevated)
	}

	// 4. Sentiment extremity.
	if r.Sentiment >= 80 || r.Sentiment <= 20 {
		adjusted -= 4
		negatives++
		reasons = append(reasons, ReasonSentimentExtreme)
	}

	// 5. Low confidence. Swing setups keep a floor when this is the only
	// negative factor; other profiles count it as a generic negative.
	lowConfidenceOnly := false
	if r.Confidence <= 45 {
		adjusted -= table.lowConfidencePenalty
		reasons = append(reasons, ReasonLowConfidence)
		if table.lowConfidenceFloor > 0 && negatives == 0 {
			lowConfidenceOnly = true
		}
		if table.lowConfidenceFloor == 0 {
			negatives++
		}
	}

	score := clampScore(adjusted)
	if lowConfidenceOnly && score < table.lowConfidenceFloor {
		score = table.lowConfidenceFloor
	}
	if len(reasons) == 0 {
		reasons = append(reasons, ReasonStableContext)
	}
	return SignalQuality{Grade: GradeFor(score), Score: score, Reasons: reasons}
}

// GradeFor is the fixed step function from score to grade.
func GradeFor(score int) Grade {
	switch {
	case score >= 80:
		return GradeA
	case score >= 60:
		return GradeB
	case score >= 40:
		return GradeC
	default:
		return GradeD
	}
}

func clampScore(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
