// Package levels turns a direction, reference price and volatility context
// into an entry zone, stop-loss and take-profit. A coarse daily band is the
// baseline; an optional 4H refinement may reshape the band but only inside an
// ATR-derived ceiling, so refinement can never silently widen risk.
package levels

import (
	"math"

	"github.com/shopspring/decimal"

	"perception/internal/logger"
	"perception/internal/market"
	"perception/internal/types"
)

const (
	atrPeriod = 14

	minBandPct = 0.002
	maxBandPct = 0.08

	fallbackBaseBand  = 0.005
	fallbackExtraBand = 0.015

	// Refinement multiplier limits versus the baseline band.
	refinementMinMultiplier = 0.5
	refinementMaxMultiplier = 1.2

	// ATR ceiling: refined band may not exceed 1.5x the ATR percentage.
	atrCeilingFactor = 1.5

	// Share of the recent 4H high/low range used as the refined band.
	refinementRangeShare = 0.25
	refinementLookback   = 30

	minRiskFraction = 1e-4
)

// Refinement outcome reasons.
const (
	ReasonApplied        = "applied"
	ReasonBoundsExceeded = "bounds_exceeded"
	ReasonMissing        = "missing"
	ReasonTriggerSkipped = "trigger_skipped"
	ReasonNotAttempted   = "not_attempted"
)

// Params are the inputs for one levels computation.
type Params struct {
	Direction       types.Direction
	ReferencePrice  float64
	VolatilityScore *float64
	Category        string
	Profile         types.Profile
	DailyCandles    []market.Candle
	Refinement4H    []market.Candle
}

// Zone is a price band.
type Zone struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// RiskReward summarizes the final level distances.
type RiskReward struct {
	RiskPercent     float64 `json:"riskPercent"`
	RewardPercent   float64 `json:"rewardPercent"`
	RRR             float64 `json:"rrr"`
	VolatilityLabel string  `json:"volatilityLabel"`
}

// RefinementEffect records how refinement reshaped (or would have reshaped)
// the band.
type RefinementEffect struct {
	BandPctMultiplier float64 `json:"bandPctMultiplier"`
	BoundsMode        string  `json:"boundsMode"`
}

// Debug is the audit trail. Every field is populated on every call.
type Debug struct {
	BandPct                 float64          `json:"bandPct"`
	BaselineBandPct         float64          `json:"baselineBandPct"`
	ATRPct                  float64          `json:"atrPct"`
	ReferencePrice          float64          `json:"referencePrice"`
	Category                string           `json:"category"`
	RefinementUsed          bool             `json:"refinementUsed"`
	RefinementAttempted     bool             `json:"refinementAttempted"`
	RefinementAttemptReason string           `json:"refinementAttemptReason"`
	RefinementSkippedReason string           `json:"refinementSkippedReason"`
	LevelsRefinementApplied bool             `json:"levelsRefinementApplied"`
	LevelsRefinementReason  string           `json:"levelsRefinementReason"`
	RefinementEffect        RefinementEffect `json:"refinementEffect"`
}

// Levels is the engine output.
type Levels struct {
	EntryZone  Zone       `json:"entryZone"`
	StopLoss   float64    `json:"stopLoss"`
	TakeProfit float64    `json:"takeProfit"`
	RiskReward RiskReward `json:"riskReward"`
	Debug      Debug      `json:"debug"`
}

var categoryBandFactor = map[string]float64{
	"crypto":    1.25,
	"index":     0.85,
	"fx":        0.6,
	"commodity": 1.0,
}

var profileBandFactor = map[types.Profile]float64{
	types.ProfileSwing:    1.0,
	types.ProfileIntraday: 0.55,
	types.ProfilePosition: 1.4,
}

// Compute derives levels for a setup. A non-positive or non-finite reference
// price yields zero levels with a populated debug record rather than an error.
func Compute(p Params) Levels {
	price := p.ReferencePrice
	if !(price > 0) || math.IsInf(price, 0) {
		logger.Warnf("levels: invalid reference price %v (category=%s)", p.ReferencePrice, p.Category)
		return Levels{Debug: Debug{
			Category:                p.Category,
			ReferencePrice:          p.ReferencePrice,
			RefinementSkippedReason: ReasonTriggerSkipped,
			LevelsRefinementReason:  ReasonNotAttempted,
		}}
	}

	atrPct := resolveATRPct(p.DailyCandles, price)
	baseline := baselineBandPct(atrPct, p.VolatilityScore, p.Category, p.Profile)

	band := baseline
	debug := Debug{
		BaselineBandPct:        baseline,
		ATRPct:                 atrPct,
		ReferencePrice:         price,
		Category:               p.Category,
		LevelsRefinementReason: ReasonNotAttempted,
	}

	switch {
	case !p.Profile.IsSwing():
		debug.RefinementSkippedReason = ReasonTriggerSkipped
	case len(p.Refinement4H) == 0:
		debug.RefinementSkippedReason = ReasonMissing
	default:
		debug.RefinementAttempted = true
		debug.RefinementAttemptReason = "profile_swing"
		multiplier, ok := refinementMultiplier(p.Refinement4H, price, baseline)
		if !ok {
			debug.RefinementSkippedReason = ReasonMissing
			break
		}
		debug.RefinementUsed = true
		ceiling, mode := refinementCeiling(atrPct, baseline)
		debug.RefinementEffect = RefinementEffect{BandPctMultiplier: multiplier, BoundsMode: mode}
		if multiplier > ceiling {
			// Computed but not applied: baseline levels stay untouched.
			debug.LevelsRefinementReason = ReasonBoundsExceeded
			break
		}
		if multiplier < refinementMinMultiplier {
			multiplier = refinementMinMultiplier
			debug.RefinementEffect.BandPctMultiplier = multiplier
		}
		band = baseline * multiplier
		debug.LevelsRefinementApplied = true
		debug.LevelsRefinementReason = ReasonApplied
	}

	debug.BandPct = band
	out := placeLevels(p.Direction, price, band)
	out.Debug = debug
	out.RiskReward = deriveRiskReward(price, out.EntryZone, out.StopLoss, out.TakeProfit)
	return out
}

func resolveATRPct(daily []market.Candle, price float64) float64 {
	atr, err := market.ATR(daily, atrPeriod)
	if err != nil || atr <= 0 {
		return 0
	}
	return atr / price
}

func baselineBandPct(atrPct float64, volatility *float64, category string, profile types.Profile) float64 {
	factor := bandFactor(category, profile)
	var band float64
	if atrPct > 0 {
		band = atrPct * factor
	} else {
		vol := 50.0
		if volatility != nil && !math.IsNaN(*volatility) && !math.IsInf(*volatility, 0) {
			vol = math.Max(0, math.Min(100, *volatility))
		}
		band = (fallbackBaseBand + vol/100*fallbackExtraBand) * factor
	}
	return math.Max(minBandPct, math.Min(maxBandPct, band))
}

func bandFactor(category string, profile types.Profile) float64 {
	cat, ok := categoryBandFactor[category]
	if !ok {
		cat = 1.0
	}
	prof, ok := profileBandFactor[profile]
	if !ok {
		prof = 1.0
	}
	return cat * prof
}

// refinementMultiplier derives the refined band from the recent 4H high/low
// range and expresses it as a multiple of the baseline band.
func refinementMultiplier(candles []market.Candle, price, baseline float64) (float64, bool) {
	window := candles
	if len(window) > refinementLookback {
		window = window[len(window)-refinementLookback:]
	}
	hi := math.Inf(-1)
	lo := math.Inf(1)
	for _, c := range window {
		if !c.FiniteRange() {
			continue
		}
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	if !(hi > lo) || baseline <= 0 {
		return 0, false
	}
	refined := (hi - lo) / price * refinementRangeShare
	if refined <= 0 {
		return 0, false
	}
	return refined / baseline, true
}

// refinementCeiling returns the maximum allowed multiplier and the bounds
// mode used to derive it. With ATR data the ceiling is ATR-derived (atr1d
// mode); without it only the static cap applies.
func refinementCeiling(atrPct, baseline float64) (float64, string) {
	if atrPct > 0 && baseline > 0 {
		ceil := atrPct * atrCeilingFactor / baseline
		return math.Min(refinementMaxMultiplier, ceil), "atr1d"
	}
	return refinementMaxMultiplier, "baseline"
}

func placeLevels(direction types.Direction, price, band float64) Levels {
	p := decimal.NewFromFloat(price)
	half := decimal.NewFromFloat(band / 2)
	full := decimal.NewFromFloat(band)
	one := decimal.NewFromInt(1)

	entryLow, _ := p.Mul(one.Sub(half)).Float64()
	entryHigh, _ := p.Mul(one.Add(half)).Float64()

	var stop, target decimal.Decimal
	switch direction {
	case types.DirectionShort:
		stop = p.Mul(one.Add(full.Mul(decimal.NewFromInt(2))))
		target = p.Mul(one.Sub(full.Mul(decimal.NewFromInt(3))))
	case types.DirectionLong:
		stop = p.Mul(one.Sub(full.Mul(decimal.NewFromInt(2))))
		target = p.Mul(one.Add(full.Mul(decimal.NewFromInt(3))))
	default:
		stop = p.Mul(one.Sub(full))
		target = p.Mul(one.Add(full))
	}
	stopF, _ := stop.Float64()
	targetF, _ := target.Float64()
	return Levels{
		EntryZone:  Zone{Low: entryLow, High: entryHigh},
		StopLoss:   stopF,
		TakeProfit: targetF,
	}
}

func deriveRiskReward(price float64, entry Zone, stop, target float64) RiskReward {
	mid := (entry.Low + entry.High) / 2
	riskFloor := price * minRiskFraction
	risk := math.Max(math.Abs(mid-stop), riskFloor)
	reward := math.Abs(target - mid)
	riskPct := risk / mid * 100
	rewardPct := reward / mid * 100
	return RiskReward{
		RiskPercent:     round2(riskPct),
		RewardPercent:   round2(rewardPct),
		RRR:             round2(reward / risk),
		VolatilityLabel: volatilityLabel(riskPct),
	}
}

func volatilityLabel(riskPct float64) string {
	switch {
	case riskPct < 1:
		return "low"
	case riskPct < 2.5:
		return "medium"
	default:
		return "high"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
