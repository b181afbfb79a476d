// Package rings normalizes raw per-dimension market signals into the six
// bounded ring scores every downstream consumer shares. All ring math lives
// here so grading and reporting never recompute scores with different
// rounding.
package rings

import (
	"math"
	"strings"

	"perception/internal/types"
)

// Source carries the raw inputs for one asset/timeframe. Nil pointers mean
// "not provided"; NaN values are treated the same way.
type Source struct {
	Direction types.Direction

	// Breakdown components from market metrics.
	Trend      *float64
	Momentum   *float64
	Volatility *float64
	Pattern    *float64

	PatternType string

	BiasScore       *float64
	BiasScoreAtTime *float64
	BalanceScore    *float64
	Confidence      *float64
}

// Meta describes how one ring value was obtained.
type Meta struct {
	Quality   string `json:"quality"`
	Timeframe string `json:"timeframe"`
}

// MetaSet holds per-ring provenance.
type MetaSet struct {
	Trend      Meta `json:"trend"`
	Event      Meta `json:"event"`
	Bias       Meta `json:"bias"`
	Sentiment  Meta `json:"sentiment"`
	Orderflow  Meta `json:"orderflow"`
	Confidence Meta `json:"confidence"`
}

// RingScores are the six normalized [0,100] dimensions.
type RingScores struct {
	Trend      int     `json:"trend"`
	Event      int     `json:"event"`
	Bias       int     `json:"bias"`
	Sentiment  int     `json:"sentiment"`
	Orderflow  int     `json:"orderflow"`
	Confidence int     `json:"confidence"`
	Meta       MetaSet `json:"meta"`
}

const neutral = 50

// patternStrengthTable maps known pattern labels to a strength score.
var patternStrengthTable = map[string]int{
	"breakout":           85,
	"liquidity grab":     80,
	"pullback":           65,
	"range rejection":    60,
	"trend continuation": 55,
}

func present(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

func clampPercent(v *float64, fallback int) int {
	if !present(v) {
		return fallback
	}
	return clampRound(*v)
}

func clampRound(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

// Compute aggregates the source into ring scores. Pure, no failure path:
// every missing input falls back to the neutral midpoint.
func Compute(src Source) RingScores {
	trend := clampPercent(src.Trend, neutral)
	bias := resolveBias(src)
	out := RingScores{
		Trend:      trend,
		Event:      resolveEvent(src),
		Bias:       bias,
		Sentiment:  resolveSentiment(src, bias),
		Orderflow:  resolveOrderflow(src),
		Confidence: clampPercent(src.Confidence, neutral),
	}
	out.Meta = buildMeta(src)
	return out
}

// resolveEvent blends volatility shock, momentum divergence and pattern
// strength: 0.4/0.35/0.25. With neither trend/momentum nor a pattern the
// ring stays neutral.
func resolveEvent(src Source) int {
	hasMomentumPair := present(src.Trend) || present(src.Momentum)
	hasPattern := present(src.Pattern) || strings.TrimSpace(src.PatternType) != ""
	if !hasMomentumPair && !hasPattern {
		return neutral
	}
	shock := volatilityShock(src.Volatility)
	divergence := momentumDivergence(src.Trend, src.Momentum)
	pattern := patternStrength(src)
	return clampRound(0.4*float64(shock) + 0.35*float64(divergence) + 0.25*float64(pattern))
}

// volatilityShock rescales the upper volatility band: values at or below 40
// carry no shock, everything above stretches onto [0,100].
func volatilityShock(volatility *float64) int {
	vol := clampPercent(volatility, neutral)
	if vol <= 40 {
		return 0
	}
	return clampRound(float64(vol-40) * 2)
}

func momentumDivergence(trend, momentum *float64) int {
	t := clampPercent(trend, neutral)
	m := clampPercent(momentum, neutral)
	return clampRound(math.Abs(float64(t-m)) * 1.2)
}

func patternStrength(src Source) int {
	if key := strings.ToLower(strings.TrimSpace(src.PatternType)); key != "" {
		if mapped, ok := patternStrengthTable[key]; ok {
			return mapped
		}
	}
	if present(src.Pattern) {
		return clampRound(*src.Pattern)
	}
	return neutral
}

// resolveBias prefers the point-in-time snapshot over the current score.
func resolveBias(src Source) int {
	if present(src.BiasScoreAtTime) {
		return clampRound(*src.BiasScoreAtTime)
	}
	return clampPercent(src.BiasScore, neutral)
}

// resolveSentiment seeds a baseline from direction and tilts it toward bias
// and the trend/momentum average.
func resolveSentiment(src Source, bias int) int {
	seed := neutral
	switch src.Direction {
	case types.DirectionLong:
		seed = 60
	case types.DirectionShort:
		seed = 40
	}
	trend := clampPercent(src.Trend, neutral)
	momentum := clampPercent(src.Momentum, neutral)
	energy := float64(trend+momentum) / 2
	value := float64(seed) + 0.4*float64(bias-neutral) + 0.3*(energy-neutral)
	return clampRound(value)
}

func resolveOrderflow(src Source) int {
	if present(src.Momentum) || present(src.Volatility) {
		momentum := clampPercent(src.Momentum, neutral)
		vol := clampPercent(src.Volatility, neutral)
		return clampRound(float64(2*momentum+vol) / 3)
	}
	if present(src.BalanceScore) {
		return clampRound(*src.BalanceScore)
	}
	return neutral
}

func buildMeta(src Source) MetaSet {
	quality := func(ok bool) string {
		if ok {
			return "live"
		}
		return "fallback"
	}
	return MetaSet{
		Trend:      Meta{Quality: quality(present(src.Trend)), Timeframe: "daily"},
		Event:      Meta{Quality: quality(present(src.Volatility) || src.PatternType != ""), Timeframe: "daily"},
		Bias:       Meta{Quality: quality(present(src.BiasScoreAtTime) || present(src.BiasScore)), Timeframe: "daily"},
		Sentiment:  Meta{Quality: "derived", Timeframe: "daily"},
		Orderflow:  Meta{Quality: quality(present(src.Momentum) || present(src.BalanceScore)), Timeframe: "intraday"},
		Confidence: Meta{Quality: quality(present(src.Confidence)), Timeframe: "unknown"},
	}
}
