// Package orderflow derives a flow score, mode and conflict flags from daily
// candles. CLV (close location value), relative volume, range expansion and
// flow consistency are blended with per-category weights; the resulting flags
// feed the playbook conflict gates.
package orderflow

import (
	"math"

	"perception/internal/market"
)

// Flow modes.
const (
	ModeBuyers   = "buyers"
	ModeSellers  = "sellers"
	ModeBalanced = "balanced"
)

// Flags raised on the metrics.
const (
	FlagTrendAlignment = "orderflow_trend_alignment"
	FlagTrendConflict  = "orderflow_trend_conflict"
	FlagBiasAlignment  = "orderflow_bias_alignment"
	FlagBiasConflict   = "orderflow_bias_conflict"
	FlagVolumeSurge    = "volume_surge"
	FlagVolumeDry      = "volume_dry"
	FlagChoppy         = "choppy"
	FlagExpansion      = "expansion"
)

// Reason categories.
const (
	CategoryVolume         = "volume"
	CategoryPriceAction    = "price_action"
	CategoryStructure      = "structure"
	CategoryTrendAlignment = "trend_alignment"
	CategoryTrendConflict  = "trend_conflict"
)

const maxReasonDetails = 4

// ReasonDetail is one categorized explanation line.
type ReasonDetail struct {
	Category string `json:"category"`
	Text     string `json:"text"`
}

// Metrics is the orderflow read for one asset.
type Metrics struct {
	FlowScore     int            `json:"flowScore"`
	Mode          string         `json:"mode"`
	CLV           float64        `json:"clv"`         // -100..100
	RelVolume     float64        `json:"relVolume"`   // multiple of average volume
	Expansion     float64        `json:"expansion"`   // range ratio x100, 0..200
	Consistency   float64        `json:"consistency"` // 0..100 dominance of one side
	Reasons       []string       `json:"reasons"`
	ReasonDetails []ReasonDetail `json:"reasonDetails"`
	Flags         []string       `json:"flags,omitempty"`
	Profile       string         `json:"profile"`
	Samples       int            `json:"samples"`
}

// HasFlag reports whether the given flag was raised.
func (m Metrics) HasFlag(flag string) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// HasNegativeFlag reports whether any conflict-class flag was raised.
func (m Metrics) HasNegativeFlag() bool {
	return m.HasFlag(FlagTrendConflict) || m.HasFlag(FlagBiasConflict) ||
		m.HasFlag(FlagChoppy) || m.HasFlag(FlagVolumeDry)
}

type profileConfig struct {
	lookback       int
	minSamples     int
	multiCLVWindow int
	volumeLookback int
	rangeLookback  int

	clvWeight      float64
	multiCLVWeight float64
	volumeWeight   float64
	rangeWeight    float64
	trendWeight    float64

	strongCLVThreshold   float64
	volumeSurgeThreshold float64
	volumeDryThreshold   float64
	expansionThreshold   float64

	choppyWindow    int
	choppyTolerance float64
}

var profileConfigs = map[string]profileConfig{
	"default": {
		lookback: 60, minSamples: 25, multiCLVWindow: 5, volumeLookback: 30, rangeLookback: 20,
		clvWeight: 30, multiCLVWeight: 15, volumeWeight: 20, rangeWeight: 15, trendWeight: 10,
		strongCLVThreshold: 0.15, volumeSurgeThreshold: 1.25, volumeDryThreshold: 0.8,
		expansionThreshold: 1.35, choppyWindow: 6, choppyTolerance: 0.35,
	},
	"index": {
		lookback: 60, minSamples: 25, multiCLVWindow: 5, volumeLookback: 30, rangeLookback: 20,
		clvWeight: 30, multiCLVWeight: 15, volumeWeight: 22, rangeWeight: 15, trendWeight: 12,
		strongCLVThreshold: 0.15, volumeSurgeThreshold: 1.3, volumeDryThreshold: 0.75,
		expansionThreshold: 1.4, choppyWindow: 6, choppyTolerance: 0.35,
	},
	"fx": {
		lookback: 50, minSamples: 25, multiCLVWindow: 6, volumeLookback: 25, rangeLookback: 20,
		clvWeight: 26, multiCLVWeight: 14, volumeWeight: 15, rangeWeight: 18, trendWeight: 12,
		strongCLVThreshold: 0.12, volumeSurgeThreshold: 1.2, volumeDryThreshold: 0.85,
		expansionThreshold: 1.3, choppyWindow: 7, choppyTolerance: 0.4,
	},
	"commodity": {
		lookback: 60, minSamples: 25, multiCLVWindow: 5, volumeLookback: 30, rangeLookback: 20,
		clvWeight: 28, multiCLVWeight: 16, volumeWeight: 22, rangeWeight: 18, trendWeight: 12,
		strongCLVThreshold: 0.14, volumeSurgeThreshold: 1.35, volumeDryThreshold: 0.8,
		expansionThreshold: 1.45, choppyWindow: 6, choppyTolerance: 0.35,
	},
	"crypto": {
		lookback: 60, minSamples: 25, multiCLVWindow: 5, volumeLookback: 30, rangeLookback: 20,
		clvWeight: 30, multiCLVWeight: 15, volumeWeight: 25, rangeWeight: 15, trendWeight: 10,
		strongCLVThreshold: 0.12, volumeSurgeThreshold: 1.4, volumeDryThreshold: 0.7,
		expansionThreshold: 1.35, choppyWindow: 6, choppyTolerance: 0.35,
	},
}

// Build computes orderflow metrics from ascending daily candles. trendScore
// and biasScore are optional context used only for alignment/conflict flags.
func Build(candles []market.Candle, category string, trendScore, biasScore *float64) Metrics {
	cfg, ok := profileConfigs[category]
	profile := category
	if !ok {
		cfg = profileConfigs["default"]
		profile = "default"
	}

	series := normalize(candles, cfg.lookback)
	if len(series) < cfg.minSamples {
		text := "insufficient daily history for a robust flow signal"
		return Metrics{
			FlowScore:     50,
			Mode:          ModeBalanced,
			RelVolume:     1,
			Consistency:   50,
			Reasons:       []string{text},
			ReasonDetails: []ReasonDetail{{Category: CategoryStructure, Text: text}},
			Profile:       profile,
			Samples:       len(series),
		}
	}

	clvSeries := make([]float64, len(series))
	for i, c := range series {
		clvSeries[i] = closeLocationValue(c)
	}
	latest := series[len(series)-1]
	latestCLV := clvSeries[len(clvSeries)-1]
	multiCLV := mean(tail(clvSeries, cfg.multiCLVWindow))
	relVolume := relativeVolume(series, cfg.volumeLookback)
	avgRange := averageRange(series, cfg.rangeLookback)
	latestRange := latest.High - latest.Low
	rangeRatio := 1.0
	if avgRange > 0 {
		rangeRatio = latestRange / avgRange
	}
	trendComponent := (dailyTrendScore(series) - 50) / 50
	recentCLV := tail(clvSeries, cfg.choppyWindow)
	consistency := dominance(recentCLV)
	choppy := detectChoppy(recentCLV, cfg.choppyTolerance)

	score := 50.0
	score += latestCLV * cfg.clvWeight
	score += multiCLV * cfg.multiCLVWeight
	score += (relVolume - 1) * cfg.volumeWeight
	score += (rangeRatio - 1) * cfg.rangeWeight
	score += trendComponent * cfg.trendWeight
	flowScore := int(math.Max(0, math.Min(100, math.Round(score))))

	mode := ModeBalanced
	switch {
	case flowScore >= 60 && latestCLV >= cfg.strongCLVThreshold:
		mode = ModeBuyers
	case flowScore <= 40 && latestCLV <= -cfg.strongCLVThreshold:
		mode = ModeSellers
	}

	flags := collectFlags(mode, relVolume, rangeRatio, choppy, cfg, trendScore, biasScore)

	m := Metrics{
		FlowScore:   flowScore,
		Mode:        mode,
		CLV:         round1(latestCLV * 100),
		RelVolume:   round2(relVolume),
		Expansion:   round1(math.Min(2, math.Max(0, rangeRatio)) * 100),
		Consistency: round1(consistency * 100),
		Flags:       flags,
		Profile:     profile,
		Samples:     len(series),
	}

	switch {
	case latestCLV >= cfg.strongCLVThreshold:
		m.pushReason(CategoryPriceAction, "strong up-day closing near highs")
	case latestCLV <= -cfg.strongCLVThreshold:
		m.pushReason(CategoryPriceAction, "strong down-day closing near lows")
	}
	switch {
	case relVolume >= cfg.volumeSurgeThreshold:
		m.pushReason(CategoryVolume, "volume above recent average")
	case relVolume <= cfg.volumeDryThreshold:
		m.pushReason(CategoryVolume, "volume lighter than average")
	}
	if rangeRatio >= cfg.expansionThreshold {
		m.pushReason(CategoryStructure, "range expansion day")
	}
	if choppy {
		m.pushReason(CategoryStructure, "series of mixed daily flows")
	}
	if m.HasFlag(FlagTrendAlignment) {
		m.pushReason(CategoryTrendAlignment, "daily flow aligns with prevailing trend")
	} else if m.HasFlag(FlagTrendConflict) {
		m.pushReason(CategoryTrendConflict, "daily flow diverges from prevailing trend")
	}
	if m.HasFlag(FlagBiasConflict) && !m.HasFlag(FlagTrendConflict) {
		m.pushReason(CategoryTrendConflict, "daily flow conflicts with directional bias")
	}
	if len(m.ReasonDetails) == 0 {
		m.pushReason(CategoryStructure, "daily flow neutral")
	}
	return m
}

func (m *Metrics) pushReason(category, text string) {
	if len(m.ReasonDetails) >= maxReasonDetails {
		return
	}
	for _, d := range m.ReasonDetails {
		if d.Text == text {
			return
		}
	}
	m.ReasonDetails = append(m.ReasonDetails, ReasonDetail{Category: category, Text: text})
	m.Reasons = append(m.Reasons, text)
}

func collectFlags(mode string, relVolume, rangeRatio float64, choppy bool, cfg profileConfig, trendScore, biasScore *float64) []string {
	var flags []string
	add := func(f string) { flags = append(flags, f) }

	if trendScore != nil && !math.IsNaN(*trendScore) {
		switch {
		case *trendScore >= 60:
			if mode == ModeBuyers {
				add(FlagTrendAlignment)
			} else if mode == ModeSellers {
				add(FlagTrendConflict)
			}
		case *trendScore <= 40:
			if mode == ModeSellers {
				add(FlagTrendAlignment)
			} else if mode == ModeBuyers {
				add(FlagTrendConflict)
			}
		}
	}
	if biasScore != nil && !math.IsNaN(*biasScore) {
		switch {
		case *biasScore >= 60:
			if mode == ModeBuyers {
				add(FlagBiasAlignment)
			} else if mode == ModeSellers {
				add(FlagBiasConflict)
			}
		case *biasScore <= 40:
			if mode == ModeSellers {
				add(FlagBiasAlignment)
			} else if mode == ModeBuyers {
				add(FlagBiasConflict)
			}
		}
	}
	switch {
	case relVolume >= cfg.volumeSurgeThreshold:
		add(FlagVolumeSurge)
	case relVolume <= cfg.volumeDryThreshold:
		add(FlagVolumeDry)
	}
	if rangeRatio >= cfg.expansionThreshold {
		add(FlagExpansion)
	}
	if choppy {
		add(FlagChoppy)
	}
	return flags
}

// normalize keeps the trailing lookback window of finite candles, ascending.
func normalize(candles []market.Candle, lookback int) []market.Candle {
	sorted := append([]market.Candle(nil), candles...)
	market.SortAscending(sorted)
	out := make([]market.Candle, 0, len(sorted))
	for _, c := range sorted {
		if !c.FiniteRange() || math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) {
			continue
		}
		out = append(out, c)
	}
	if len(out) > lookback {
		out = out[len(out)-lookback:]
	}
	return out
}

func closeLocationValue(c market.Candle) float64 {
	r := c.High - c.Low
	if r <= 0 {
		return 0
	}
	v := (2*c.Close - c.Low - c.High) / r
	return math.Max(-1, math.Min(1, v))
}

func relativeVolume(series []market.Candle, lookback int) float64 {
	if len(series) == 0 {
		return 1
	}
	window := series
	if len(window) > lookback {
		window = window[len(window)-lookback:]
	}
	var sum float64
	for _, c := range window {
		sum += c.Volume
	}
	avg := sum / float64(len(window))
	if avg <= 0 {
		return 1
	}
	rel := series[len(series)-1].Volume / avg
	return math.Max(0.2, math.Min(5, rel))
}

func averageRange(series []market.Candle, lookback int) float64 {
	if len(series) == 0 {
		return 0
	}
	window := series
	if len(window) > lookback {
		window = window[len(window)-lookback:]
	}
	var sum float64
	for _, c := range window {
		sum += c.High - c.Low
	}
	return sum / float64(len(window))
}

func dailyTrendScore(series []market.Candle) float64 {
	const lookback = 30
	if len(series) < 2 {
		return 50
	}
	pastIdx := len(series) - 1 - lookback
	if pastIdx < 0 {
		pastIdx = 0
	}
	past := series[pastIdx].Close
	latest := series[len(series)-1].Close
	if past == 0 {
		return 50
	}
	pct := (latest - past) / past * 100
	return math.Max(0, math.Min(100, 50+pct))
}

// dominance measures how one-sided the CLV window is, 0..1.
func dominance(clvs []float64) float64 {
	if len(clvs) == 0 {
		return 0.5
	}
	positives := 0
	for _, v := range clvs {
		if v >= 0 {
			positives++
		}
	}
	negatives := len(clvs) - positives
	return math.Abs(float64(positives-negatives)) / float64(len(clvs))
}

func detectChoppy(clvs []float64, tolerance float64) bool {
	positives, negatives := 0, 0
	for _, v := range clvs {
		if v >= 0.05 {
			positives++
		} else if v <= -0.05 {
			negatives++
		}
	}
	total := positives + negatives
	if total == 0 {
		return false
	}
	balance := math.Abs(float64(positives-negatives)) / float64(total)
	return balance <= tolerance
}

func tail(values []float64, n int) []float64 {
	if len(values) > n {
		return values[len(values)-n:]
	}
	return values
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
