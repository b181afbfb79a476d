// Package metrics builds trend, momentum and volatility scores from
// multi-timeframe candle collections. Swing profiles read the daily/weekly
// core only; intraday profiles blend in the 4H/1H/15m series.
package metrics

import (
	"fmt"
	"math"
	"time"

	talib "github.com/markcheno/go-talib"

	"perception/internal/market"
	"perception/internal/types"
)

const (
	trendLookback        = 30
	momentumWindow       = 15
	minVolatilitySamples = 10

	dailyFreshness  = 48 * time.Hour
	hourlyFreshness = 90 * time.Minute

	swingDriftTolerancePct    = 8.0
	intradayDriftTolerancePct = 5.0
)

// CandleSet groups the candle series by timeframe, each ascending.
type CandleSet struct {
	Daily      []market.Candle
	Weekly     []market.Candle
	FourHour   []market.Candle
	OneHour    []market.Candle
	FifteenMin []market.Candle
}

// Metrics is the computed market read.
type Metrics struct {
	TrendScore      float64   `json:"trendScore"`
	MomentumScore   float64   `json:"momentumScore"`
	VolatilityScore float64   `json:"volatilityScore"`
	PriceDriftPct   float64   `json:"priceDriftPct"`
	LastPrice       *float64  `json:"lastPrice"`
	IsStale         bool      `json:"isStale"`
	Reasons         []string  `json:"reasons"`
	EvaluatedAt     time.Time `json:"evaluatedAt"`
}

// Build computes metrics for one asset. referencePrice anchors the drift
// check; a non-positive value disables it.
func Build(set CandleSet, referencePrice float64, profile types.Profile, now time.Time) Metrics {
	swing := profile.IsSwing()

	daily := finiteCloses(set.Daily)
	weekly := finiteCloses(set.Weekly)
	var fourHour, oneHour, fifteenMin []float64
	if !swing {
		fourHour = finiteCloses(set.FourHour)
		oneHour = finiteCloses(set.OneHour)
		fifteenMin = finiteCloses(set.FifteenMin)
	}

	// Daily and weekly closes form the long-horizon core series.
	core := append(append([]float64(nil), weekly...), daily...)

	var trendScores []float64
	if len(core) > 0 {
		trendScores = append(trendScores, trendScore(core))
	}
	if len(fourHour) > 0 {
		trendScores = append(trendScores, trendScore(fourHour))
	}
	if len(oneHour) > 0 {
		trendScores = append(trendScores, trendScore(oneHour))
	}

	var momentumScores []float64
	if swing {
		if len(daily) > 0 {
			momentumScores = append(momentumScores, momentumScore(daily))
		}
	} else {
		if len(oneHour) > 0 {
			momentumScores = append(momentumScores, momentumScore(oneHour))
		}
		if len(fifteenMin) > 0 {
			momentumScores = append(momentumScores, momentumScore(fifteenMin))
		}
	}

	m := Metrics{
		TrendScore:      clamp(avgOr(trendScores, 50), 0, 100),
		MomentumScore:   clamp(avgOr(momentumScores, 50), 0, 100),
		VolatilityScore: clamp(volatilityScore(core), 0, 100),
		EvaluatedAt:     now,
	}

	m.LastPrice = lastPrice(set, swing)
	if referencePrice > 0 && m.LastPrice != nil {
		m.PriceDriftPct = (*m.LastPrice - referencePrice) / referencePrice * 100
	}

	driftTolerance := intradayDriftTolerancePct
	if swing {
		driftTolerance = swingDriftTolerancePct
	}
	if len(core) == 0 && len(fourHour) == 0 && len(oneHour) == 0 {
		m.Reasons = append(m.Reasons, "no market data for trend")
	}
	if last, ok := latestCandle(set.Daily); ok && now.Sub(last.Time()) > dailyFreshness {
		m.Reasons = append(m.Reasons, "daily candle outdated")
	}
	if !swing {
		if last, ok := latestCandle(set.OneHour); ok && now.Sub(last.Time()) > hourlyFreshness {
			m.Reasons = append(m.Reasons, "1h candle outdated")
		}
	}
	if m.LastPrice != nil && math.Abs(m.PriceDriftPct) > driftTolerance {
		m.Reasons = append(m.Reasons, fmt.Sprintf("price drift %.1f%% from reference", m.PriceDriftPct))
	}
	m.IsStale = len(m.Reasons) > 0
	return m
}

// trendScore maps the percent change over the trend lookback onto 50±change.
func trendScore(closes []float64) float64 {
	return clamp(50+percentChange(closes, trendLookback), 0, 100)
}

// momentumScore doubles the short-window percent change.
func momentumScore(closes []float64) float64 {
	window := closes
	if len(window) > momentumWindow {
		window = window[len(window)-momentumWindow:]
	}
	return clamp(50+percentChange(window, momentumWindow-1)*2, 0, 100)
}

// percentChange uses talib's rate-of-change when the series covers the
// period, otherwise falls back to the endpoints of what is available.
func percentChange(closes []float64, period int) float64 {
	if len(closes) < 2 {
		return 0
	}
	if len(closes) > period {
		roc := talib.Roc(closes, period)
		v := roc[len(roc)-1]
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	past := closes[0]
	if len(closes)-1 >= period {
		past = closes[len(closes)-1-period]
	}
	if past == 0 {
		return 0
	}
	return (closes[len(closes)-1] - past) / past * 100
}

// volatilityScore scales the stddev of simple returns. Sparse series land
// on the neutral 50.
func volatilityScore(closes []float64) float64 {
	if len(closes) < minVolatilitySamples {
		return 50
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, (closes[i]-prev)/prev)
	}
	if len(returns) < 2 {
		return 40
	}
	std := talib.StdDev(returns, len(returns), 1.0)
	sd := std[len(std)-1]
	if math.IsNaN(sd) || math.IsInf(sd, 0) {
		return 40
	}
	return clamp(sd*1000, 10, 100)
}

func lastPrice(set CandleSet, swing bool) *float64 {
	var order [][]market.Candle
	if swing {
		order = [][]market.Candle{set.Daily, set.Weekly}
	} else {
		order = [][]market.Candle{set.FifteenMin, set.OneHour, set.FourHour, set.Daily}
	}
	for _, series := range order {
		if c, ok := latestCandle(series); ok {
			price := c.Close
			return &price
		}
	}
	return nil
}

func latestCandle(series []market.Candle) (market.Candle, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].FiniteRange() {
			return series[i], true
		}
	}
	return market.Candle{}, false
}

func finiteCloses(series []market.Candle) []float64 {
	out := make([]float64, 0, len(series))
	for _, c := range series {
		if !math.IsNaN(c.Close) && !math.IsInf(c.Close, 0) {
			out = append(out, c.Close)
		}
	}
	return out
}

func avgOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}
