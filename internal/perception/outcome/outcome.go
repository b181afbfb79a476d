// Package outcome replays a setup's levels against forward candles and
// records the realized result. The evaluator is a pure function of its
// inputs, so re-running it over the same persisted candle slice always
// reproduces the same record.
package outcome

import (
	"math"

	"perception/internal/market"
	"perception/internal/types"
)

// Outcome statuses.
const (
	StatusHitTP   = "hit_tp"
	StatusHitSL   = "hit_sl"
	StatusExpired = "expired"
	StatusOpen    = "open"
	StatusInvalid = "invalid"
)

// Reasons attached to non-hit statuses.
const (
	ReasonInsufficientCandles = "insufficient_candles"
	ReasonPriceScaleMismatch  = "price_scale_mismatch"
	ReasonSameCandleResolved  = "tp_and_sl_same_candle_resolved"
	ReasonWindowExhausted     = "window_exhausted"
)

const (
	defaultWindowBars = 10

	// Accepted ratio between the setup's price scale and the candles'.
	scaleRatioMin = 0.8
	scaleRatioMax = 1.2
)

// Zone is the optional entry band of a setup.
type Zone struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Setup is the leveled idea under evaluation. ReferenceTime (ms) bounds the
// scan to candles after setup creation; zero means scan everything.
type Setup struct {
	Direction     types.Direction
	StopLoss      float64
	TakeProfit    float64
	EntryZone     *Zone
	ReferenceTime int64
}

// Record is the realized outcome.
type Record struct {
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	BarsToOutcome int    `json:"barsToOutcome"` // 1-based, 0 when no touch
	UsedCandles   int    `json:"usedCandles"`
	TouchTime     int64  `json:"touchTime,omitempty"`
}

// ComputeSwingOutcome scans up to windowBars candles after the setup's
// reference time for a direction-correct first touch of target or stop.
// windowBars below 1 falls back to the default of 10.
func ComputeSwingOutcome(setup Setup, candles []market.Candle, windowBars int) Record {
	if windowBars < 1 {
		windowBars = defaultWindowBars
	}

	window := scanWindow(setup.ReferenceTime, candles, windowBars)
	if len(window) == 0 {
		return Record{Status: StatusOpen, Reason: ReasonInsufficientCandles}
	}

	if mismatch(setup, window) {
		return Record{Status: StatusInvalid, Reason: ReasonPriceScaleMismatch, UsedCandles: len(window)}
	}

	for i, c := range window {
		if !c.FiniteRange() {
			continue
		}
		tp, sl := touches(setup, c)
		switch {
		case tp && sl:
			return Record{
				Status:        StatusHitSL,
				Reason:        ReasonSameCandleResolved,
				BarsToOutcome: i + 1,
				UsedCandles:   len(window),
				TouchTime:     c.OpenTime,
			}
		case tp:
			return Record{Status: StatusHitTP, BarsToOutcome: i + 1, UsedCandles: len(window), TouchTime: c.OpenTime}
		case sl:
			return Record{Status: StatusHitSL, BarsToOutcome: i + 1, UsedCandles: len(window), TouchTime: c.OpenTime}
		}
	}
	return Record{Status: StatusExpired, Reason: ReasonWindowExhausted, UsedCandles: len(window)}
}

func scanWindow(referenceTime int64, candles []market.Candle, windowBars int) []market.Candle {
	sorted := append([]market.Candle(nil), candles...)
	market.SortAscending(sorted)
	out := make([]market.Candle, 0, windowBars)
	for _, c := range sorted {
		if referenceTime > 0 && c.OpenTime <= referenceTime {
			continue
		}
		out = append(out, c)
		if len(out) == windowBars {
			break
		}
	}
	return out
}

// mismatch guards against evaluating levels on a wrong-scale candle feed,
// which would otherwise produce an instant false hit.
func mismatch(setup Setup, window []market.Candle) bool {
	anchor := setupAnchor(setup)
	median, ok := market.MedianMid(window)
	if !ok || anchor <= 0 || median <= 0 {
		return false
	}
	ratio := anchor / median
	return ratio < scaleRatioMin || ratio > scaleRatioMax
}

func setupAnchor(setup Setup) float64 {
	if setup.EntryZone != nil {
		mid := (setup.EntryZone.Low + setup.EntryZone.High) / 2
		if !math.IsNaN(mid) && mid > 0 {
			return mid
		}
	}
	return (setup.StopLoss + setup.TakeProfit) / 2
}

func touches(setup Setup, c market.Candle) (tp, sl bool) {
	if setup.Direction == types.DirectionShort {
		return c.Low <= setup.TakeProfit, c.High >= setup.StopLoss
	}
	return c.High >= setup.TakeProfit, c.Low <= setup.StopLoss
}
