package market

import (
	"math"
	"sort"
	"time"
)

// Candle is one OHLCV bar. Timestamps are Unix milliseconds; collaborators
// deliver them deduplicated and timezone-normalized, but values are not
// guaranteed finite.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Time returns the bar's open time.
func (c Candle) Time() time.Time { return time.UnixMilli(c.OpenTime) }

// FiniteRange reports whether high and low are usable numbers.
func (c Candle) FiniteRange() bool {
	return !math.IsNaN(c.High) && !math.IsInf(c.High, 0) &&
		!math.IsNaN(c.Low) && !math.IsInf(c.Low, 0)
}

// Mid is the midpoint of the bar's range.
func (c Candle) Mid() float64 { return (c.High + c.Low) / 2 }

// SortAscending orders candles chronologically in place.
func SortAscending(candles []Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].OpenTime < candles[j].OpenTime
	})
}

// Closes extracts the close series in the candles' order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// LastClose returns the most recent finite close, or 0 when none exists.
func LastClose(candles []Candle) float64 {
	for i := len(candles) - 1; i >= 0; i-- {
		v := candles[i].Close
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return 0
}

// MedianMid returns the median range midpoint over candles with a finite
// range, and false when no candle qualifies.
func MedianMid(candles []Candle) (float64, bool) {
	mids := make([]float64, 0, len(candles))
	for _, c := range candles {
		if c.FiniteRange() {
			mids = append(mids, c.Mid())
		}
	}
	if len(mids) == 0 {
		return 0, false
	}
	sort.Float64s(mids)
	return mids[len(mids)/2], true
}
