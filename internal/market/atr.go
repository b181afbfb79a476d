package market

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

const defaultATRPeriod = 14

// ATR computes the latest average true range over the series. Candles must be
// chronological; talib needs at least period+1 bars.
func ATR(candles []Candle, period int) (float64, error) {
	if period <= 0 {
		period = defaultATRPeriod
	}
	if len(candles) <= period {
		return 0, fmt.Errorf("atr: need more than %d candles, got %d", period, len(candles))
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	series := talib.Atr(highs, lows, closes, period)
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("atr: series empty after sanitize")
}
