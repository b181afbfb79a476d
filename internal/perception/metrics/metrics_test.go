package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perception/internal/market"
	"perception/internal/types"
)

var now = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func risingDaily(n int, start float64) []market.Candle {
	out := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		close := start + float64(i)
		open := now.Add(-time.Duration(n-i) * 24 * time.Hour)
		out = append(out, market.Candle{
			OpenTime:  open.UnixMilli(),
			CloseTime: open.Add(24*time.Hour).UnixMilli() - 1,
			Open:      close,
			High:      close + 1,
			Low:       close - 1,
			Close:     close,
			Volume:    1000,
		})
	}
	return out
}

func hourly(n int, start float64, step time.Duration) []market.Candle {
	out := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		close := start + float64(i)
		open := now.Add(-time.Duration(n-i) * step)
		out = append(out, market.Candle{
			OpenTime:  open.UnixMilli(),
			CloseTime: open.Add(step).UnixMilli() - 1,
			Open:      close,
			High:      close + 0.5,
			Low:       close - 0.5,
			Close:     close,
			Volume:    100,
		})
	}
	return out
}

func TestSwingMetricsFromDaily(t *testing.T) {
	daily := risingDaily(40, 100)
	m := Build(CandleSet{Daily: daily}, 139, types.ProfileSwing, now)

	// 30-day change: (139-109)/109 on top of the 50 base.
	assert.InDelta(t, 77.52, m.TrendScore, 0.1)
	// 14-bar change of the last 15 closes, doubled: (139-125)/125*200.
	assert.InDelta(t, 72.4, m.MomentumScore, 0.1)
	// Linear drift has tiny return stddev, clamped to the 10 floor.
	assert.InDelta(t, 10, m.VolatilityScore, 1e-9)

	require.NotNil(t, m.LastPrice)
	assert.Equal(t, 139.0, *m.LastPrice)
	assert.InDelta(t, 0, m.PriceDriftPct, 1e-9)
	assert.False(t, m.IsStale)
	assert.Empty(t, m.Reasons)
}

func TestEmptySetIsNeutralAndStale(t *testing.T) {
	m := Build(CandleSet{}, 100, types.ProfileSwing, now)
	assert.Equal(t, 50.0, m.TrendScore)
	assert.Equal(t, 50.0, m.MomentumScore)
	assert.Equal(t, 50.0, m.VolatilityScore)
	assert.Nil(t, m.LastPrice)
	assert.True(t, m.IsStale)
	assert.Contains(t, m.Reasons, "no market data for trend")
}

func TestStaleDailyCandleFlagged(t *testing.T) {
	stale := Build(CandleSet{Daily: risingDaily(40, 100)}, 139, types.ProfileSwing, now.Add(5*24*time.Hour))
	assert.True(t, stale.IsStale)
	assert.Contains(t, stale.Reasons, "daily candle outdated")
}

func TestPriceDriftBeyondTolerance(t *testing.T) {
	daily := risingDaily(40, 100)
	m := Build(CandleSet{Daily: daily}, 120, types.ProfileSwing, now)
	// (139-120)/120 is ~15.8 percent, past the 8 percent swing tolerance.
	assert.InDelta(t, 15.83, m.PriceDriftPct, 0.01)
	assert.True(t, m.IsStale)
	require.NotEmpty(t, m.Reasons)
	assert.Contains(t, m.Reasons[0], "price drift")
}

func TestIntradayBlendsShortTimeframes(t *testing.T) {
	oneHour := hourly(20, 100, time.Hour)
	fifteen := hourly(20, 110, 15*time.Minute)
	for i := range fifteen {
		fifteen[i].Close = 110 // flat momentum on the short frame
	}
	m := Build(CandleSet{OneHour: oneHour, FifteenMin: fifteen}, 110, types.ProfileIntraday, now)

	// 1H series short of the 30-bar lookback: endpoint change (119-100)/100.
	assert.InDelta(t, 69, m.TrendScore, 0.1)
	// Average of the 1H momentum (~76.7) and the flat 15m momentum (50).
	assert.InDelta(t, 63.33, m.MomentumScore, 0.1)

	require.NotNil(t, m.LastPrice)
	assert.Equal(t, 110.0, *m.LastPrice)
	assert.False(t, m.IsStale)
}

func TestIntradayHourlyStaleness(t *testing.T) {
	oneHour := hourly(20, 100, time.Hour)
	m := Build(CandleSet{OneHour: oneHour}, 119, types.ProfileIntraday, now.Add(4*time.Hour))
	assert.True(t, m.IsStale)
	assert.Contains(t, m.Reasons, "1h candle outdated")
}

func TestSwingIgnoresIntradaySeries(t *testing.T) {
	daily := risingDaily(40, 100)
	fifteen := hourly(20, 500, 15*time.Minute)
	m := Build(CandleSet{Daily: daily, FifteenMin: fifteen}, 139, types.ProfileSwing, now)
	require.NotNil(t, m.LastPrice)
	// Swing reads the daily close, not the 15m one.
	assert.Equal(t, 139.0, *m.LastPrice)
}
