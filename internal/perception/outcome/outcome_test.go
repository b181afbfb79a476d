package outcome

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"perception/internal/market"
	"perception/internal/types"
)

func candle(i int, high, low float64) market.Candle {
	return market.Candle{
		OpenTime:  int64(i) * 86_400_000,
		CloseTime: int64(i+1)*86_400_000 - 1,
		Open:      (high + low) / 2,
		High:      high,
		Low:       low,
		Close:     (high + low) / 2,
		Volume:    100,
	}
}

func longSetup() Setup {
	return Setup{Direction: types.DirectionLong, StopLoss: 90, TakeProfit: 110}
}

func TestHitTargetFirstBar(t *testing.T) {
	r := ComputeSwingOutcome(longSetup(), []market.Candle{
		candle(1, 115, 95),
		candle(2, 100, 95),
	}, 3)
	assert.Equal(t, StatusHitTP, r.Status)
	assert.Equal(t, 1, r.BarsToOutcome)
	assert.Equal(t, 2, r.UsedCandles)
}

func TestHitStopFirstBar(t *testing.T) {
	r := ComputeSwingOutcome(longSetup(), []market.Candle{
		candle(1, 100, 80),
		candle(2, 100, 95),
	}, 3)
	assert.Equal(t, StatusHitSL, r.Status)
	assert.Equal(t, 1, r.BarsToOutcome)
}

func TestExpiredWhenNeverTouched(t *testing.T) {
	r := ComputeSwingOutcome(longSetup(), []market.Candle{
		candle(1, 102, 98),
		candle(2, 103, 97),
		candle(3, 101, 99),
	}, 3)
	assert.Equal(t, StatusExpired, r.Status)
	assert.Equal(t, ReasonWindowExhausted, r.Reason)
	assert.Zero(t, r.BarsToOutcome)
}

func TestInsufficientCandles(t *testing.T) {
	r := ComputeSwingOutcome(longSetup(), nil, 3)
	assert.Equal(t, StatusOpen, r.Status)
	assert.Equal(t, ReasonInsufficientCandles, r.Reason)
}

func TestPriceScaleMismatch(t *testing.T) {
	setup := Setup{Direction: types.DirectionLong, StopLoss: 4300, TakeProfit: 4400}
	r := ComputeSwingOutcome(setup, []market.Candle{
		candle(1, 2720, 2680),
		candle(2, 2730, 2690),
	}, 3)
	assert.Equal(t, StatusInvalid, r.Status)
	assert.Contains(t, r.Reason, "price_scale_mismatch")
}

func TestSameCandleResolvesToStop(t *testing.T) {
	r := ComputeSwingOutcome(longSetup(), []market.Candle{
		candle(1, 115, 85), // touches both levels
	}, 3)
	assert.Equal(t, StatusHitSL, r.Status)
	assert.Equal(t, ReasonSameCandleResolved, r.Reason)
	assert.Equal(t, 1, r.BarsToOutcome)
}

func TestShortDirectionMirrored(t *testing.T) {
	setup := Setup{Direction: types.DirectionShort, StopLoss: 110, TakeProfit: 90}
	tp := ComputeSwingOutcome(setup, []market.Candle{candle(1, 100, 88)}, 3)
	assert.Equal(t, StatusHitTP, tp.Status)

	sl := ComputeSwingOutcome(setup, []market.Candle{candle(1, 112, 100)}, 3)
	assert.Equal(t, StatusHitSL, sl.Status)
}

func TestNonFiniteCandlesSkipped(t *testing.T) {
	bad := candle(1, math.NaN(), math.NaN())
	r := ComputeSwingOutcome(longSetup(), []market.Candle{
		bad,
		candle(2, 115, 95),
	}, 3)
	assert.Equal(t, StatusHitTP, r.Status)
	// The NaN candle occupies a bar slot but cannot register a touch.
	assert.Equal(t, 2, r.BarsToOutcome)
}

func TestPartialWindowStillVerdicts(t *testing.T) {
	// Fewer candles than the window still produce a real verdict.
	r := ComputeSwingOutcome(longSetup(), []market.Candle{
		candle(1, 102, 98),
		candle(2, 116, 99),
	}, 10)
	assert.Equal(t, StatusHitTP, r.Status)
	assert.Equal(t, 2, r.BarsToOutcome)
	assert.Equal(t, 2, r.UsedCandles)
}

func TestWindowBarsBoundsScan(t *testing.T) {
	candles := []market.Candle{
		candle(1, 102, 98),
		candle(2, 102, 98),
		candle(3, 115, 98), // beyond the 2-bar window
	}
	r := ComputeSwingOutcome(longSetup(), candles, 2)
	assert.Equal(t, StatusExpired, r.Status)
	assert.Equal(t, 2, r.UsedCandles)
}

func TestDefaultWindowBars(t *testing.T) {
	candles := make([]market.Candle, 0, 12)
	for i := 1; i <= 12; i++ {
		high := 102.0
		if i == 11 {
			high = 115 // outside the default 10-bar window
		}
		candles = append(candles, candle(i, high, 98))
	}
	r := ComputeSwingOutcome(longSetup(), candles, 0)
	assert.Equal(t, StatusExpired, r.Status)
	assert.Equal(t, 10, r.UsedCandles)
}

func TestReferenceTimeExcludesEarlierCandles(t *testing.T) {
	setup := longSetup()
	setup.ReferenceTime = candle(2, 0, 0).OpenTime
	candles := []market.Candle{
		candle(1, 120, 95), // before the setup existed
		candle(2, 102, 98),
		candle(3, 102, 98),
	}
	r := ComputeSwingOutcome(setup, candles, 5)
	assert.Equal(t, StatusExpired, r.Status)
	assert.Equal(t, 1, r.UsedCandles)
}

func TestIdempotence(t *testing.T) {
	candles := []market.Candle{
		candle(1, 102, 98),
		candle(2, 115, 85),
		candle(3, 130, 99),
	}
	first := ComputeSwingOutcome(longSetup(), candles, 3)
	second := ComputeSwingOutcome(longSetup(), candles, 3)
	assert.Equal(t, first, second)
}

func TestEntryZoneAnchorsScaleCheck(t *testing.T) {
	// Levels near 100 with an entry zone near 100 pass against ~100 candles
	// even though stop+target midpoint alone would also pass; the zone wins
	// when present.
	setup := longSetup()
	setup.EntryZone = &Zone{Low: 99, High: 101}
	r := ComputeSwingOutcome(setup, []market.Candle{candle(1, 115, 95)}, 3)
	assert.Equal(t, StatusHitTP, r.Status)
}
