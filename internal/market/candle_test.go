package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatSeries(n int, high, low, close float64) []Candle {
	out := make([]Candle, n)
	for i := range out {
		out[i] = Candle{
			OpenTime:  int64(i+1) * 86_400_000,
			CloseTime: int64(i+2)*86_400_000 - 1,
			Open:      close,
			High:      high,
			Low:       low,
			Close:     close,
		}
	}
	return out
}

func TestSortAscendingInPlace(t *testing.T) {
	candles := []Candle{{OpenTime: 3}, {OpenTime: 1}, {OpenTime: 2}}
	SortAscending(candles)
	assert.Equal(t, int64(1), candles[0].OpenTime)
	assert.Equal(t, int64(3), candles[2].OpenTime)
}

func TestFiniteRange(t *testing.T) {
	assert.True(t, Candle{High: 10, Low: 9}.FiniteRange())
	assert.False(t, Candle{High: math.NaN(), Low: 9}.FiniteRange())
	assert.False(t, Candle{High: 10, Low: math.Inf(-1)}.FiniteRange())
}

func TestLastCloseSkipsNonFinite(t *testing.T) {
	candles := []Candle{{Close: 100}, {Close: math.NaN()}}
	assert.Equal(t, 100.0, LastClose(candles))
	assert.Zero(t, LastClose(nil))
}

func TestMedianMidFiltersGarbage(t *testing.T) {
	candles := []Candle{
		{High: 12, Low: 8},
		{High: math.NaN(), Low: 8},
		{High: 22, Low: 18},
		{High: 32, Low: 28},
	}
	mid, ok := MedianMid(candles)
	require.True(t, ok)
	assert.Equal(t, 20.0, mid)

	_, ok = MedianMid([]Candle{{High: math.NaN(), Low: math.NaN()}})
	assert.False(t, ok)
}

func TestATRConstantRange(t *testing.T) {
	atr, err := ATR(flatSeries(40, 101, 99, 100), 14)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, atr, 1e-9)
}

func TestATRNeedsEnoughCandles(t *testing.T) {
	_, err := ATR(flatSeries(10, 101, 99, 100), 14)
	assert.Error(t, err)
}
