package rings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"perception/internal/types"
)

func f(v float64) *float64 { return &v }

func assertBounded(t *testing.T, r RingScores) {
	t.Helper()
	for _, v := range []int{r.Trend, r.Event, r.Bias, r.Sentiment, r.Orderflow, r.Confidence} {
		assert.GreaterOrEqual(t, v, 0)
		assert.LessOrEqual(t, v, 100)
	}
}

func TestComputeEmptySourceIsNeutral(t *testing.T) {
	r := Compute(Source{Direction: types.DirectionNeutral})
	assert.Equal(t, 50, r.Trend)
	assert.Equal(t, 50, r.Event)
	assert.Equal(t, 50, r.Bias)
	assert.Equal(t, 50, r.Sentiment)
	assert.Equal(t, 50, r.Orderflow)
	assert.Equal(t, 50, r.Confidence)
}

func TestComputeFullBreakdown(t *testing.T) {
	r := Compute(Source{
		Direction:       types.DirectionLong,
		Trend:           f(70),
		Momentum:        f(55),
		Volatility:      f(60),
		PatternType:     "breakout",
		BiasScoreAtTime: f(80),
		Confidence:      f(62),
	})
	assert.Equal(t, 70, r.Trend)
	// shock 40, divergence 18, pattern 85 -> 43.55 rounded
	assert.Equal(t, 44, r.Event)
	assert.Equal(t, 80, r.Bias)
	// 60 + 0.4*30 + 0.3*12.5 = 75.75
	assert.Equal(t, 76, r.Sentiment)
	// (2*55+60)/3
	assert.Equal(t, 57, r.Orderflow)
	assert.Equal(t, 62, r.Confidence)
	assertBounded(t, r)
}

func TestComputeNaNInputsFallBack(t *testing.T) {
	nan := math.NaN()
	r := Compute(Source{
		Direction:  types.DirectionLong,
		Trend:      &nan,
		Momentum:   &nan,
		Volatility: &nan,
		BiasScore:  &nan,
		Confidence: &nan,
	})
	assertBounded(t, r)
	assert.Equal(t, 50, r.Trend)
	assert.Equal(t, 50, r.Bias)
	assert.Equal(t, 50, r.Confidence)
}

func TestComputeClampsOutOfRange(t *testing.T) {
	r := Compute(Source{
		Direction:       types.DirectionLong,
		Trend:           f(400),
		Momentum:        f(-300),
		Volatility:      f(250),
		BiasScoreAtTime: f(180),
		Confidence:      f(-20),
	})
	assertBounded(t, r)
	assert.Equal(t, 100, r.Trend)
	assert.Equal(t, 100, r.Bias)
	assert.Equal(t, 0, r.Confidence)
}

func TestBiasPrefersPointInTimeSnapshot(t *testing.T) {
	r := Compute(Source{BiasScore: f(30), BiasScoreAtTime: f(72)})
	assert.Equal(t, 72, r.Bias)

	r = Compute(Source{BiasScore: f(30)})
	assert.Equal(t, 30, r.Bias)
}

func TestPatternStrengthLookup(t *testing.T) {
	cases := []struct {
		pattern string
		raw     *float64
		want    int
	}{
		{"breakout", nil, 85},
		{"Liquidity Grab", nil, 80},
		{"unknown-shape", f(66), 66},
		{"", f(66), 66},
		{"", nil, 50},
	}
	for _, tc := range cases {
		got := patternStrength(Source{PatternType: tc.pattern, Pattern: tc.raw})
		assert.Equal(t, tc.want, got, "pattern=%q", tc.pattern)
	}
}

func TestSentimentDirectionSeed(t *testing.T) {
	long := Compute(Source{Direction: types.DirectionLong})
	short := Compute(Source{Direction: types.DirectionShort})
	neutral := Compute(Source{Direction: types.DirectionNeutral})
	assert.Equal(t, 60, long.Sentiment)
	assert.Equal(t, 40, short.Sentiment)
	assert.Equal(t, 50, neutral.Sentiment)
}

func TestOrderflowFallsBackToBalanceScore(t *testing.T) {
	r := Compute(Source{BalanceScore: f(64)})
	assert.Equal(t, 64, r.Orderflow)

	r = Compute(Source{Momentum: f(80), Volatility: f(20)})
	assert.Equal(t, 60, r.Orderflow)
}

func TestEventRingNeutralWithoutSignals(t *testing.T) {
	// Volatility alone is not enough: no trend/momentum pair and no pattern.
	r := Compute(Source{Volatility: f(90)})
	assert.Equal(t, 50, r.Event)
}

func TestMetaTracksProvenance(t *testing.T) {
	r := Compute(Source{Trend: f(70)})
	assert.Equal(t, "live", r.Meta.Trend.Quality)
	assert.Equal(t, "fallback", r.Meta.Bias.Quality)
	assert.Equal(t, "derived", r.Meta.Sentiment.Quality)
}
