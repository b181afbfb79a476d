package perception

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perception/internal/market"
	"perception/internal/perception/event"
	"perception/internal/perception/levels"
	"perception/internal/perception/metrics"
	"perception/internal/perception/outcome"
	"perception/internal/perception/playbook"
	"perception/internal/perception/quality"
	"perception/internal/types"
)

var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func fptr(v float64) *float64 { return &v }

// Rising daily candles closing on their highs.
func bullishDaily(n int) []market.Candle {
	out := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		low := 2400.0 + float64(i)*4
		open := testNow.Add(-time.Duration(n-i) * 24 * time.Hour)
		out = append(out, market.Candle{
			OpenTime:  open.UnixMilli(),
			CloseTime: open.Add(24*time.Hour).UnixMilli() - 1,
			Open:      low,
			High:      low + 8,
			Low:       low,
			Close:     low + 8,
			Volume:    1000,
		})
	}
	return out
}

func goldInput() AssetInput {
	daily := bullishDaily(40)
	return AssetInput{
		Asset:          types.Asset{ID: "gold", Symbol: "GC=F", Name: "Gold Futures"},
		Profile:        types.ProfileSwing,
		Direction:      types.DirectionLong,
		Category:       "commodity",
		ReferencePrice: daily[len(daily)-1].Close,
		Candles:        metrics.CandleSet{Daily: daily},
		Bias:           BiasSnapshot{Score: fptr(88), Confidence: fptr(70)},
	}
}

func newEngine() *Engine { return NewEngine(playbook.NewRegistry(nil), 2) }

func TestEvaluateSetupPopulatesEverything(t *testing.T) {
	s, err := newEngine().EvaluateSetup(testNow, goldInput())
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, playbook.GoldSwingID, s.Decision.PlaybookID)
	assert.Equal(t, testNow, s.CreatedAt)

	for _, score := range []int{s.Rings.Trend, s.Rings.Event, s.Rings.Bias, s.Rings.Sentiment, s.Rings.Orderflow, s.Rings.Confidence} {
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, 100)
	}
	assert.Equal(t, quality.GradeFor(s.Quality.Score), s.Quality.Grade)
	assert.Greater(t, s.Levels.TakeProfit, s.Levels.StopLoss)
	assert.NotZero(t, s.Levels.Debug.BandPct)
	assert.NotNil(t, s.Metrics.LastPrice)
}

func TestEvaluateSetupGradesBullishGold(t *testing.T) {
	s, err := newEngine().EvaluateSetup(testNow, goldInput())
	require.NoError(t, err)
	// Strong bias, supportive trend, buyers orderflow: grade A.
	assert.Equal(t, playbook.GradeA, s.Decision.Grade)
	assert.Equal(t, s.Rings.Bias, 88)
}

func TestEvaluateSetupEventGate(t *testing.T) {
	in := goldInput()
	in.Events = []event.ScheduledEvent{
		{Name: "FOMC Rate Decision", Impact: 3, At: testNow.Add(30 * time.Minute)},
	}
	s, err := newEngine().EvaluateSetup(testNow, in)
	require.NoError(t, err)
	assert.Equal(t, playbook.GradeNoTrade, s.Decision.Grade)
	assert.Contains(t, s.Decision.NoTradeReason, "48h")
	assert.Equal(t, event.ClassExecutionCritical, s.Event.Class)
}

func TestEvaluateSetupRejectsEmptySymbol(t *testing.T) {
	in := goldInput()
	in.Asset.Symbol = ""
	_, err := newEngine().EvaluateSetup(testNow, in)
	assert.Error(t, err)
}

func TestEvaluateUniverseRanksAndCompletes(t *testing.T) {
	inputs := []AssetInput{goldInput(), goldInput(), goldInput()}
	inputs[1].Asset = types.Asset{Symbol: "AAPL", Name: "Apple Inc."}
	inputs[1].Bias = BiasSnapshot{Score: fptr(40)} // generic, no alignment
	inputs[2].Asset = types.Asset{Symbol: "BTC-USD", Name: "Bitcoin"}
	inputs[2].Category = "crypto"

	setups, err := newEngine().EvaluateUniverse(context.Background(), testNow, inputs)
	require.NoError(t, err)
	require.Len(t, setups, 3)

	// Ranked best-first; the no-alignment generic asset sorts last.
	assert.Equal(t, playbook.GradeNoTrade, setups[2].Decision.Grade)
	assert.Equal(t, "AAPL", setups[2].Asset.Symbol)

	ids := map[string]bool{}
	for _, s := range setups {
		assert.False(t, ids[s.ID])
		ids[s.ID] = true
	}
}

func TestRankOrdering(t *testing.T) {
	mk := func(grade string, qScore int, rrr float64) *Setup {
		return &Setup{
			Decision: playbook.Decision{Grade: grade},
			Quality:  quality.SignalQuality{Score: qScore, Grade: quality.GradeFor(qScore)},
			Levels:   levels.Levels{RiskReward: levels.RiskReward{RRR: rrr}},
		}
	}
	setups := []*Setup{
		mk(playbook.GradeNoTrade, 90, 3),
		mk(playbook.GradeB, 50, 1.5),
		mk(playbook.GradeA, 60, 1.5),
		mk(playbook.GradeA, 60, 2.0),
		mk(playbook.GradeA, 75, 1.0),
	}
	Rank(setups)

	assert.Equal(t, playbook.GradeA, setups[0].Decision.Grade)
	assert.Equal(t, 75, setups[0].Quality.Score)
	assert.Equal(t, 2.0, setups[1].Levels.RiskReward.RRR)
	assert.Equal(t, playbook.GradeB, setups[3].Decision.Grade)
	assert.Equal(t, playbook.GradeNoTrade, setups[4].Decision.Grade)
}

func TestEvaluateOutcomeReplaysForwardCandles(t *testing.T) {
	e := newEngine()
	s := &Setup{
		Direction: types.DirectionLong,
		CreatedAt: testNow,
		Levels: levels.Levels{
			EntryZone:  levels.Zone{Low: 99, High: 101},
			StopLoss:   95,
			TakeProfit: 110,
		},
	}
	forward := []market.Candle{
		{OpenTime: testNow.Add(24 * time.Hour).UnixMilli(), Open: 100, High: 112, Low: 99, Close: 111},
	}

	rec, err := e.EvaluateOutcome(s, forward, 10)
	require.NoError(t, err)
	assert.Equal(t, outcome.StatusHitTP, rec.Status)
	assert.Equal(t, 1, rec.BarsToOutcome)
}

func TestSetRegistrySwapsRules(t *testing.T) {
	e := newEngine()
	s, err := e.EvaluateSetup(testNow, goldInput())
	require.NoError(t, err)
	require.Equal(t, playbook.GradeA, s.Decision.Grade)

	strict := playbook.NewRegistry(map[string]playbook.Rules{
		playbook.GoldSwingID: {BiasFloor: 95, TrendFloor: 95},
	})
	e.SetRegistry(strict)

	s, err = e.EvaluateSetup(testNow, goldInput())
	require.NoError(t, err)
	assert.Equal(t, playbook.GradeNoTrade, s.Decision.Grade)
}

func TestEvaluateOutcomeNilSetup(t *testing.T) {
	_, err := newEngine().EvaluateOutcome(nil, nil, 10)
	assert.Error(t, err)
}
