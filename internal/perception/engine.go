package perception

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"perception/internal/logger"
	"perception/internal/market"
	"perception/internal/perception/event"
	"perception/internal/perception/levels"
	"perception/internal/perception/metrics"
	"perception/internal/perception/orderflow"
	"perception/internal/perception/outcome"
	"perception/internal/perception/playbook"
	"perception/internal/perception/quality"
	"perception/internal/perception/rings"
)

const defaultParallelism = 4

// Engine evaluates assets into graded setups. It holds no per-evaluation
// state, so one engine serves any number of concurrent callers. The
// registry may be swapped while evaluations run; each evaluation reads it
// once.
type Engine struct {
	mu          sync.RWMutex
	registry    *playbook.Registry
	parallelism int
}

// NewEngine wires an engine around a playbook registry. parallelism bounds
// EvaluateUniverse; values below 1 use the default.
func NewEngine(registry *playbook.Registry, parallelism int) *Engine {
	if parallelism < 1 {
		parallelism = defaultParallelism
	}
	return &Engine{registry: registry, parallelism: parallelism}
}

// SetRegistry replaces the playbook registry, used when threshold
// overrides hot-reload. Nil registries are ignored.
func (e *Engine) SetRegistry(r *playbook.Registry) {
	if r == nil {
		return
	}
	e.mu.Lock()
	e.registry = r
	e.mu.Unlock()
}

func (e *Engine) currentRegistry() *playbook.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry
}

// EvaluateSetup runs the fixed pipeline for one asset: market reads, rings,
// then quality and levels, then the playbook verdict.
func (e *Engine) EvaluateSetup(now time.Time, in AssetInput) (*Setup, error) {
	if in.Asset.Symbol == "" {
		return nil, fmt.Errorf("evaluate setup: asset symbol is empty")
	}

	m := metrics.Build(in.Candles, in.ReferencePrice, in.Profile, now)
	of := orderflow.Build(in.Candles.Daily, in.Category, &m.TrendScore, in.Bias.Score)
	ev := event.Classify(now, in.Events)

	ringSource := rings.Source{
		Direction:       in.Direction,
		Trend:           &m.TrendScore,
		Momentum:        &m.MomentumScore,
		Volatility:      &m.VolatilityScore,
		Pattern:         in.PatternStrength,
		PatternType:     in.PatternType,
		BiasScore:       in.Bias.Score,
		BiasScoreAtTime: in.Bias.ScoreAtTime,
		Confidence:      in.Bias.Confidence,
	}
	flow := float64(of.FlowScore)
	ringSource.BalanceScore = &flow
	r := rings.Compute(ringSource)

	conflict := of.HasFlag(orderflow.FlagTrendConflict) || of.HasFlag(orderflow.FlagBiasConflict)
	q := quality.Compute(r, in.Profile, conflict)

	price := in.ReferencePrice
	if price <= 0 && m.LastPrice != nil {
		price = *m.LastPrice
	}
	lv := levels.Compute(levels.Params{
		Direction:       in.Direction,
		ReferencePrice:  price,
		VolatilityScore: &m.VolatilityScore,
		Category:        in.Category,
		Profile:         in.Profile,
		DailyCandles:    in.Candles.Daily,
		Refinement4H:    in.Candles.FourHour,
	})

	variant, matchReason := e.currentRegistry().Resolve(in.Asset, in.Profile)
	vol := clampInt(m.VolatilityScore)
	var sentiment *int
	if in.Sentiment.Score != nil {
		s := clampInt(*in.Sentiment.Score)
		sentiment = &s
	}
	decision := variant.EvaluateSetup(playbook.Context{
		TrendScore:      r.Trend,
		BiasScore:       r.Bias,
		OrderflowScore:  of.FlowScore,
		SentimentScore:  sentiment,
		VolatilityScore: &vol,
		Regime:          in.Regime,
		Event:           &ev,
		Quality:         &q,
		OrderflowFlags:  of.Flags,
	})

	logger.Debugf("evaluated %s: playbook=%s (%s) grade=%s quality=%d",
		in.Asset.Symbol, variant.ID, matchReason, decision.Grade, q.Score)

	return &Setup{
		ID:        uuid.NewString(),
		Asset:     in.Asset,
		Profile:   in.Profile,
		Direction: in.Direction,
		CreatedAt: now,
		Rings:     r,
		Quality:   q,
		Levels:    lv,
		Decision:  decision,
		Metrics:   m,
		Orderflow: of,
		Event:     ev,
	}, nil
}

// EvaluateUniverse evaluates many assets concurrently and returns the
// setups ranked best-first. A single failing asset fails the batch; inputs
// are independent, so callers wanting partial results split the batch.
func (e *Engine) EvaluateUniverse(ctx context.Context, now time.Time, inputs []AssetInput) ([]*Setup, error) {
	setups := make([]*Setup, len(inputs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := e.EvaluateSetup(now, in)
			if err != nil {
				return fmt.Errorf("asset %s: %w", in.Asset.Symbol, err)
			}
			mu.Lock()
			setups[i] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	Rank(setups)
	return setups, nil
}

// EvaluateOutcome replays a persisted setup's levels against forward
// candles. windowBars below 1 uses the evaluator's default window.
func (e *Engine) EvaluateOutcome(s *Setup, candles []market.Candle, windowBars int) (outcome.Record, error) {
	if s == nil {
		return outcome.Record{}, fmt.Errorf("evaluate outcome: nil setup")
	}
	zone := outcome.Zone{Low: s.Levels.EntryZone.Low, High: s.Levels.EntryZone.High}
	return outcome.ComputeSwingOutcome(outcome.Setup{
		Direction:     s.Direction,
		StopLoss:      s.Levels.StopLoss,
		TakeProfit:    s.Levels.TakeProfit,
		EntryZone:     &zone,
		ReferenceTime: s.CreatedAt.UnixMilli(),
	}, candles, windowBars), nil
}

var gradeRank = map[string]int{
	playbook.GradeA:       0,
	playbook.GradeB:       1,
	playbook.GradeNoTrade: 2,
}

// Rank orders setups best-first: grade, then quality score, then
// risk/reward ratio.
func Rank(setups []*Setup) {
	sort.SliceStable(setups, func(i, j int) bool {
		a, b := setups[i], setups[j]
		if gradeRank[a.Decision.Grade] != gradeRank[b.Decision.Grade] {
			return gradeRank[a.Decision.Grade] < gradeRank[b.Decision.Grade]
		}
		if a.Quality.Score != b.Quality.Score {
			return a.Quality.Score > b.Quality.Score
		}
		return a.Levels.RiskReward.RRR > b.Levels.RiskReward.RRR
	})
}

func clampInt(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v + 0.5)
	}
}
