// Package perception orchestrates the analytics core: rings, signal
// quality, levels, playbook grading and the market/orderflow/event reads
// they consume. Each setup evaluation is a pure computation over one
// asset's already-materialized snapshot.
package perception

import (
	"time"

	"perception/internal/market"
	"perception/internal/perception/event"
	"perception/internal/perception/levels"
	"perception/internal/perception/metrics"
	"perception/internal/perception/orderflow"
	"perception/internal/perception/playbook"
	"perception/internal/perception/quality"
	"perception/internal/perception/rings"
	"perception/internal/types"
)

// BiasSnapshot is a point-in-time directional bias read.
type BiasSnapshot struct {
	Score       *float64  `json:"score"`
	ScoreAtTime *float64  `json:"scoreAtTime"`
	Confidence  *float64  `json:"confidence"`
	Date        time.Time `json:"date"`
}

// SentimentSnapshot is a point-in-time sentiment read.
type SentimentSnapshot struct {
	Score   *float64 `json:"score"`
	Label   string   `json:"label"`
	Reasons []string `json:"reasons"`
}

// AssetInput is one asset's fully materialized evaluation snapshot. All
// collaborator I/O happens before this struct is built.
type AssetInput struct {
	Asset     types.Asset
	Profile   types.Profile
	Direction types.Direction
	Category  string
	Regime    string

	ReferencePrice float64
	Candles        metrics.CandleSet

	// Forward holds candles after the evaluation time, present only when a
	// prior setup is being replayed for its realized outcome.
	Forward []market.Candle

	PatternType     string
	PatternStrength *float64

	Bias      BiasSnapshot
	Sentiment SentimentSnapshot
	Events    []event.ScheduledEvent
}

// Setup is one graded, leveled trading idea.
type Setup struct {
	ID        string          `json:"id"`
	Asset     types.Asset     `json:"asset"`
	Profile   types.Profile   `json:"profile"`
	Direction types.Direction `json:"direction"`
	CreatedAt time.Time       `json:"createdAt"`

	Rings     rings.RingScores      `json:"rings"`
	Quality   quality.SignalQuality `json:"signalQuality"`
	Levels    levels.Levels         `json:"levels"`
	Decision  playbook.Decision     `json:"decision"`
	Metrics   metrics.Metrics       `json:"marketMetrics"`
	Orderflow orderflow.Metrics     `json:"orderflow"`
	Event     event.Context         `json:"eventContext"`
}
