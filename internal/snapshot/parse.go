// Package snapshot parses the normalized JSON documents the collaborators
// deliver (candles, bias, sentiment, events, asset identity) into
// evaluation inputs. The document skeleton is schema-checked once; field
// values are extracted tolerantly, so a garbage number degrades to a
// neutral default instead of failing the batch.
package snapshot

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"perception/internal/logger"
	"perception/internal/market"
	"perception/internal/perception"
	"perception/internal/perception/event"
	"perception/internal/perception/metrics"
	"perception/internal/types"
)

// Parse validates and decodes a snapshot document into per-asset inputs.
func Parse(raw []byte) ([]perception.AssetInput, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("snapshot: invalid json")
	}
	if err := validateShape(raw); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	doc := gjson.ParseBytes(raw)
	var inputs []perception.AssetInput
	doc.Get("assets").ForEach(func(_, entry gjson.Result) bool {
		in := parseAsset(entry)
		if in.Asset.Symbol == "" {
			logger.Warnf("snapshot: skipping asset entry without symbol")
			return true
		}
		inputs = append(inputs, in)
		return true
	})
	return inputs, nil
}

// AsOf reads the document's evaluation timestamp, used so historical
// snapshots replay deterministically. Zero when absent or unparseable.
func AsOf(raw []byte) time.Time {
	return parseTime(gjson.GetBytes(raw, "asOf"))
}

func validateShape(raw []byte) error {
	schema, err := snapshotSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func parseAsset(entry gjson.Result) perception.AssetInput {
	in := perception.AssetInput{
		Asset: types.Asset{
			ID:     entry.Get("asset.id").String(),
			Symbol: entry.Get("asset.symbol").String(),
			Name:   entry.Get("asset.name").String(),
		},
		Profile:        types.ParseProfile(entry.Get("profile").String()),
		Direction:      types.ParseDirection(entry.Get("direction").String()),
		Category:       entry.Get("category").String(),
		Regime:         entry.Get("regime").String(),
		ReferencePrice: entry.Get("referencePrice").Float(),
		PatternType:    entry.Get("pattern.type").String(),
	}

	in.PatternStrength = optFloat(entry.Get("pattern.strength"))
	in.Candles = metrics.CandleSet{
		Daily:      candleSeries(entry.Get("candles.daily")),
		Weekly:     candleSeries(entry.Get("candles.weekly")),
		FourHour:   candleSeries(entry.Get("candles.4h")),
		OneHour:    candleSeries(entry.Get("candles.1h")),
		FifteenMin: candleSeries(entry.Get("candles.15m")),
	}
	in.Forward = candleSeries(entry.Get("candles.forward"))
	in.Bias = perception.BiasSnapshot{
		Score:       optFloat(entry.Get("bias.score")),
		ScoreAtTime: optFloat(entry.Get("bias.scoreAtTime")),
		Confidence:  optFloat(entry.Get("bias.confidence")),
		Date:        parseTime(entry.Get("bias.date")),
	}
	in.Sentiment = perception.SentimentSnapshot{
		Score: optFloat(entry.Get("sentiment.score")),
		Label: entry.Get("sentiment.label").String(),
	}
	entry.Get("sentiment.reasons").ForEach(func(_, r gjson.Result) bool {
		in.Sentiment.Reasons = append(in.Sentiment.Reasons, r.String())
		return true
	})
	entry.Get("events").ForEach(func(_, ev gjson.Result) bool {
		at := parseTime(ev.Get("at"))
		if at.IsZero() {
			logger.Warnf("snapshot: dropping event %q with unparseable time", ev.Get("name").String())
			return true
		}
		in.Events = append(in.Events, event.ScheduledEvent{
			Name:     ev.Get("name").String(),
			Impact:   int(ev.Get("impact").Int()),
			At:       at,
			Currency: ev.Get("currency").String(),
		})
		return true
	})
	return in
}

func candleSeries(res gjson.Result) []market.Candle {
	if !res.IsArray() {
		return nil
	}
	var out []market.Candle
	res.ForEach(func(_, c gjson.Result) bool {
		if !c.IsObject() {
			return true
		}
		out = append(out, market.Candle{
			OpenTime:  c.Get("open_time").Int(),
			CloseTime: c.Get("close_time").Int(),
			Open:      numOrNaN(c.Get("open")),
			High:      numOrNaN(c.Get("high")),
			Low:       numOrNaN(c.Get("low")),
			Close:     numOrNaN(c.Get("close")),
			Volume:    c.Get("volume").Float(),
		})
		return true
	})
	market.SortAscending(out)
	return out
}

// numOrNaN keeps garbage visible: a missing or non-numeric field becomes
// NaN so the finite-range checks downstream can flag the candle.
func numOrNaN(res gjson.Result) float64 {
	if res.Type != gjson.Number {
		return math.NaN()
	}
	return res.Float()
}

// optFloat returns nil for absent or non-numeric values.
func optFloat(res gjson.Result) *float64 {
	if res.Type != gjson.Number {
		return nil
	}
	v := res.Float()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseTime accepts RFC3339 strings or unix milliseconds.
func parseTime(res gjson.Result) time.Time {
	switch res.Type {
	case gjson.Number:
		return time.UnixMilli(res.Int())
	case gjson.String:
		if t, err := time.Parse(time.RFC3339, res.String()); err == nil {
			return t
		}
	}
	return time.Time{}
}
