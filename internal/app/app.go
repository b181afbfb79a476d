// Package app wires configuration, threshold loading and the perception
// engine into a runnable evaluation pass.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"perception/internal/config"
	cfgloader "perception/internal/config/loader"
	"perception/internal/logger"
	"perception/internal/market"
	"perception/internal/perception"
	"perception/internal/perception/outcome"
	"perception/internal/snapshot"
)

// App coordinates one full evaluation: read the market snapshot, grade
// every asset, rank the setups and emit the report.
type App struct {
	cfg        *config.Config
	engine     *perception.Engine
	thresholds *cfgloader.ThresholdLoader
}

// NewApp builds the application from config without running it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Report is the emitted evaluation result. Outcomes is keyed by setup ID
// and only present for assets whose snapshot carried forward candles.
type Report struct {
	GeneratedAt time.Time                 `json:"generatedAt"`
	Setups      []*perception.Setup       `json:"setups"`
	Outcomes    map[string]outcome.Record `json:"outcomes,omitempty"`
}

// Run evaluates the configured snapshot once and writes the report.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	path := strings.TrimSpace(a.cfg.Engine.SnapshotPath)
	if path == "" {
		return fmt.Errorf("engine.snapshot_path is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	inputs, err := snapshot.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	logger.Infof("snapshot loaded: %d assets from %s", len(inputs), path)

	now := snapshot.AsOf(raw)
	if now.IsZero() {
		now = time.Now().UTC()
	}
	setups, err := a.engine.EvaluateUniverse(ctx, now, inputs)
	if err != nil {
		return err
	}

	report := Report{GeneratedAt: now, Setups: setups}
	forward := make(map[string][]market.Candle, len(inputs))
	for _, in := range inputs {
		if len(in.Forward) > 0 {
			forward[in.Asset.Symbol] = in.Forward
		}
	}
	for _, s := range setups {
		candles, ok := forward[s.Asset.Symbol]
		if !ok {
			continue
		}
		rec, err := a.engine.EvaluateOutcome(s, candles, a.cfg.Outcome.WindowBars)
		if err != nil {
			return err
		}
		if report.Outcomes == nil {
			report.Outcomes = make(map[string]outcome.Record)
		}
		report.Outcomes[s.ID] = rec
	}
	return a.writeReport(report)
}

// Engine exposes the underlying engine instance (for testing harnesses).
func (a *App) Engine() *perception.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) writeReport(report Report) error {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	target := strings.TrimSpace(a.cfg.Engine.OutputPath)
	if target == "" {
		if _, err := os.Stdout.Write(append(out, '\n')); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(target, out, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Infof("report written: %d setups to %s", len(report.Setups), target)
	return nil
}
