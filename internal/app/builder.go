package app

import (
	"context"
	"fmt"
	"strings"

	"perception/internal/config"
	cfgloader "perception/internal/config/loader"
	"perception/internal/logger"
	"perception/internal/perception"
	"perception/internal/perception/playbook"
)

// AppBuilder assembles an App. The threshold loader hook exists so tests
// can inject rules without touching the filesystem.
type AppBuilder struct {
	cfg *config.Config

	thresholdLoaderFn func(string) (*cfgloader.ThresholdLoader, error)
}

type AppBuilderOption func(*AppBuilder)

// WithThresholdLoader overrides how the playbook threshold file is loaded.
func WithThresholdLoader(fn func(string) (*cfgloader.ThresholdLoader, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.thresholdLoaderFn = fn }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:               cfg,
		thresholdLoaderFn: cfgloader.NewThresholdLoader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	var overrides map[string]playbook.Rules
	var thresholds *cfgloader.ThresholdLoader
	if path := strings.TrimSpace(cfg.Engine.PlaybookConfigPath); path != "" {
		loader, err := b.thresholdLoaderFn(path)
		if err != nil {
			return nil, fmt.Errorf("load playbook thresholds: %w", err)
		}
		snap := loader.Snapshot()
		overrides = snap.Rules
		thresholds = loader
		logger.Infof("playbook thresholds loaded: %d variants (v%d)", len(snap.Rules), snap.Version)
	}

	registry := playbook.NewRegistry(overrides)
	engine := perception.NewEngine(registry, cfg.Engine.Parallelism)
	if thresholds != nil {
		thresholds.Subscribe(func(s cfgloader.Snapshot) {
			engine.SetRegistry(playbook.NewRegistry(s.Rules))
			logger.Infof("playbook thresholds applied (v%d)", s.Version)
		})
	}

	return &App{cfg: cfg, engine: engine, thresholds: thresholds}, nil
}
