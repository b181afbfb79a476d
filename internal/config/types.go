package config

// Config is the top-level application configuration.
type Config struct {
	App     AppConfig     `toml:"app"`
	Engine  EngineConfig  `toml:"engine"`
	Outcome OutcomeConfig `toml:"outcome"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
}

// EngineConfig controls universe evaluation.
type EngineConfig struct {
	Parallelism int `toml:"parallelism"`
	// PlaybookConfigPath points at the tunable per-variant threshold file.
	// Empty disables overrides and the built-in rules apply.
	PlaybookConfigPath string `toml:"playbook_config_path"`
	// SnapshotPath is the market snapshot document to evaluate.
	SnapshotPath string `toml:"snapshot_path"`
	// OutputPath receives the ranked setups as JSON. Empty writes to stdout.
	OutputPath string `toml:"output_path"`
}

// OutcomeConfig controls outcome evaluation.
type OutcomeConfig struct {
	WindowBars int `toml:"window_bars"`
}
