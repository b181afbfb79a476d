package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", c.App.LogLevel)
	}
	if c.Engine.Parallelism < 1 {
		return fmt.Errorf("engine.parallelism must be >= 1")
	}
	if c.Outcome.WindowBars < 1 {
		return fmt.Errorf("outcome.window_bars must be >= 1")
	}
	return nil
}
