package config

const (
	defaultEnv         = "prod"
	defaultLogLevel    = "info"
	defaultParallelism = 4
	defaultWindowBars  = 10
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultLogLevel
	}
	if c.Engine.Parallelism == 0 {
		c.Engine.Parallelism = defaultParallelism
	}
	if c.Outcome.WindowBars == 0 {
		c.Outcome.WindowBars = defaultWindowBars
	}
}
