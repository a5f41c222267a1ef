package app

import (
	"warden/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// Init runs the bootstrap steps (mounts, hostname, seed) before any
	// service is started. Implied when warden is PID 1.
	Init bool

	// ConfigPath is the warden.yaml to load. Empty means the default path.
	ConfigPath string

	// WardenConfig is filled in by NewApplication unless already set.
	WardenConfig *config.WardenConfig
}

// NewConfig creates a new application configuration
func NewConfig(debug, init bool, configPath string) *Config {
	if configPath == "" {
		configPath = config.DefaultConfigFile
	}
	return &Config{
		Debug:      debug,
		Init:       init,
		ConfigPath: configPath,
	}
}
