package config

import (
	"time"

	"warden/internal/api"
)

// WardenConfig is the top-level configuration structure for warden.
type WardenConfig struct {
	ServicesDir    string `yaml:"servicesDir,omitempty"`    // Directory of service definition files
	RuntimeDir     string `yaml:"runtimeDir,omitempty"`     // Notify sockets and other volatile state
	StateDir       string `yaml:"stateDir,omitempty"`       // Receives status.json on status dumps
	ControlSocket  string `yaml:"controlSocket,omitempty"`  // Unix socket of the control API
	MetricsEnabled bool   `yaml:"metricsEnabled,omitempty"` // Serve /metrics on the control socket
	LogLevel       string `yaml:"logLevel,omitempty"`       // debug, info, warn or error
	LogFormat      string `yaml:"logFormat,omitempty"`      // text or json

	// Watch reloads definitions when files in ServicesDir change.
	Watch         bool          `yaml:"watch,omitempty"`
	WatchDebounce time.Duration `yaml:"watchDebounce,omitempty"`

	// Environment is merged into the environment of every service. Keys set
	// by a definition win.
	Environment map[string]string `yaml:"environment,omitempty"`

	Defaults  Defaults        `yaml:"defaults,omitempty"`
	Bootstrap BootstrapConfig `yaml:"bootstrap,omitempty"`
}

// Defaults are applied to definitions that leave the field unset.
type Defaults struct {
	StartTimeout  time.Duration   `yaml:"startTimeout,omitempty"`
	StopTimeout   time.Duration   `yaml:"stopTimeout,omitempty"`
	RestartPolicy api.RestartMode `yaml:"restartPolicy,omitempty"`
	RestartDelay  time.Duration   `yaml:"restartDelay,omitempty"`
}

// BootstrapConfig controls the steps run before any service when warden
// is the init process.
type BootstrapConfig struct {
	Mounts       bool   `yaml:"mounts,omitempty"`       // Mount /proc, /sys, /dev, /run
	Hostname     string `yaml:"hostname,omitempty"`     // Static hostname; wins over HostnameFile
	HostnameFile string `yaml:"hostnameFile,omitempty"` // File holding the hostname
	SeedFile     string `yaml:"seedFile,omitempty"`     // Random seed carried across boots
	Subreaper    bool   `yaml:"subreaper,omitempty"`    // Become child subreaper when not PID 1
}
