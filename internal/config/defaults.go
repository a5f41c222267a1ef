package config

import (
	"time"

	"warden/internal/api"
)

const (
	// DefaultConfigFile is read by serve when --config is not given.
	DefaultConfigFile = "/etc/warden/warden.yaml"

	DefaultServicesDir   = "/etc/warden/services"
	DefaultRuntimeDir    = "/run/warden"
	DefaultStateDir      = "/var/lib/warden"
	DefaultControlSocket = "/run/warden/control.sock"

	DefaultWatchDebounce = 500 * time.Millisecond
)

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() WardenConfig {
	return WardenConfig{
		ServicesDir:    DefaultServicesDir,
		RuntimeDir:     DefaultRuntimeDir,
		StateDir:       DefaultStateDir,
		ControlSocket:  DefaultControlSocket,
		MetricsEnabled: true,
		LogLevel:       "info",
		LogFormat:      "text",
		WatchDebounce:  DefaultWatchDebounce,
		Defaults: Defaults{
			StartTimeout:  90 * time.Second,
			StopTimeout:   10 * time.Second,
			RestartPolicy: api.RestartNever,
			RestartDelay:  100 * time.Millisecond,
		},
		Bootstrap: BootstrapConfig{
			Mounts:       true,
			HostnameFile: "/etc/hostname",
			SeedFile:     "/var/lib/warden/random-seed",
			Subreaper:    true,
		},
	}
}
