// Package config provides configuration management for warden.
//
// The daemon reads a single YAML file, by default /etc/warden/warden.yaml.
// Values in the file are applied on top of GetDefaultConfig, so a missing
// file or a partial one is valid.
//
// # Configuration File
//
//	servicesDir: /etc/warden/services
//	runtimeDir: /run/warden
//	stateDir: /var/lib/warden
//	controlSocket: /run/warden/control.sock
//	metricsEnabled: true
//	logLevel: info
//	logFormat: text
//	watch: true
//	environment:
//	  TZ: UTC
//	defaults:
//	  startTimeout: 90s
//	  stopTimeout: 10s
//	  restartDelay: 100ms
//	bootstrap:
//	  mounts: true
//	  hostnameFile: /etc/hostname
//	  seedFile: /var/lib/warden/random-seed
//
// The environment section is opaque to the supervisor: it is merged into
// every service's environment, and keys set by a service definition win.
//
// # Errors
//
// LoadConfig returns a *ConfigurationError describing the file and the
// failing stage (io, parse or validation). Validation failures carry a
// ValidationErrors collection listing every offending field.
package config
