package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"warden/pkg/logging"
)

// LoadConfig reads the configuration file at path on top of the defaults.
// A missing file yields the defaults.
func LoadConfig(path string) (WardenConfig, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config found at %s, using defaults", path)
			return config, nil
		}
		return WardenConfig{}, NewConfigurationError(path, "io", "failed to read configuration", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		cerr := NewConfigurationError(path, "parse", "malformed configuration", err)
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
			cerr.Details = typeErr.Errors[0]
		}
		return WardenConfig{}, cerr
	}

	if err := Validate(config); err != nil {
		return WardenConfig{}, NewConfigurationError(path, "validation", "invalid configuration", err)
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return config, nil
}

// Marshal renders the configuration as YAML.
func Marshal(config WardenConfig) ([]byte, error) {
	data, err := yaml.Marshal(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration: %w", err)
	}
	return data, nil
}
