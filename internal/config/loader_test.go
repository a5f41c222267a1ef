package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/api"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadConfig_Override(t *testing.T) {
	path := writeConfig(t, `
servicesDir: /srv/services
logLevel: debug
logFormat: json
watch: true
environment:
  TZ: UTC
defaults:
  stopTimeout: 3s
  restartPolicy: on-failure
bootstrap:
  hostname: box
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/services", cfg.ServicesDir)
	assert.Equal(t, DefaultRuntimeDir, cfg.RuntimeDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.Watch)
	assert.Equal(t, map[string]string{"TZ": "UTC"}, cfg.Environment)
	assert.Equal(t, 3*time.Second, cfg.Defaults.StopTimeout)
	assert.Equal(t, 90*time.Second, cfg.Defaults.StartTimeout)
	assert.Equal(t, api.RestartOnFailure, cfg.Defaults.RestartPolicy)
	assert.Equal(t, "box", cfg.Bootstrap.Hostname)
	assert.True(t, cfg.Bootstrap.Mounts)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := writeConfig(t, "servicesDir: [unterminated\n")

	_, err := LoadConfig(path)
	require.Error(t, err)

	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "parse", cerr.ErrorType)
	assert.Equal(t, "warden.yaml", cerr.FileName)
	assert.Contains(t, cerr.DetailedError(), path)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, `
logLevel: loud
defaults:
  restartPolicy: sometimes
`)

	_, err := LoadConfig(path)
	require.Error(t, err)

	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "validation", cerr.ErrorType)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Environment = map[string]string{"A": "1"}

	data, err := Marshal(cfg)
	require.NoError(t, err)

	path := writeConfig(t, string(data))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
