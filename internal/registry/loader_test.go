package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/api"
	"warden/internal/config"
)

func writeDef(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0644))
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "db.yaml", `
type: notify
exec: /usr/bin/db
requires: [network.target]
after: [network.target]
restart:
  policy: on-failure
  delay: 2s
  maxAttempts: 5
`)
	writeDef(t, dir, "app.yml", `
exec: /usr/bin/app --port 8080
after: [db]
environment:
  MODE: prod
`)
	writeDef(t, dir, "README.md", "not a definition")

	loader := NewLoader(dir, config.Defaults{
		StartTimeout: time.Minute,
		StopTimeout:  5 * time.Second,
		RestartDelay: 100 * time.Millisecond,
	})
	defs, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)

	app, db := defs[0], defs[1]
	assert.Equal(t, "app", app.Name)
	assert.Equal(t, api.TypeSimple, app.Type)
	assert.Equal(t, []string{"db"}, app.After)
	assert.Equal(t, "prod", app.Environment["MODE"])
	assert.Equal(t, api.RestartNever, app.Restart.Mode)
	assert.Equal(t, 100*time.Millisecond, app.Restart.Delay)
	assert.Equal(t, time.Minute, app.StartTimeout)
	assert.Equal(t, 5*time.Second, app.StopTimeout)

	assert.Equal(t, "db", db.Name)
	assert.Equal(t, api.TypeNotify, db.Type)
	assert.Equal(t, api.RestartOnFailure, db.Restart.Mode)
	assert.Equal(t, 2*time.Second, db.Restart.Delay)
	assert.Equal(t, 5, db.Restart.MaxAttempts)
	assert.Equal(t, api.BackoffConstant, db.Restart.Backoff)
}

func TestLoader_MalformedExcluded(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "good.yaml", "exec: /bin/true\n")
	writeDef(t, dir, "broken.yaml", "exec: [oops\n")
	writeDef(t, dir, "invalid.yaml", "type: bogus\nexec: /bin/true\n")
	writeDef(t, dir, "forking.yaml", "type: forking\nexec: /usr/sbin/daemon\n")

	defs, errs, err := NewLoader(dir, config.Defaults{}).LoadWithErrors(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "good", defs[0].Name)

	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.True(t, api.IsConfigError(e))
	}
	assert.Equal(t, filepath.Join(dir, "broken.yaml"), errs[0].Path)
	assert.Equal(t, "forking", errs[1].Service)
	assert.ErrorContains(t, errs[1], "pidFile")
	assert.Equal(t, "invalid", errs[2].Service)
}

func TestLoader_DuplicateFirstWins(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "a.yaml", "name: web\nexec: /bin/first\n")
	writeDef(t, dir, "b.yaml", "name: web\nexec: /bin/second\n")

	defs, errs, err := NewLoader(dir, config.Defaults{}).LoadWithErrors(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "/bin/first", defs[0].Exec)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "duplicate")
}

func TestLoader_MissingDirectory(t *testing.T) {
	defs, err := NewLoader(filepath.Join(t.TempDir(), "nope"), config.Defaults{}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestLoader_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeDef(t, dir, "a.yaml", "exec: /bin/true\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(dir, config.Defaults{}).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	base := func() api.ServiceDefinition {
		return api.ServiceDefinition{Name: "svc", Type: api.TypeSimple, Exec: "/bin/true"}
	}

	tests := []struct {
		name    string
		modify  func(*api.ServiceDefinition)
		wantErr string
	}{
		{name: "valid", modify: func(*api.ServiceDefinition) {}},
		{name: "missing exec", modify: func(d *api.ServiceDefinition) { d.Exec = "" }, wantErr: "exec"},
		{name: "target without exec", modify: func(d *api.ServiceDefinition) { d.Type = api.TypeTarget; d.Exec = "" }},
		{name: "target with exec", modify: func(d *api.ServiceDefinition) { d.Type = api.TypeTarget }, wantErr: "exec"},
		{name: "bad policy", modify: func(d *api.ServiceDefinition) { d.Restart.Mode = "sometimes" }, wantErr: "restart.policy"},
		{name: "negative attempts", modify: func(d *api.ServiceDefinition) { d.Restart.MaxAttempts = -1 }, wantErr: "restart.maxAttempts"},
		{name: "relative pid file", modify: func(d *api.ServiceDefinition) { d.Type = api.TypeForking; d.PIDFile = "run/x.pid" }, wantErr: "pidFile"},
		{name: "remain on simple", modify: func(d *api.ServiceDefinition) { d.RemainAfterExit = true }, wantErr: "remainAfterExit"},
		{name: "name with space", modify: func(d *api.ServiceDefinition) { d.Name = "my svc" }, wantErr: "name"},
		{
			name: "max delay below delay",
			modify: func(d *api.ServiceDefinition) {
				d.Restart.Backoff = api.BackoffExponential
				d.Restart.Delay = time.Second
				d.Restart.MaxDelay = time.Millisecond
			},
			wantErr: "restart.maxDelay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := base()
			tt.modify(&def)
			err := Validate(def)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNameFromPath(t *testing.T) {
	assert.Equal(t, "db", NameFromPath("/etc/warden/services/db.yaml"))
	assert.Equal(t, "network.target", NameFromPath("network.target.yml"))
}
