package bootstrap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"warden/internal/config"
)

type mountCall struct {
	target string
	fstype string
}

type fakeSystem struct {
	pid       int
	mounts    []mountCall
	mountErr  map[string]error
	hostname  string
	hostErr   error
	subreaper bool
	reaperErr error
}

func (f *fakeSystem) Mount(source, target, fstype string, flags uintptr, data string) error {
	if err, ok := f.mountErr[fstype]; ok {
		return err
	}
	f.mounts = append(f.mounts, mountCall{target: target, fstype: fstype})
	return nil
}

func (f *fakeSystem) Sethostname(name []byte) error {
	if f.hostErr != nil {
		return f.hostErr
	}
	f.hostname = string(name)
	return nil
}

func (f *fakeSystem) SetChildSubreaper() error {
	if f.reaperErr != nil {
		return f.reaperErr
	}
	f.subreaper = true
	return nil
}

func (f *fakeSystem) Getpid() int { return f.pid }

func newTestBootstrapper(t *testing.T, cfg config.BootstrapConfig, sys *fakeSystem) (*Bootstrapper, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dev"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dev", "urandom"), nil, 0o644))
	return New(cfg, WithSystem(sys), WithRoot(root)), root
}

func TestRun_AllSteps(t *testing.T) {
	sys := &fakeSystem{pid: 4711}
	cfg := config.BootstrapConfig{
		Mounts:       true,
		HostnameFile: "/etc/hostname",
		SeedFile:     "/var/lib/warden/random-seed",
		Subreaper:    true,
	}
	b, root := newTestBootstrapper(t, cfg, sys)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc", "hostname"), []byte("# managed\nbox01\n"), 0o644))
	seedPath := filepath.Join(root, "var", "lib", "warden", "random-seed")
	require.NoError(t, os.MkdirAll(filepath.Dir(seedPath), 0o755))
	require.NoError(t, os.WriteFile(seedPath, []byte("old-seed"), 0o600))

	require.NoError(t, b.Run())

	var targets []string
	for _, m := range sys.mounts {
		targets = append(targets, m.target)
	}
	assert.Equal(t, []string{
		filepath.Join(root, "proc"),
		filepath.Join(root, "sys"),
		filepath.Join(root, "dev"),
		filepath.Join(root, "dev", "pts"),
		filepath.Join(root, "run"),
	}, targets)
	assert.Equal(t, "box01", sys.hostname)
	assert.True(t, sys.subreaper)

	mixed, err := os.ReadFile(filepath.Join(root, "dev", "urandom"))
	require.NoError(t, err)
	assert.Equal(t, "old-seed", string(mixed))

	fresh, err := os.ReadFile(seedPath)
	require.NoError(t, err)
	assert.Len(t, fresh, SeedSize)

	info, err := os.Stat(seedPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRun_StaticHostnameWins(t *testing.T) {
	sys := &fakeSystem{pid: 1}
	b, root := newTestBootstrapper(t, config.BootstrapConfig{Hostname: "static", HostnameFile: "/etc/hostname"}, sys)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "etc", "hostname"), []byte("fromfile\n"), 0o644))

	require.NoError(t, b.Run())
	assert.Equal(t, "static", sys.hostname)
}

func TestRun_MissingFilesAreNotFatal(t *testing.T) {
	sys := &fakeSystem{pid: 1}
	cfg := config.BootstrapConfig{
		HostnameFile: "/etc/hostname",
		SeedFile:     "/var/lib/warden/random-seed",
	}
	b, root := newTestBootstrapper(t, cfg, sys)

	require.NoError(t, b.Run())
	assert.Empty(t, sys.hostname)

	seed, err := os.ReadFile(filepath.Join(root, "var", "lib", "warden", "random-seed"))
	require.NoError(t, err)
	assert.Len(t, seed, SeedSize)

	mixed, err := os.ReadFile(filepath.Join(root, "dev", "urandom"))
	require.NoError(t, err)
	assert.Empty(t, mixed)
}

func TestRun_AlreadyMountedIsSkipped(t *testing.T) {
	sys := &fakeSystem{pid: 1, mountErr: map[string]error{"proc": unix.EBUSY}}
	b, _ := newTestBootstrapper(t, config.BootstrapConfig{Mounts: true}, sys)

	require.NoError(t, b.Run())
	assert.Len(t, sys.mounts, len(DefaultMounts)-1)
}

func TestRun_SubreaperSkippedAsPID1(t *testing.T) {
	sys := &fakeSystem{pid: 1}
	b, _ := newTestBootstrapper(t, config.BootstrapConfig{Subreaper: true}, sys)

	require.NoError(t, b.Run())
	assert.False(t, sys.subreaper)
}

func TestRun_FailuresAreFatal(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		cfg  config.BootstrapConfig
		sys  *fakeSystem
		step string
	}{
		{
			name: "mount",
			cfg:  config.BootstrapConfig{Mounts: true, Hostname: "box"},
			sys:  &fakeSystem{pid: 1, mountErr: map[string]error{"sysfs": unix.EPERM}},
			step: "mounts",
		},
		{
			name: "hostname",
			cfg:  config.BootstrapConfig{Hostname: "box"},
			sys:  &fakeSystem{pid: 1, hostErr: boom},
			step: "hostname",
		},
		{
			name: "hostname too long",
			cfg:  config.BootstrapConfig{Hostname: string(make([]byte, 65))},
			sys:  &fakeSystem{pid: 1},
			step: "hostname",
		},
		{
			name: "subreaper",
			cfg:  config.BootstrapConfig{Subreaper: true},
			sys:  &fakeSystem{pid: 99, reaperErr: boom},
			step: "subreaper",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBootstrapper(t, tt.cfg, tt.sys)
			err := b.Run()
			require.Error(t, err)
			assert.True(t, IsStepError(err))

			var stepErr *StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, tt.step, stepErr.Step)
		})
	}
}

func TestRun_MountFailureStopsLaterSteps(t *testing.T) {
	sys := &fakeSystem{pid: 1, mountErr: map[string]error{"proc": unix.EPERM}}
	b, _ := newTestBootstrapper(t, config.BootstrapConfig{Mounts: true, Hostname: "box"}, sys)

	require.Error(t, b.Run())
	assert.Empty(t, sys.hostname)
}
