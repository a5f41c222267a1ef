package bootstrap

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"golang.org/x/sys/unix"

	"warden/internal/config"
	"warden/pkg/logging"
)

// SeedSize is the number of bytes carried in the random seed file.
const SeedSize = 512

// Mount describes one virtual filesystem mounted during bootstrap.
type Mount struct {
	Source string
	Target string
	FSType string
	Flags  uintptr
	Data   string
}

// DefaultMounts are the filesystems an init process needs before anything
// else can run.
var DefaultMounts = []Mount{
	{Source: "proc", Target: "/proc", FSType: "proc", Flags: unix.MS_NOSUID | unix.MS_NOEXEC | unix.MS_NODEV},
	{Source: "sysfs", Target: "/sys", FSType: "sysfs", Flags: unix.MS_NOSUID | unix.MS_NOEXEC | unix.MS_NODEV},
	{Source: "devtmpfs", Target: "/dev", FSType: "devtmpfs", Flags: unix.MS_NOSUID, Data: "mode=0755"},
	{Source: "devpts", Target: "/dev/pts", FSType: "devpts", Flags: unix.MS_NOSUID | unix.MS_NOEXEC, Data: "gid=5,mode=0620"},
	{Source: "tmpfs", Target: "/run", FSType: "tmpfs", Flags: unix.MS_NOSUID | unix.MS_NODEV, Data: "mode=0755"},
}

// System is the set of privileged calls bootstrap makes.
type System interface {
	Mount(source, target, fstype string, flags uintptr, data string) error
	Sethostname(name []byte) error
	SetChildSubreaper() error
	Getpid() int
}

type unixSystem struct{}

func (unixSystem) Mount(source, target, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, flags, data)
}

func (unixSystem) Sethostname(name []byte) error { return unix.Sethostname(name) }

func (unixSystem) SetChildSubreaper() error {
	return unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
}

func (unixSystem) Getpid() int { return unix.Getpid() }

// StepError reports a bootstrap step that failed. Any StepError is fatal
// for the whole process.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("bootstrap step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// IsStepError reports whether err came from a failed bootstrap step.
func IsStepError(err error) bool {
	var stepErr *StepError
	return errors.As(err, &stepErr)
}

// Bootstrapper prepares the machine before the first service starts.
type Bootstrapper struct {
	cfg    config.BootstrapConfig
	sys    System
	mounts []Mount

	// root prefixes every path bootstrap touches. Empty on a real system.
	root    string
	urandom string
}

// Option customizes a Bootstrapper.
type Option func(*Bootstrapper)

// WithSystem replaces the privileged calls, mostly for tests.
func WithSystem(sys System) Option {
	return func(b *Bootstrapper) { b.sys = sys }
}

// WithRoot makes every path relative to root.
func WithRoot(root string) Option {
	return func(b *Bootstrapper) { b.root = root }
}

// WithMounts replaces DefaultMounts.
func WithMounts(mounts []Mount) Option {
	return func(b *Bootstrapper) { b.mounts = mounts }
}

// New creates a Bootstrapper for cfg.
func New(cfg config.BootstrapConfig, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		cfg:     cfg,
		sys:     unixSystem{},
		mounts:  DefaultMounts,
		urandom: "/dev/urandom",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type step struct {
	name string
	run  func() error
}

func (b *Bootstrapper) steps() []step {
	var steps []step
	if b.cfg.Mounts {
		steps = append(steps, step{"mounts", b.mountAll})
	}
	steps = append(steps, step{"hostname", b.setHostname})
	if b.cfg.SeedFile != "" {
		steps = append(steps, step{"random-seed", b.seedRandom})
	}
	if b.cfg.Subreaper {
		steps = append(steps, step{"subreaper", b.becomeSubreaper})
	}
	return steps
}

// Run executes every enabled step in order and stops at the first failure.
func (b *Bootstrapper) Run() error {
	for _, s := range b.steps() {
		logging.Debug("Bootstrap", "Running step %s", s.name)
		if err := s.run(); err != nil {
			logging.Error("Bootstrap", err, "Step %s failed", s.name)
			return &StepError{Step: s.name, Err: err}
		}
	}
	logging.Info("Bootstrap", "Bootstrap complete")
	return nil
}

func (b *Bootstrapper) path(p string) string {
	if b.root == "" {
		return p
	}
	return filepath.Join(b.root, p)
}

func (b *Bootstrapper) mountAll() error {
	for _, m := range b.mounts {
		target := b.path(m.Target)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create mount point %s: %w", target, err)
		}
		err := b.sys.Mount(m.Source, target, m.FSType, m.Flags, m.Data)
		if errors.Is(err, unix.EBUSY) {
			logging.Debug("Bootstrap", "%s already mounted", target)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to mount %s on %s: %w", m.FSType, target, err)
		}
		logging.Info("Bootstrap", "Mounted %s on %s", m.FSType, target)
	}
	return nil
}

func (b *Bootstrapper) setHostname() error {
	name := strings.TrimSpace(b.cfg.Hostname)
	if name == "" && b.cfg.HostnameFile != "" {
		data, err := os.ReadFile(b.path(b.cfg.HostnameFile))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logging.Info("Bootstrap", "No hostname file at %s, keeping kernel hostname", b.cfg.HostnameFile)
			return nil
		case err != nil:
			return fmt.Errorf("failed to read hostname file: %w", err)
		}
		name = firstLine(string(data))
	}
	if name == "" {
		return nil
	}
	if len(name) > 64 {
		return fmt.Errorf("hostname %q is longer than 64 bytes", name)
	}
	if err := b.sys.Sethostname([]byte(name)); err != nil {
		return fmt.Errorf("failed to set hostname %q: %w", name, err)
	}
	logging.Info("Bootstrap", "Hostname set to %s", name)
	return nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}

// seedRandom mixes the stored seed into the kernel pool and replaces it
// with fresh bytes so the same seed is never used twice.
func (b *Bootstrapper) seedRandom() error {
	seedPath := b.path(b.cfg.SeedFile)
	seed, err := os.ReadFile(seedPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logging.Info("Bootstrap", "No random seed at %s, creating one", b.cfg.SeedFile)
	case err != nil:
		return fmt.Errorf("failed to read random seed: %w", err)
	case len(seed) > 0:
		if err := b.writeURandom(seed); err != nil {
			return err
		}
		logging.Debug("Bootstrap", "Mixed %d seed bytes into the entropy pool", len(seed))
	}

	fresh := make([]byte, SeedSize)
	if _, err := rand.Read(fresh); err != nil {
		return fmt.Errorf("failed to generate random seed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(seedPath), 0o755); err != nil {
		return fmt.Errorf("failed to create seed directory: %w", err)
	}
	if err := renameio.WriteFile(seedPath, fresh, 0o600); err != nil {
		return fmt.Errorf("failed to write random seed: %w", err)
	}
	return nil
}

func (b *Bootstrapper) writeURandom(seed []byte) error {
	f, err := os.OpenFile(b.path(b.urandom), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", b.urandom, err)
	}
	defer f.Close()
	if _, err := f.Write(seed); err != nil {
		return fmt.Errorf("failed to write %s: %w", b.urandom, err)
	}
	return nil
}

func (b *Bootstrapper) becomeSubreaper() error {
	if b.sys.Getpid() == 1 {
		return nil
	}
	if err := b.sys.SetChildSubreaper(); err != nil {
		return fmt.Errorf("failed to become child subreaper: %w", err)
	}
	logging.Info("Bootstrap", "Running as child subreaper")
	return nil
}
