package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
	"vawter.tech/stopper"

	"warden/internal/api"
	"warden/internal/events"
	"warden/pkg/logging"
)

// DefaultPath is used when neither the system environment nor the service
// provides PATH.
const DefaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Shell runs every exec command.
const Shell = "/bin/sh"

// ProcessHandle is the supervisor's record of one live OS process. It
// exists from spawn (or adoption) until the process is reaped.
type ProcessHandle struct {
	PID       int
	Owner     events.Owner
	Name      string
	StartedAt time.Time
	// Adopted is set for daemons discovered through a pid file. They are
	// not group leaders we created, so signals go to the pid only.
	Adopted bool

	process *os.Process
}

// Config configures a Supervisor.
type Config struct {
	// Sink receives ProcessStarted, ProcessExited and readiness events.
	Sink events.Sink
	// Environment is the merged system environment handed to every service
	// before its own overrides.
	Environment map[string]string
	// RuntimeDir holds notify sockets for services that do not set one.
	RuntimeDir string
	// Output receives inherited service output, line-prefixed with the
	// service name. Defaults to the log sink.
	Output io.Writer
}

// Supervisor spawns, signals and reaps service processes. It exclusively
// owns the handle table; the core loop only sees pids and events.
type Supervisor struct {
	mu      sync.Mutex
	handles map[int]*ProcessHandle
	waiters map[events.Owner]func()
	pumps   map[*os.File]struct{}
	pumpWG  sync.WaitGroup

	closeOnce sync.Once
	closeErr  error

	sink       events.Sink
	env        map[string]string
	runtimeDir string
	output     io.Writer

	workers *stopper.Context
}

// New creates a supervisor.
func New(cfg Config) *Supervisor {
	out := cfg.Output
	if out == nil {
		out = logging.Output()
	}
	return &Supervisor{
		handles:    make(map[int]*ProcessHandle),
		waiters:    make(map[events.Owner]func()),
		pumps:      make(map[*os.File]struct{}),
		sink:       cfg.Sink,
		env:        cfg.Environment,
		runtimeDir: cfg.RuntimeDir,
		output:     &lockedWriter{w: out},
		workers:    stopper.WithContext(context.Background()),
	}
}

// Spawn starts the process of a service definition and returns its pid.
// ProcessStarted is queued before the handle becomes visible to the
// reaper, so the matching ProcessExited can never overtake it.
func (s *Supervisor) Spawn(def api.ServiceDefinition, owner events.Owner) (int, error) {
	if def.Exec == "" {
		return 0, &api.SpawnError{Service: def.Name, Err: errors.New("no exec command")}
	}

	cmd := exec.Command(Shell, "-c", def.Exec)
	cmd.Dir = def.WorkingDirectory

	attr := &syscall.SysProcAttr{Setpgid: true}
	cred, err := resolveCredential(def.User, def.Group)
	if err != nil {
		return 0, &api.SpawnError{Service: def.Name, Err: err}
	}
	attr.Credential = cred
	cmd.SysProcAttr = attr

	env := s.environment(def)
	var notify *notifyListener
	if def.Type == api.TypeNotify {
		path := NotifySocketPath(s.runtimeDir, def)
		notify, err = listenNotify(path)
		if err != nil {
			return 0, &api.SpawnError{Service: def.Name, Err: err}
		}
		env = append(env, "NOTIFY_SOCKET="+path)
	}
	cmd.Env = env

	out, err := openOutput(def)
	if err != nil {
		notify.Close()
		return 0, &api.SpawnError{Service: def.Name, Err: err}
	}
	if out.child != nil {
		cmd.Stdout = out.child
		cmd.Stderr = out.child
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := cmd.Start(); err != nil {
		out.closeAll()
		notify.Close()
		return 0, &api.SpawnError{Service: def.Name, Err: err}
	}
	out.closeChild()

	pid := cmd.Process.Pid
	h := &ProcessHandle{
		PID:       pid,
		Owner:     owner,
		Name:      def.Name,
		StartedAt: time.Now(),
		process:   cmd.Process,
	}
	s.handles[pid] = h
	s.sink.Push(events.ProcessStarted{Owner: owner, PID: pid})

	if out.pump != nil {
		w := newPrefixedWriter(def.Name, s.output)
		r := out.pump
		s.pumps[r] = struct{}{}
		s.pumpWG.Add(1)
		s.workers.Go(func(*stopper.Context) error {
			defer s.pumpWG.Done()
			_, _ = io.Copy(w, r)
			w.Flush()
			s.mu.Lock()
			delete(s.pumps, r)
			s.mu.Unlock()
			_ = r.Close()
			return nil
		})
	}
	if notify != nil {
		s.waiters[owner] = notify.Close
		s.workers.Go(func(*stopper.Context) error {
			notify.serve(owner, s.sink)
			return nil
		})
	}

	logging.Debug("Supervisor", "Spawned %s as pid %d (%s)", def.Name, pid, owner)
	return pid, nil
}

// Adopt registers a process this supervisor did not spawn directly, such as
// the daemon left behind by a forking service. The process must be a child
// (directly or through subreaping) for its exit to be observed.
func (s *Supervisor) Adopt(pid int, owner events.Owner, name string) error {
	exists, err := process.PidExists(int32(pid))
	if err != nil {
		return fmt.Errorf("failed to check pid %d: %w", pid, err)
	}
	if !exists {
		return fmt.Errorf("process %d does not exist", pid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.handles[pid]; ok && existing.Owner != owner {
		return fmt.Errorf("process %d is already supervised for %s", pid, existing.Name)
	}
	s.handles[pid] = &ProcessHandle{
		PID:       pid,
		Owner:     owner,
		Name:      name,
		StartedAt: time.Now(),
		Adopted:   true,
	}
	logging.Debug("Supervisor", "Adopted pid %d for %s", pid, name)
	return nil
}

// Signal delivers sig to the process group of pid, or to pid alone for
// adopted processes.
func (s *Supervisor) Signal(pid int, sig syscall.Signal) error {
	s.mu.Lock()
	h, ok := s.handles[pid]
	s.mu.Unlock()
	if !ok {
		return api.NewNotFoundError("process", strconv.Itoa(pid))
	}

	if !h.Adopted {
		err := unix.Kill(-pid, sig)
		if err == nil || !errors.Is(err, unix.ESRCH) {
			return err
		}
	}
	return unix.Kill(pid, sig)
}

// Terminate asks the process group of pid to exit gracefully.
func (s *Supervisor) Terminate(pid int) error {
	return s.Signal(pid, unix.SIGTERM)
}

// Kill forcibly terminates the process group of pid.
func (s *Supervisor) Kill(pid int) error {
	return s.Signal(pid, unix.SIGKILL)
}

// ReapAll collects every exited child without blocking and queues one
// ProcessExited per supervised process. It returns the number of events
// queued. Children nobody supervises (orphans reparented to us) are reaped
// and dropped.
func (s *Supervisor) ReapAll() int {
	n := 0
	for {
		s.mu.Lock()
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			s.mu.Unlock()
			continue
		}
		if err != nil || pid <= 0 {
			s.mu.Unlock()
			return n
		}

		h, ok := s.handles[pid]
		if ok {
			delete(s.handles, pid)
			s.sink.Push(events.ProcessExited{PID: pid, Status: ClassifyWaitStatus(ws)})
			n++
		}
		s.mu.Unlock()

		if !ok {
			logging.Debug("Supervisor", "Reaped unsupervised process %d", pid)
			continue
		}
		if h.process != nil {
			_ = h.process.Release()
		}
	}
}

// ClassifyWaitStatus maps a raw wait status to success (code 0), failure
// (nonzero code) or abnormal (terminated by a signal).
func ClassifyWaitStatus(ws unix.WaitStatus) api.ExitStatus {
	switch {
	case ws.Exited():
		code := ws.ExitStatus()
		if code == 0 {
			return api.ExitStatus{Kind: api.ExitSuccess}
		}
		return api.ExitStatus{Kind: api.ExitFailure, Code: code}
	case ws.Signaled():
		return api.ExitStatus{Kind: api.ExitAbnormal, Code: -1, Signal: unix.SignalName(ws.Signal())}
	default:
		return api.ExitStatus{Kind: api.ExitAbnormal, Code: -1}
	}
}

// Handle returns a copy of the handle for pid.
func (s *Supervisor) Handle(pid int) (ProcessHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[pid]
	if !ok {
		return ProcessHandle{}, false
	}
	return *h, true
}

// Len returns the number of live supervised processes.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// CancelReadiness stops any readiness listener or pid-file waiter that is
// still pending for owner.
func (s *Supervisor) CancelReadiness(owner events.Owner) {
	s.mu.Lock()
	cancel, ok := s.waiters[owner]
	delete(s.waiters, owner)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close cancels all readiness waiters, gives output pumps up to grace to
// drain, then detaches them and waits for helper goroutines to finish. Live
// processes are left alone.
func (s *Supervisor) Close(grace time.Duration) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		for owner, cancel := range s.waiters {
			cancel()
			delete(s.waiters, owner)
		}
		s.mu.Unlock()

		drained := make(chan struct{})
		go func() {
			s.pumpWG.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(grace):
			s.mu.Lock()
			for r := range s.pumps {
				_ = r.Close()
			}
			s.mu.Unlock()
			<-drained
		}

		s.workers.Stop(grace)
		s.closeErr = s.workers.Wait()
	})
	return s.closeErr
}

func (s *Supervisor) environment(def api.ServiceDefinition) []string {
	merged := make(map[string]string, len(s.env)+len(def.Environment)+1)
	for k, v := range s.env {
		merged[k] = v
	}
	for k, v := range def.Environment {
		merged[k] = v
	}
	if _, ok := merged["PATH"]; !ok {
		merged["PATH"] = DefaultPath
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}

// NotifySocketPath returns where the readiness socket of def lives.
func NotifySocketPath(runtimeDir string, def api.ServiceDefinition) string {
	if def.NotifySocket != "" {
		return def.NotifySocket
	}
	if runtimeDir == "" {
		runtimeDir = os.TempDir()
	}
	return filepath.Join(runtimeDir, "notify", def.Name+".sock")
}
