package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"warden/internal/api"
	"warden/internal/events"
)

// fakeSupervisor posts the events a real supervisor would, without any OS
// processes. Behaviour is scripted per service name.
type fakeSupervisor struct {
	mu sync.Mutex
	q  *events.Queue

	nextPID int
	procs   map[int]string
	owners  map[string]events.Owner

	spawns     []string
	terminated []string
	killed     []string
	adopted    []int
	watches    map[string]string

	// exitOnSpawn makes the process exit right after it started.
	exitOnSpawn map[string]api.ExitStatus
	// exitOnSpawnOnce is consumed by the first spawn only.
	exitOnSpawnOnce map[string]api.ExitStatus
	spawnErr        map[string]error
	ignoreTerm      map[string]bool
}

func newFakeSupervisor(q *events.Queue) *fakeSupervisor {
	return &fakeSupervisor{
		q:               q,
		nextPID:         1000,
		procs:           make(map[int]string),
		owners:          make(map[string]events.Owner),
		watches:         make(map[string]string),
		exitOnSpawn:     make(map[string]api.ExitStatus),
		exitOnSpawnOnce: make(map[string]api.ExitStatus),
		spawnErr:        make(map[string]error),
		ignoreTerm:      make(map[string]bool),
	}
}

func (f *fakeSupervisor) Spawn(def api.ServiceDefinition, owner events.Owner) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.spawns = append(f.spawns, def.Name)
	f.owners[def.Name] = owner
	if err := f.spawnErr[def.Name]; err != nil {
		return 0, &api.SpawnError{Service: def.Name, Err: err}
	}

	f.nextPID++
	pid := f.nextPID
	f.procs[pid] = def.Name
	f.q.Push(events.ProcessStarted{Owner: owner, PID: pid})

	if st, ok := f.exitOnSpawnOnce[def.Name]; ok {
		delete(f.exitOnSpawnOnce, def.Name)
		f.exitLocked(pid, st)
	} else if st, ok := f.exitOnSpawn[def.Name]; ok {
		f.exitLocked(pid, st)
	}
	return pid, nil
}

func (f *fakeSupervisor) exitLocked(pid int, st api.ExitStatus) {
	if _, ok := f.procs[pid]; !ok {
		return
	}
	delete(f.procs, pid)
	f.q.Push(events.ProcessExited{PID: pid, Status: st})
}

func (f *fakeSupervisor) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, ok := f.procs[pid]
	if !ok {
		return api.NewNotFoundError("process", "pid")
	}
	f.terminated = append(f.terminated, name)
	if !f.ignoreTerm[name] {
		f.exitLocked(pid, api.ExitStatus{Kind: api.ExitAbnormal, Code: -1, Signal: "SIGTERM"})
	}
	return nil
}

func (f *fakeSupervisor) Kill(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name, ok := f.procs[pid]
	if !ok {
		return api.NewNotFoundError("process", "pid")
	}
	f.killed = append(f.killed, name)
	f.exitLocked(pid, api.ExitStatus{Kind: api.ExitAbnormal, Code: -1, Signal: "SIGKILL"})
	return nil
}

func (f *fakeSupervisor) Adopt(pid int, owner events.Owner, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.adopted = append(f.adopted, pid)
	f.procs[pid] = name
	return nil
}

func (f *fakeSupervisor) WatchPIDFile(owner events.Owner, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, o := range f.owners {
		if o == owner {
			f.watches[name] = path
		}
	}
	return nil
}

func (f *fakeSupervisor) CancelReadiness(events.Owner) {}

func (f *fakeSupervisor) ReapAll() int { return 0 }

// exit makes the running process of name exit.
func (f *fakeSupervisor) exit(name string, st api.ExitStatus) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for pid, n := range f.procs {
		if n == name {
			f.exitLocked(pid, st)
			return true
		}
	}
	return false
}

func (f *fakeSupervisor) owner(name string) events.Owner {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[name]
}

func (f *fakeSupervisor) spawnCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.spawns {
		if s == name {
			n++
		}
	}
	return n
}

func (f *fakeSupervisor) spawnOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spawns...)
}

func (f *fakeSupervisor) terminateOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.terminated...)
}

func (f *fakeSupervisor) killedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.killed...)
}

func (f *fakeSupervisor) watchFor(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watches[name]
}

// staticSource serves a definition set that tests can swap.
type staticSource struct {
	mu   sync.Mutex
	defs []api.ServiceDefinition
	err  error
}

func (s *staticSource) Load(context.Context) ([]api.ServiceDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]api.ServiceDefinition(nil), s.defs...), nil
}

func (s *staticSource) set(defs ...api.ServiceDefinition) {
	s.mu.Lock()
	s.defs = defs
	s.mu.Unlock()
}

var errExec = errors.New("exec format error")

type harness struct {
	t   *testing.T
	o   *Orchestrator
	sup *fakeSupervisor
	src *staticSource

	runDone chan struct{}
	runErr  error
}

func newHarness(t *testing.T, stateDir string, defs ...api.ServiceDefinition) *harness {
	t.Helper()

	q := events.NewQueue()
	h := &harness{
		t:       t,
		sup:     newFakeSupervisor(q),
		src:     &staticSource{defs: defs},
		runDone: make(chan struct{}),
	}
	h.o = New(Config{Queue: q, Supervisor: h.sup, Source: h.src, StateDir: stateDir})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(h.runDone)
		h.runErr = h.o.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.runDone:
		case <-time.After(5 * time.Second):
			t.Error("core loop did not stop")
		}
	})
	return h
}

func (h *harness) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	h.t.Cleanup(cancel)
	return ctx
}

func (h *harness) startAll() {
	h.t.Helper()
	require.NoError(h.t, h.o.StartAll(h.ctx()))
}

func (h *harness) status(name string) api.StateSnapshot {
	h.t.Helper()
	snap, err := h.o.Status(h.ctx(), name)
	require.NoError(h.t, err)
	return snap
}

func (h *harness) waitState(name string, state api.ServiceState) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		snap, err := h.o.Status(h.ctx(), name)
		return err == nil && snap.State == state
	}, 3*time.Second, 5*time.Millisecond, "%s never reached %s", name, state)
}

func service(name string, mods ...func(*api.ServiceDefinition)) api.ServiceDefinition {
	def := api.ServiceDefinition{
		Name:        name,
		Type:        api.TypeSimple,
		Exec:        "/usr/bin/" + name,
		Restart:     api.RestartPolicy{Mode: api.RestartNever},
		StopTimeout: time.Second,
	}
	for _, m := range mods {
		m(&def)
	}
	return def
}

func requires(deps ...string) func(*api.ServiceDefinition) {
	return func(d *api.ServiceDefinition) { d.Requires = deps }
}

func after(deps ...string) func(*api.ServiceDefinition) {
	return func(d *api.ServiceDefinition) { d.After = deps }
}

func ofType(t api.ServiceType) func(*api.ServiceDefinition) {
	return func(d *api.ServiceDefinition) { d.Type = t }
}

func restart(mode api.RestartMode, maxAttempts int) func(*api.ServiceDefinition) {
	return func(d *api.ServiceDefinition) {
		d.Restart = api.RestartPolicy{Mode: mode, MaxAttempts: maxAttempts, Delay: 10 * time.Millisecond}
	}
}

var (
	exitOK     = api.ExitStatus{Kind: api.ExitSuccess}
	exitFailed = api.ExitStatus{Kind: api.ExitFailure, Code: 1}
)
