package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"vawter.tech/stopper"

	"warden/internal/api"
	"warden/internal/dependency"
	"warden/internal/events"
	"warden/internal/signals"
	"warden/pkg/logging"
)

// defaultStopTimeout bounds a graceful stop when the definition sets none.
const defaultStopTimeout = 10 * time.Second

// ErrStopInProgress is returned for start requests while stop_all runs.
var ErrStopInProgress = errors.New("stop of all services in progress")

// ErrBootInterrupted is returned to start_all callers when stop_all begins
// before boot completed.
var ErrBootInterrupted = errors.New("boot interrupted by stop of all services")

// ProcessSupervisor is what the core loop needs from the Process Supervisor.
// Spawn and ReapAll report their outcomes as events on the queue.
type ProcessSupervisor interface {
	Spawn(def api.ServiceDefinition, owner events.Owner) (int, error)
	Terminate(pid int) error
	Kill(pid int) error
	Adopt(pid int, owner events.Owner, name string) error
	WatchPIDFile(owner events.Owner, path string) error
	CancelReadiness(owner events.Owner)
	ReapAll() int
}

// DefinitionSource supplies the validated service definitions.
type DefinitionSource interface {
	Load(ctx context.Context) ([]api.ServiceDefinition, error)
}

// Config holds the configuration for the orchestrator.
type Config struct {
	Queue      *events.Queue
	Supervisor ProcessSupervisor
	Source     DefinitionSource
	// StateDir receives status.json on every status dump. Empty disables it.
	StateDir string
}

// Orchestrator is the core loop. It is the explicit context object of the
// supervision engine: the only goroutine that touches instances, the
// dependency graph or the pid table is the one running Run.
type Orchestrator struct {
	queue    *events.Queue
	sup      ProcessSupervisor
	source   DefinitionSource
	stateDir string

	// Loop-owned state. Never touched outside dispatch.
	instances []*Instance // index-addressed, nil marks a removed instance
	byName    map[string]int
	byPID     map[int]int
	graph     *dependency.Graph
	levels    [][]string
	levelOf   map[string]int

	booting     bool
	bootDone    bool
	bootLevel   int
	bootWaiters []chan<- error

	stopAll      *stopAllState
	shuttingDown bool
	exit         bool

	ctx     context.Context
	workers *stopper.Context

	// State change event subscribers
	mu                     sync.RWMutex
	stateChangeSubscribers []chan api.StateChange

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a new orchestrator. Nothing runs until Run is called.
func New(cfg Config) *Orchestrator {
	q := cfg.Queue
	if q == nil {
		q = events.NewQueue()
	}
	return &Orchestrator{
		queue:    q,
		sup:      cfg.Supervisor,
		source:   cfg.Source,
		stateDir: cfg.StateDir,
		byName:   make(map[string]int),
		byPID:    make(map[int]int),
		levelOf:  make(map[string]int),
		done:     make(chan struct{}),
	}
}

// Queue returns the event queue the loop consumes.
func (o *Orchestrator) Queue() *events.Queue {
	return o.queue
}

// Done is closed once the loop has exited.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Run processes events until shutdown completes or ctx is cancelled. A
// single service's error never ends the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	sctx := stopper.WithContext(ctx)
	o.ctx = ctx
	o.workers = sctx

	sctx.Go(func(s *stopper.Context) error {
		select {
		case <-ctx.Done():
			s.Stop(0)
		case <-s.Stopping():
		}
		return nil
	})
	sctx.Go(func(s *stopper.Context) error {
		defer s.Stop(time.Second)
		o.loop(s.Stopping())
		return nil
	})

	err := sctx.Wait()
	o.teardown()
	logging.Info("Orchestrator", "Core loop stopped")
	return err
}

func (o *Orchestrator) loop(stopping <-chan struct{}) {
	logging.Info("Orchestrator", "Core loop started")
	for !o.exit {
		ev, ok := o.queue.Pop(stopping)
		if !ok {
			return
		}
		o.dispatch(ev)
	}
}

func (o *Orchestrator) dispatch(ev events.Event) {
	switch e := ev.(type) {
	case command:
		e.run()
	case events.ProcessStarted:
		o.onProcessStarted(e)
	case events.ProcessExited:
		o.onProcessExited(e)
	case events.SpawnFailed:
		o.onSpawnFailed(e)
	case events.Ready:
		o.onReady(e)
	case events.PIDFileReady:
		o.onPIDFileReady(e)
	case events.PIDFileFailed:
		o.onPIDFileFailed(e)
	case events.StartTimeout:
		o.onStartTimeout(e)
	case events.StopTimeout:
		o.onStopTimeout(e)
	case events.RestartDue:
		o.onRestartDue(e)
	case events.Shutdown:
		logging.Info("Orchestrator", "Shutdown requested")
		o.beginStopAll(true, nil)
	case events.ReloadConfig:
		if err := o.reload(); err != nil {
			logging.Error("Orchestrator", err, "Reload failed, keeping current definitions")
		}
	case events.DumpStatus:
		if err := o.dumpStatus(); err != nil {
			logging.Error("Orchestrator", err, "Failed to write status snapshot")
		}
	default:
		logging.Warn("Orchestrator", "Ignoring unknown event %s", ev.EventName())
	}
	o.reconcile()
}

// reconcile runs after every event: start whatever became startable, move
// stop_all forward and detect boot completion.
func (o *Orchestrator) reconcile() {
	o.advance()
	o.progressStopAll()
	o.checkBootComplete()
}

func (o *Orchestrator) teardown() {
	o.doneOnce.Do(func() {
		for _, inst := range o.instances {
			if inst != nil {
				inst.stopTimers()
			}
		}
		o.queue.Close()
		for _, w := range o.bootWaiters {
			w <- api.ErrShuttingDown
		}
		o.bootWaiters = nil
		close(o.done)

		o.mu.Lock()
		for _, ch := range o.stateChangeSubscribers {
			close(ch)
		}
		o.stateChangeSubscribers = nil
		o.mu.Unlock()
	})
}

// HandleSignal converts a normalized OS notification into core events.
// Reaping happens right here on the caller's goroutine; the supervisor
// queues one ProcessExited per reaped child.
func (o *Orchestrator) HandleSignal(kind signals.Kind) {
	switch kind {
	case signals.ChildExited:
		o.sup.ReapAll()
	case signals.Terminate, signals.Interrupt:
		o.queue.Push(events.Shutdown{})
	case signals.Reload:
		o.queue.Push(events.ReloadConfig{})
	case signals.DumpStatus:
		o.queue.Push(events.DumpStatus{})
	}
}

// SubscribeToStateChanges returns a channel for state change events. The
// channel is closed when the loop exits.
func (o *Orchestrator) SubscribeToStateChanges() <-chan api.StateChange {
	eventChan := make(chan api.StateChange, 100)
	o.mu.Lock()
	o.stateChangeSubscribers = append(o.stateChangeSubscribers, eventChan)
	o.mu.Unlock()
	return eventChan
}

func (o *Orchestrator) publishStateChange(change api.StateChange) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, ch := range o.stateChangeSubscribers {
		select {
		case ch <- change:
		default:
			logging.Debug("Orchestrator", "Subscriber blocked, skipping event for service %s", change.Name)
		}
	}
}

// after posts ev onto the queue once d elapsed.
func (o *Orchestrator) after(d time.Duration, ev events.Event) *time.Timer {
	return time.AfterFunc(d, func() { o.queue.Push(ev) })
}
