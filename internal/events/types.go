package events

import (
	"fmt"

	"warden/internal/api"
)

// Event is anything the core loop consumes. Every concrete event is a small
// value type; the loop switches on the type.
type Event interface {
	EventName() string
}

// Owner identifies the instance incarnation an event belongs to. Index
// addresses the orchestrator's instance store, Generation is bumped every
// time the instance is (re)started so that late events from an earlier
// incarnation can be recognised and dropped.
type Owner struct {
	Index      int
	Generation uint64
}

func (o Owner) String() string {
	return fmt.Sprintf("#%d/%d", o.Index, o.Generation)
}

// ProcessStarted reports that a process was spawned for an instance. It is
// always queued before the matching ProcessExited.
type ProcessStarted struct {
	Owner Owner
	PID   int
}

// ProcessExited reports a reaped child together with its classification.
// Ownership is resolved by the loop through its pid table.
type ProcessExited struct {
	PID    int
	Status api.ExitStatus
}

// SpawnFailed reports that exec could not be performed at all.
type SpawnFailed struct {
	Owner Owner
	Err   error
}

// Ready reports that a notify-type service sent its readiness token.
type Ready struct {
	Owner Owner
}

// PIDFileReady reports the daemon pid read from a forking service's pid file.
type PIDFileReady struct {
	Owner Owner
	PID   int
}

// PIDFileFailed reports that the pid file never became readable.
type PIDFileFailed struct {
	Owner Owner
	Err   error
}

// StartTimeout fires when an instance did not become ready in time.
type StartTimeout struct {
	Owner Owner
}

// StopTimeout fires when a stopping instance ignored the termination signal.
type StopTimeout struct {
	Owner Owner
}

// RestartDue fires when a restart backoff delay elapsed.
type RestartDue struct {
	Owner Owner
}

// Shutdown requests a reverse-order stop of everything followed by exit.
type Shutdown struct{}

// ReloadConfig requests a re-read and diff of the service definitions.
type ReloadConfig struct{}

// DumpStatus requests a snapshot of every instance on the log sink.
type DumpStatus struct{}

func (ProcessStarted) EventName() string { return "process-started" }
func (ProcessExited) EventName() string  { return "process-exited" }
func (SpawnFailed) EventName() string    { return "spawn-failed" }
func (Ready) EventName() string          { return "ready" }
func (PIDFileReady) EventName() string   { return "pidfile-ready" }
func (PIDFileFailed) EventName() string  { return "pidfile-failed" }
func (StartTimeout) EventName() string   { return "start-timeout" }
func (StopTimeout) EventName() string    { return "stop-timeout" }
func (RestartDue) EventName() string     { return "restart-due" }
func (Shutdown) EventName() string       { return "shutdown" }
func (ReloadConfig) EventName() string   { return "reload-config" }
func (DumpStatus) EventName() string     { return "dump-status" }
