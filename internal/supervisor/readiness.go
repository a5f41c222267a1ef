package supervisor

import "warden/internal/api"

// ProcessEvent is something observed about a starting service's process.
type ProcessEvent int

const (
	EventSpawned ProcessEvent = iota
	EventExitedSuccess
	EventExitedFailure
	EventExitedAbnormal
	EventNotified
	EventPIDFile
)

// Verdict is the readiness outcome of a process event.
type Verdict int

const (
	// Pending means keep waiting within the start timeout.
	Pending Verdict = iota
	Ready
	// NotReady means the start attempt is over without readiness; the
	// restart policy decides what happens next.
	NotReady
	// AwaitPIDFile means the forking parent exited cleanly and the daemon
	// pid must now be read from the pid file.
	AwaitPIDFile
)

func (v Verdict) String() string {
	switch v {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case NotReady:
		return "not-ready"
	case AwaitPIDFile:
		return "await-pidfile"
	}
	return "unknown"
}

// ExitEvent maps an exit classification to the matching process event.
func ExitEvent(kind api.ExitKind) ProcessEvent {
	switch kind {
	case api.ExitSuccess:
		return EventExitedSuccess
	case api.ExitFailure:
		return EventExitedFailure
	default:
		return EventExitedAbnormal
	}
}

func isExit(ev ProcessEvent) bool {
	return ev == EventExitedSuccess || ev == EventExitedFailure || ev == EventExitedAbnormal
}

// Readiness decides whether a service of type t is ready after ev, while it
// is starting. It is a pure function of its inputs.
func Readiness(t api.ServiceType, remainAfterExit bool, ev ProcessEvent) Verdict {
	switch t {
	case api.TypeSimple, api.TypeIdle, api.TypeTarget:
		if ev == EventSpawned {
			return Ready
		}
		if isExit(ev) {
			return NotReady
		}

	case api.TypeForking:
		switch {
		case ev == EventExitedSuccess:
			return AwaitPIDFile
		case ev == EventPIDFile:
			return Ready
		case isExit(ev):
			return NotReady
		}

	case api.TypeOneshot:
		switch {
		case ev == EventSpawned && remainAfterExit:
			return Ready
		case ev == EventExitedSuccess:
			return Ready
		case isExit(ev):
			return NotReady
		}

	case api.TypeNotify:
		if ev == EventNotified {
			return Ready
		}
		if isExit(ev) {
			return NotReady
		}
	}
	return Pending
}
