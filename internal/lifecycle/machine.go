package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"warden/internal/api"
)

// Event names a lifecycle transition trigger.
type Event string

const (
	EventStart            Event = "start"
	EventReady            Event = "ready"
	EventFail             Event = "fail"
	EventStop             Event = "stop"
	EventStopped          Event = "stopped"
	EventRestart          Event = "restart"
	EventRetry            Event = "retry"
	EventCancel           Event = "cancel"
	EventFinish           Event = "finish"
	EventDependencyFailed Event = "dependency-failed"
)

func states(s ...api.ServiceState) []string {
	out := make([]string, len(s))
	for i, st := range s {
		out[i] = string(st)
	}
	return out
}

// Transitions is the complete set of legal lifecycle transitions.
var Transitions = fsm.Events{
	{Name: string(EventStart), Src: states(api.StateInactive, api.StateFailed), Dst: string(api.StateStarting)},
	{Name: string(EventReady), Src: states(api.StateStarting), Dst: string(api.StateActive)},
	{Name: string(EventFail), Src: states(api.StateStarting, api.StateActive), Dst: string(api.StateFailed)},
	{Name: string(EventStop), Src: states(api.StateActive, api.StateStarting), Dst: string(api.StateStopping)},
	{Name: string(EventStopped), Src: states(api.StateStopping), Dst: string(api.StateInactive)},
	{Name: string(EventRestart), Src: states(api.StateActive, api.StateStarting), Dst: string(api.StateRestarting)},
	{Name: string(EventRetry), Src: states(api.StateRestarting), Dst: string(api.StateStarting)},
	{Name: string(EventCancel), Src: states(api.StateRestarting), Dst: string(api.StateInactive)},
	{Name: string(EventFinish), Src: states(api.StateActive), Dst: string(api.StateInactive)},
	{Name: string(EventDependencyFailed), Src: states(api.StateInactive, api.StateStarting, api.StateRestarting), Dst: string(api.StateFailed)},
}

// TransitionFunc observes a completed transition.
type TransitionFunc func(from, to api.ServiceState)

// InvalidTransitionError is returned when an event is not allowed from the
// current state.
type InvalidTransitionError struct {
	Service string
	Event   Event
	State   api.ServiceState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("service %s: event %s is not valid in state %s", e.Service, e.Event, e.State)
}

// IsInvalidTransition reports whether err is or wraps an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

// Machine tracks the lifecycle state of one service instance. It is not
// safe for concurrent use; the orchestrator loop serializes every call.
type Machine struct {
	name  string
	fsm   *fsm.FSM
	since time.Time
	now   func() time.Time
}

// New returns a machine in the Inactive state. onTransition may be nil.
func New(name string, onTransition TransitionFunc) *Machine {
	m := &Machine{name: name, now: time.Now}
	m.since = m.now()
	m.fsm = fsm.NewFSM(
		string(api.StateInactive),
		Transitions,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.since = m.now()
				if onTransition != nil {
					onTransition(api.ServiceState(e.Src), api.ServiceState(e.Dst))
				}
			},
		},
	)
	return m
}

// Fire applies an event. Illegal events leave the state untouched and
// return an InvalidTransitionError.
func (m *Machine) Fire(ctx context.Context, ev Event) error {
	from := m.Current()
	if err := m.fsm.Event(ctx, string(ev)); err != nil {
		var invalid fsm.InvalidEventError
		var unknown fsm.UnknownEventError
		if errors.As(err, &invalid) || errors.As(err, &unknown) {
			return &InvalidTransitionError{Service: m.name, Event: ev, State: from}
		}
		return fmt.Errorf("service %s: transition %s failed: %w", m.name, ev, err)
	}
	return nil
}

// Current returns the current state.
func (m *Machine) Current() api.ServiceState {
	return api.ServiceState(m.fsm.Current())
}

// Can reports whether ev is legal from the current state.
func (m *Machine) Can(ev Event) bool {
	return m.fsm.Can(string(ev))
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	return m.since
}
