package orchestrator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"

	"warden/internal/api"
	"warden/internal/events"
	"warden/internal/lifecycle"
	"warden/pkg/logging"
)

// Instance is the mutable runtime record of one service. It is owned by the
// core loop; the supervisor only knows its pid and Owner.
type Instance struct {
	index int

	ID  string
	Def api.ServiceDefinition

	machine   *lifecycle.Machine
	PID       int
	StartedAt time.Time
	// Attempts counts consecutive unexpected exits since the last manual start.
	Attempts int
	LastExit api.ExitStatus
	Reason   string

	generation uint64

	// pending marks an instance that should start once its dependencies allow.
	pending bool
	// spawning is set while a Spawn call is in flight.
	spawning        bool
	awaitingPIDFile bool
	reachedActive   bool
	// completed is set when the service finished successfully (oneshot).
	completed        bool
	stopRequested    bool
	restartAfterStop bool
	removeAfterStop  bool
	nextDef          *api.ServiceDefinition

	startTimer   *time.Timer
	stopTimer    *time.Timer
	restartTimer *time.Timer
	backoff      backoff.BackOff
}

func (o *Orchestrator) addInstance(def api.ServiceDefinition) *Instance {
	inst := &Instance{
		index: len(o.instances),
		ID:    uuid.NewString(),
		Def:   def,
	}
	inst.machine = lifecycle.New(def.Name, func(from, to api.ServiceState) {
		logging.Info("Orchestrator", "Service %s: %s -> %s (%s)", inst.Def.Name, from, to, inst.Reason)
		o.publishStateChange(api.StateChange{
			Name:      inst.Def.Name,
			From:      from,
			To:        to,
			Reason:    inst.Reason,
			Timestamp: time.Now(),
		})
	})
	o.instances = append(o.instances, inst)
	o.byName[def.Name] = inst.index
	return inst
}

func (o *Orchestrator) removeInstance(inst *Instance) {
	inst.stopTimers()
	if inst.PID > 0 {
		delete(o.byPID, inst.PID)
	}
	o.instances[inst.index] = nil
	delete(o.byName, inst.Def.Name)
	logging.Info("Orchestrator", "Removed service %s", inst.Def.Name)
	o.publishStateChange(api.StateChange{
		Name:      inst.Def.Name,
		From:      inst.State(),
		Reason:    "removed",
		Timestamp: time.Now(),
	})
}

func (o *Orchestrator) lookup(name string) *Instance {
	idx, ok := o.byName[name]
	if !ok {
		return nil
	}
	return o.instances[idx]
}

// owned resolves an event owner to the current incarnation of an instance.
func (o *Orchestrator) owned(owner events.Owner) *Instance {
	if owner.Index < 0 || owner.Index >= len(o.instances) {
		return nil
	}
	inst := o.instances[owner.Index]
	if inst == nil || inst.generation != owner.Generation {
		return nil
	}
	return inst
}

// fire applies a lifecycle event, recording reason for subscribers.
func (o *Orchestrator) fire(inst *Instance, ev lifecycle.Event, reason string) bool {
	inst.Reason = reason
	if err := inst.machine.Fire(context.Background(), ev); err != nil {
		logging.Error("Orchestrator", err, "Rejected transition for service %s", inst.Def.Name)
		return false
	}
	return true
}

// State returns the current lifecycle state.
func (i *Instance) State() api.ServiceState {
	return i.machine.Current()
}

func (i *Instance) owner() events.Owner {
	return events.Owner{Index: i.index, Generation: i.generation}
}

func (i *Instance) running() bool {
	switch i.State() {
	case api.StateStarting, api.StateActive, api.StateStopping, api.StateRestarting:
		return true
	}
	return false
}

func (i *Instance) snapshot() api.StateSnapshot {
	return api.StateSnapshot{
		Name:         i.Def.Name,
		ID:           i.ID,
		Type:         i.Def.Type,
		State:        i.State(),
		PID:          i.PID,
		RestartCount: i.Attempts,
		LastExit:     i.LastExit,
		StartedAt:    i.StartedAt,
		Since:        i.machine.Since(),
		Reason:       i.Reason,
	}
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (i *Instance) stopTimers() {
	stopTimer(&i.startTimer)
	stopTimer(&i.stopTimer)
	stopTimer(&i.restartTimer)
}
