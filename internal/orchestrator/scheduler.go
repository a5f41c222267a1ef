package orchestrator

import (
	"warden/internal/api"
	"warden/internal/dependency"
	"warden/internal/lifecycle"
	"warden/pkg/logging"
)

type depVerdict int

const (
	depsWait depVerdict = iota
	depsReady
	depsFailed
)

// advance starts every pending instance whose dependencies allow it and
// cancels those whose required dependency failed. It repeats until a pass
// changes nothing, so failures propagate transitively.
func (o *Orchestrator) advance() {
	if o.stopAll != nil {
		return
	}
	for {
		changed := false

		if o.booting {
			for o.bootLevel < len(o.levels) && o.levelComplete(o.bootLevel) {
				logging.Debug("Orchestrator", "Boot level %d complete", o.bootLevel)
				o.bootLevel++
				changed = true
			}
		}

		for _, inst := range o.instances {
			if inst == nil || !inst.pending || !o.eligible(inst) {
				continue
			}
			if st := inst.State(); st != api.StateInactive && st != api.StateFailed {
				inst.pending = false
				continue
			}

			dep, verdict, pulled := o.checkDependencies(inst)
			changed = changed || pulled
			switch verdict {
			case depsReady:
				o.launch(inst, lifecycle.EventStart, "start requested")
				changed = true
			case depsFailed:
				o.cancelDependent(inst, dep)
				changed = true
			}
		}

		// A dependent that never came up and is waiting to retry gives up
		// once a requirement failed.
		for _, inst := range o.instances {
			if inst == nil || inst.State() != api.StateRestarting || inst.reachedActive {
				continue
			}
			if dep := o.failedRequirement(inst); dep != "" {
				stopTimer(&inst.restartTimer)
				o.cancelDependent(inst, dep)
				changed = true
			}
		}

		// Dependents still coming up give up as soon as a requirement fails.
		for _, inst := range o.instances {
			if inst == nil || inst.pending || inst.State() != api.StateFailed || o.graph == nil {
				continue
			}
			for _, id := range o.graph.RequiredBy(dependency.NodeID(inst.Def.Name)) {
				dep := o.lookup(string(id))
				if dep == nil || dep.State() != api.StateStarting || dep.reachedActive {
					continue
				}
				o.abortStart(dep)
				o.cancelDependent(dep, inst.Def.Name)
				changed = true
			}
		}

		if !changed {
			return
		}
	}
}

// eligible applies boot gating: during start_all an instance waits for its
// topological level, and idle services wait for every level.
func (o *Orchestrator) eligible(inst *Instance) bool {
	if !o.booting {
		return true
	}
	if inst.Def.Type == api.TypeIdle {
		return o.bootLevel >= len(o.levels)
	}
	lvl, ok := o.levelOf[inst.Def.Name]
	if !ok {
		return true
	}
	return lvl <= o.bootLevel
}

// levelComplete reports whether every non-idle member of a level reached a
// terminal state for this boot.
func (o *Orchestrator) levelComplete(level int) bool {
	for _, name := range o.levels[level] {
		inst := o.lookup(name)
		if inst == nil || inst.Def.Type == api.TypeIdle {
			continue
		}
		if inst.pending {
			return false
		}
		switch inst.State() {
		case api.StateActive, api.StateFailed, api.StateInactive:
		default:
			return false
		}
	}
	return true
}

// checkDependencies decides whether a pending instance may start. A
// required dependency that is neither running nor pending is pulled in.
func (o *Orchestrator) checkDependencies(inst *Instance) (string, depVerdict, bool) {
	pulled := false
	ready := true

	for _, name := range inst.Def.Requires {
		dep := o.lookup(name)
		if dep == nil {
			continue
		}
		switch dep.State() {
		case api.StateFailed:
			if !dep.pending {
				return name, depsFailed, pulled
			}
			ready = false
		case api.StateActive:
		case api.StateInactive:
			if dep.completed && !dep.pending {
				continue
			}
			if !dep.pending {
				dep.pending = true
				pulled = true
				logging.Debug("Orchestrator", "Pulling in %s required by %s", name, inst.Def.Name)
			}
			ready = false
		default:
			ready = false
		}
	}

	for _, name := range inst.Def.After {
		dep := o.lookup(name)
		if dep == nil {
			continue
		}
		switch dep.State() {
		case api.StateActive, api.StateFailed:
			if dep.pending {
				ready = false
			}
		case api.StateInactive:
			if dep.pending {
				ready = false
			}
		default:
			ready = false
		}
	}

	if ready {
		return "", depsReady, pulled
	}
	return "", depsWait, pulled
}

// failedRequirement returns the first required dependency in state Failed.
func (o *Orchestrator) failedRequirement(inst *Instance) string {
	for _, name := range inst.Def.Requires {
		if dep := o.lookup(name); dep != nil && dep.State() == api.StateFailed && !dep.pending {
			return name
		}
	}
	return ""
}

func (o *Orchestrator) cancelDependent(inst *Instance, dep string) {
	inst.pending = false
	reason := (&api.DependencyFailedError{Service: inst.Def.Name, Dependency: dep}).Error()
	if inst.State() == api.StateFailed {
		inst.Reason = reason
		return
	}
	o.fire(inst, lifecycle.EventDependencyFailed, reason)
}

// pullWants marks wanted services for a best-effort start.
func (o *Orchestrator) pullWants(inst *Instance) {
	for _, name := range inst.Def.Wants {
		dep := o.lookup(name)
		if dep == nil || dep.pending || dep.completed {
			continue
		}
		if dep.State() == api.StateInactive {
			dep.pending = true
		}
	}
}

// beginBoot marks every stopped instance pending and starts level gating.
func (o *Orchestrator) beginBoot(reply chan<- error) {
	if o.stopAll != nil {
		reply <- ErrStopInProgress
		return
	}
	if o.graph == nil {
		if err := o.reload(); err != nil {
			reply <- err
			return
		}
	}

	o.booting = true
	o.bootLevel = 0
	count := 0
	for _, inst := range o.instances {
		if inst == nil {
			continue
		}
		switch inst.State() {
		case api.StateInactive, api.StateFailed:
			inst.pending = true
			inst.Attempts = 0
			inst.backoff = nil
			count++
		}
	}
	o.bootWaiters = append(o.bootWaiters, reply)
	logging.Info("Orchestrator", "Starting %d services in %d levels", count, len(o.levels))
}

func (o *Orchestrator) checkBootComplete() {
	if !o.booting || o.bootLevel < len(o.levels) {
		return
	}
	for _, inst := range o.instances {
		if inst == nil {
			continue
		}
		if inst.pending || inst.State() == api.StateStarting {
			return
		}
	}

	o.booting = false
	o.bootDone = true

	active, failed := 0, 0
	for _, inst := range o.instances {
		if inst == nil {
			continue
		}
		switch inst.State() {
		case api.StateActive:
			active++
		case api.StateFailed:
			failed++
		}
	}
	logging.Info("Orchestrator", "Boot complete: %d active, %d failed", active, failed)

	for _, w := range o.bootWaiters {
		w <- nil
	}
	o.bootWaiters = nil
}

// stopAllState tracks a reverse-order stop of every instance. Phase 0 holds
// idle services, the remaining phases are the topological levels reversed.
type stopAllState struct {
	phases  [][]int
	phase   int
	waiters []chan<- error
	exit    bool
}

func (o *Orchestrator) beginStopAll(exit bool, reply chan<- error) {
	if exit {
		o.shuttingDown = true
	}
	if o.stopAll != nil {
		o.stopAll.exit = o.stopAll.exit || exit
		if reply != nil {
			o.stopAll.waiters = append(o.stopAll.waiters, reply)
		}
		return
	}

	if o.booting {
		o.booting = false
		err := ErrBootInterrupted
		if exit {
			err = api.ErrShuttingDown
		}
		for _, w := range o.bootWaiters {
			w <- err
		}
		o.bootWaiters = nil
	}

	var idle []int
	seen := make(map[int]bool)
	for _, inst := range o.instances {
		if inst == nil {
			continue
		}
		inst.pending = false
		if inst.Def.Type == api.TypeIdle {
			idle = append(idle, inst.index)
			seen[inst.index] = true
		}
	}
	phases := [][]int{idle}
	for l := len(o.levels) - 1; l >= 0; l-- {
		var phase []int
		for _, name := range o.levels[l] {
			if inst := o.lookup(name); inst != nil && !seen[inst.index] {
				phase = append(phase, inst.index)
				seen[inst.index] = true
			}
		}
		phases = append(phases, phase)
	}
	// Anything outside the graph (removed on reload but still stopping) goes last.
	var rest []int
	for _, inst := range o.instances {
		if inst != nil && !seen[inst.index] {
			rest = append(rest, inst.index)
		}
	}
	phases = append(phases, rest)

	o.stopAll = &stopAllState{phases: phases, exit: exit}
	if reply != nil {
		o.stopAll.waiters = append(o.stopAll.waiters, reply)
	}
	logging.Info("Orchestrator", "Stopping all services")
}

// progressStopAll stops the current phase and moves on once every member
// is down.
func (o *Orchestrator) progressStopAll() {
	s := o.stopAll
	if s == nil {
		return
	}

	for s.phase < len(s.phases) {
		busy := false
		for _, idx := range s.phases[s.phase] {
			inst := o.instances[idx]
			if inst == nil {
				continue
			}
			switch inst.State() {
			case api.StateStarting, api.StateActive, api.StateRestarting:
				o.stopInstance(inst, stopAllReason(s.exit))
			}
			if inst := o.instances[idx]; inst != nil && inst.State() == api.StateStopping {
				busy = true
			}
		}
		if busy {
			return
		}
		s.phase++
	}

	o.stopAll = nil
	logging.Info("Orchestrator", "All services stopped")
	for _, w := range s.waiters {
		w <- nil
	}
	if s.exit {
		o.exit = true
	}
}

func stopAllReason(exit bool) string {
	if exit {
		return "shutdown"
	}
	return "stop of all services"
}
