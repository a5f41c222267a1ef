package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"vawter.tech/stopper"

	"warden/internal/api"
	"warden/internal/events"
	"warden/internal/lifecycle"
	"warden/internal/supervisor"
	"warden/pkg/logging"
)

// launch moves inst to Starting and hands the spawn to a worker. The
// outcome comes back as ProcessStarted or SpawnFailed.
func (o *Orchestrator) launch(inst *Instance, ev lifecycle.Event, reason string) {
	inst.pending = false
	inst.completed = false
	inst.stopRequested = false
	if ev == lifecycle.EventStart {
		inst.reachedActive = false
	}
	inst.awaitingPIDFile = false
	inst.generation++
	if !o.fire(inst, ev, reason) {
		return
	}
	o.pullWants(inst)

	if inst.Def.IsVirtual() {
		o.becomeActive(inst, "target reached")
		return
	}

	owner := inst.owner()
	def := inst.Def
	inst.spawning = true
	if def.StartTimeout > 0 {
		inst.startTimer = o.after(def.StartTimeout, events.StartTimeout{Owner: owner})
	}
	o.workers.Go(func(*stopper.Context) error {
		if _, err := o.sup.Spawn(def, owner); err != nil {
			o.queue.Push(events.SpawnFailed{Owner: owner, Err: err})
		}
		return nil
	})
}

func (o *Orchestrator) becomeActive(inst *Instance, reason string) {
	stopTimer(&inst.startTimer)
	o.sup.CancelReadiness(inst.owner())
	inst.awaitingPIDFile = false
	inst.reachedActive = true
	o.fire(inst, lifecycle.EventReady, reason)
}

func (o *Orchestrator) onProcessStarted(e events.ProcessStarted) {
	inst := o.owned(e.Owner)
	if inst == nil || !inst.spawning {
		logging.Debug("Orchestrator", "Killing stale process %d of %s", e.PID, e.Owner)
		if err := o.sup.Kill(e.PID); err != nil {
			logging.Debug("Orchestrator", "Kill of stale process %d: %v", e.PID, err)
		}
		return
	}

	inst.spawning = false
	inst.PID = e.PID
	inst.StartedAt = time.Now()
	o.byPID[e.PID] = inst.index

	switch inst.State() {
	case api.StateStopping:
		o.signalStop(inst)
	case api.StateStarting:
		if supervisor.Readiness(inst.Def.Type, inst.Def.RemainAfterExit, supervisor.EventSpawned) == supervisor.Ready {
			o.becomeActive(inst, fmt.Sprintf("process %d started", e.PID))
		}
	}
}

func (o *Orchestrator) onSpawnFailed(e events.SpawnFailed) {
	inst := o.owned(e.Owner)
	if inst == nil || !inst.spawning {
		return
	}
	inst.spawning = false
	logging.Error("Orchestrator", e.Err, "Failed to spawn %s", inst.Def.Name)

	switch inst.State() {
	case api.StateStopping:
		o.settleStopped(inst)
	case api.StateStarting:
		status := api.ExitStatus{Kind: api.ExitFailure, Code: -1}
		inst.LastExit = status
		o.onProcessEnded(inst, status, e.Err.Error())
	}
}

func (o *Orchestrator) onProcessExited(e events.ProcessExited) {
	idx, ok := o.byPID[e.PID]
	if !ok {
		logging.Debug("Orchestrator", "Ignoring exit of unowned pid %d", e.PID)
		return
	}
	delete(o.byPID, e.PID)
	inst := o.instances[idx]
	if inst == nil || inst.PID != e.PID {
		return
	}

	inst.PID = 0
	inst.LastExit = e.Status
	o.sup.CancelReadiness(inst.owner())
	logging.Info("Orchestrator", "Process %d of %s exited: %s", e.PID, inst.Def.Name, e.Status)

	switch inst.State() {
	case api.StateStopping:
		o.settleStopped(inst)

	case api.StateStarting:
		verdict := supervisor.Readiness(inst.Def.Type, inst.Def.RemainAfterExit, supervisor.ExitEvent(e.Status.Kind))
		switch verdict {
		case supervisor.AwaitPIDFile:
			o.awaitPIDFile(inst)
		case supervisor.Ready:
			o.becomeActive(inst, "completed successfully")
			if inst.Def.Type == api.TypeOneshot && !inst.Def.RemainAfterExit {
				o.finish(inst, "completed successfully")
			}
		default:
			o.onProcessEnded(inst, e.Status, fmt.Sprintf("exited before ready: %s", e.Status))
		}

	case api.StateActive:
		if inst.Def.Type == api.TypeOneshot && inst.Def.RemainAfterExit && e.Status.Kind == api.ExitSuccess {
			logging.Debug("Orchestrator", "Oneshot %s finished and remains active", inst.Def.Name)
			return
		}
		o.onProcessEnded(inst, e.Status, fmt.Sprintf("exited: %s", e.Status))
	}
}

func (o *Orchestrator) awaitPIDFile(inst *Instance) {
	fail := func(err error) {
		status := api.ExitStatus{Kind: api.ExitFailure, Code: -1}
		inst.LastExit = status
		o.onProcessEnded(inst, status, err.Error())
	}
	if inst.Def.PIDFile == "" {
		fail(errors.New("forking service has no pid file"))
		return
	}
	inst.awaitingPIDFile = true
	if err := o.sup.WatchPIDFile(inst.owner(), inst.Def.PIDFile); err != nil {
		inst.awaitingPIDFile = false
		fail(err)
	}
}

func (o *Orchestrator) onPIDFileReady(e events.PIDFileReady) {
	inst := o.owned(e.Owner)
	if inst == nil || !inst.awaitingPIDFile || inst.State() != api.StateStarting {
		return
	}
	inst.awaitingPIDFile = false

	if err := o.sup.Adopt(e.PID, e.Owner, inst.Def.Name); err != nil {
		status := api.ExitStatus{Kind: api.ExitFailure, Code: -1}
		inst.LastExit = status
		o.onProcessEnded(inst, status, fmt.Sprintf("daemon not running: %v", err))
		return
	}
	inst.PID = e.PID
	inst.StartedAt = time.Now()
	o.byPID[e.PID] = inst.index
	o.becomeActive(inst, fmt.Sprintf("daemon pid %d", e.PID))
}

func (o *Orchestrator) onPIDFileFailed(e events.PIDFileFailed) {
	inst := o.owned(e.Owner)
	if inst == nil || !inst.awaitingPIDFile || inst.State() != api.StateStarting {
		return
	}
	inst.awaitingPIDFile = false
	status := api.ExitStatus{Kind: api.ExitFailure, Code: -1}
	inst.LastExit = status
	o.onProcessEnded(inst, status, fmt.Sprintf("pid file: %v", e.Err))
}

func (o *Orchestrator) onReady(e events.Ready) {
	inst := o.owned(e.Owner)
	if inst == nil || inst.State() != api.StateStarting {
		return
	}
	o.becomeActive(inst, "readiness token received")
}

func (o *Orchestrator) onStartTimeout(e events.StartTimeout) {
	inst := o.owned(e.Owner)
	if inst == nil || inst.State() != api.StateStarting {
		return
	}
	inst.startTimer = nil

	terr := &api.TimeoutError{Service: inst.Def.Name, Phase: api.TimeoutStart, After: inst.Def.StartTimeout}
	logging.Warn("Orchestrator", "%v", terr)

	o.abortStart(inst)

	status := api.ExitStatus{Kind: api.ExitAbnormal, Code: -1, TimedOut: true}
	inst.LastExit = status
	o.onProcessEnded(inst, status, terr.Error())
}

// abortStart drops a start in progress. The killed process is no longer in
// the pid table, so its exit is not reported as a service exit.
func (o *Orchestrator) abortStart(inst *Instance) {
	stopTimer(&inst.startTimer)
	o.sup.CancelReadiness(inst.owner())
	inst.awaitingPIDFile = false
	inst.spawning = false
	if inst.PID > 0 {
		delete(o.byPID, inst.PID)
		if err := o.sup.Kill(inst.PID); err != nil {
			logging.Debug("Orchestrator", "Kill of %s (pid %d) during aborted start: %v", inst.Def.Name, inst.PID, err)
		}
		inst.PID = 0
	}
}

func (o *Orchestrator) onStopTimeout(e events.StopTimeout) {
	inst := o.owned(e.Owner)
	if inst == nil || inst.State() != api.StateStopping {
		return
	}
	inst.stopTimer = nil

	if inst.PID == 0 {
		if !inst.spawning {
			o.settleStopped(inst)
		}
		return
	}
	terr := &api.TimeoutError{Service: inst.Def.Name, Phase: api.TimeoutStop, After: stopTimeout(inst.Def)}
	logging.Warn("Orchestrator", "Forced termination of %s (pid %d): %v", inst.Def.Name, inst.PID, terr)
	inst.Reason = "forced termination"
	if err := o.sup.Kill(inst.PID); err != nil {
		logging.Error("Orchestrator", err, "Failed to kill %s (pid %d)", inst.Def.Name, inst.PID)
	}
}

func (o *Orchestrator) onRestartDue(e events.RestartDue) {
	inst := o.owned(e.Owner)
	if inst == nil || inst.State() != api.StateRestarting {
		return
	}
	inst.restartTimer = nil

	if o.shuttingDown {
		o.fire(inst, lifecycle.EventCancel, "shutting down")
		return
	}
	if dep := o.failedRequirement(inst); dep != "" {
		o.fire(inst, lifecycle.EventDependencyFailed, (&api.DependencyFailedError{Service: inst.Def.Name, Dependency: dep}).Error())
		return
	}
	o.launch(inst, lifecycle.EventRetry, fmt.Sprintf("restart attempt %d", inst.Attempts+1))
}

// stopInstance begins a requested stop. Inactive and Failed instances are
// left alone.
func (o *Orchestrator) stopInstance(inst *Instance, reason string) {
	inst.pending = false

	switch inst.State() {
	case api.StateInactive, api.StateFailed:
		return
	case api.StateStopping:
		inst.stopRequested = true
		return
	case api.StateRestarting:
		stopTimer(&inst.restartTimer)
		o.fire(inst, lifecycle.EventCancel, reason)
		o.afterStopped(inst)
		return
	}

	inst.stopRequested = true
	stopTimer(&inst.startTimer)
	stopTimer(&inst.restartTimer)
	o.sup.CancelReadiness(inst.owner())
	inst.awaitingPIDFile = false
	o.fire(inst, lifecycle.EventStop, reason)

	if inst.PID == 0 && !inst.spawning {
		o.settleStopped(inst)
		return
	}
	inst.stopTimer = o.after(stopTimeout(inst.Def), events.StopTimeout{Owner: inst.owner()})
	if inst.PID > 0 {
		o.signalStop(inst)
	}
}

func (o *Orchestrator) signalStop(inst *Instance) {
	if err := o.sup.Terminate(inst.PID); err != nil {
		logging.Debug("Orchestrator", "Terminate of %s (pid %d): %v", inst.Def.Name, inst.PID, err)
	}
}

func (o *Orchestrator) settleStopped(inst *Instance) {
	stopTimer(&inst.stopTimer)
	reason := "stopped"
	if inst.Reason == "forced termination" {
		reason = "stopped after forced termination"
	}
	o.fire(inst, lifecycle.EventStopped, reason)
	o.afterStopped(inst)
}

// afterStopped applies whatever was queued behind a stop: removal, a new
// definition or a restart.
func (o *Orchestrator) afterStopped(inst *Instance) {
	inst.stopRequested = false
	if inst.removeAfterStop {
		o.removeInstance(inst)
		return
	}
	if inst.nextDef != nil {
		inst.Def = *inst.nextDef
		inst.nextDef = nil
		inst.backoff = nil
	}
	if inst.restartAfterStop {
		inst.restartAfterStop = false
		if !o.shuttingDown && o.stopAll == nil {
			inst.Attempts = 0
			inst.backoff = nil
			inst.pending = true
		}
	}
}

func (o *Orchestrator) finish(inst *Instance, reason string) {
	o.fire(inst, lifecycle.EventFinish, reason)
	inst.completed = true
}

func stopTimeout(def api.ServiceDefinition) time.Duration {
	if def.StopTimeout > 0 {
		return def.StopTimeout
	}
	return defaultStopTimeout
}
