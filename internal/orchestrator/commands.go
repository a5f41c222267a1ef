package orchestrator

import (
	"context"
	"sort"

	"warden/internal/api"
	"warden/internal/lifecycle"
)

// command runs a control request on the loop goroutine.
type command struct {
	name string
	run  func()
}

func (c command) EventName() string { return "command:" + c.name }

// call queues fn onto the loop and waits for its reply.
func (o *Orchestrator) call(ctx context.Context, name string, fn func(reply chan<- error)) error {
	select {
	case <-o.done:
		return api.ErrShuttingDown
	default:
	}

	reply := make(chan error, 1)
	o.queue.Push(command{name: name, run: func() { fn(reply) }})

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		select {
		case err := <-reply:
			return err
		default:
			return api.ErrShuttingDown
		}
	}
}

// Start requests that a service be started. It returns once the start was
// accepted; the outcome is visible through Status.
func (o *Orchestrator) Start(ctx context.Context, name string) error {
	return o.call(ctx, "start", func(reply chan<- error) {
		reply <- o.startService(name)
	})
}

func (o *Orchestrator) startService(name string) error {
	if err := o.acceptingStarts(); err != nil {
		return err
	}
	inst := o.lookup(name)
	if inst == nil {
		return api.NewServiceNotFoundError(name)
	}

	switch st := inst.State(); st {
	case api.StateActive, api.StateStarting:
		return &api.AlreadyRunningError{Service: name, State: st}
	case api.StateStopping:
		inst.restartAfterStop = true
	case api.StateRestarting:
		stopTimer(&inst.restartTimer)
		inst.Attempts = 0
		inst.backoff = nil
		o.launch(inst, lifecycle.EventRetry, "started by operator")
	default:
		inst.Attempts = 0
		inst.backoff = nil
		inst.pending = true
	}
	return nil
}

// Stop requests a graceful stop. Stopping a service that is not running
// is a no-op.
func (o *Orchestrator) Stop(ctx context.Context, name string) error {
	return o.call(ctx, "stop", func(reply chan<- error) {
		inst := o.lookup(name)
		if inst == nil {
			reply <- api.NewServiceNotFoundError(name)
			return
		}
		inst.restartAfterStop = false
		o.stopInstance(inst, "stopped by operator")
		reply <- nil
	})
}

// Restart stops a running service and starts it again. For a service that
// is not running it behaves like Start.
func (o *Orchestrator) Restart(ctx context.Context, name string) error {
	return o.call(ctx, "restart", func(reply chan<- error) {
		if err := o.acceptingStarts(); err != nil {
			reply <- err
			return
		}
		inst := o.lookup(name)
		if inst == nil {
			reply <- api.NewServiceNotFoundError(name)
			return
		}
		switch inst.State() {
		case api.StateActive, api.StateStarting:
			inst.restartAfterStop = true
			o.stopInstance(inst, "restart requested")
			reply <- nil
		case api.StateStopping:
			inst.restartAfterStop = true
			reply <- nil
		default:
			reply <- o.startService(name)
		}
	})
}

func (o *Orchestrator) acceptingStarts() error {
	if o.shuttingDown {
		return api.ErrShuttingDown
	}
	if o.stopAll != nil {
		return ErrStopInProgress
	}
	return nil
}

// Status returns the snapshot of one service.
func (o *Orchestrator) Status(ctx context.Context, name string) (api.StateSnapshot, error) {
	var snap api.StateSnapshot
	err := o.call(ctx, "status", func(reply chan<- error) {
		inst := o.lookup(name)
		if inst == nil {
			reply <- api.NewServiceNotFoundError(name)
			return
		}
		snap = inst.snapshot()
		reply <- nil
	})
	return snap, err
}

// StatusAll returns the snapshots of every service, sorted by name.
func (o *Orchestrator) StatusAll(ctx context.Context) ([]api.StateSnapshot, error) {
	var snaps []api.StateSnapshot
	err := o.call(ctx, "status-all", func(reply chan<- error) {
		snaps = o.snapshots()
		reply <- nil
	})
	return snaps, err
}

// List returns the known definitions, sorted by name.
func (o *Orchestrator) List(ctx context.Context) ([]api.ServiceInfo, error) {
	var infos []api.ServiceInfo
	err := o.call(ctx, "list", func(reply chan<- error) {
		for _, def := range o.definitions() {
			infos = append(infos, def.Info())
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
		reply <- nil
	})
	return infos, err
}

// StartAll loads the definitions if needed and starts every service level
// by level. It returns once every service reached Active or Failed, or
// with the graph error if the definitions are unusable.
func (o *Orchestrator) StartAll(ctx context.Context) error {
	return o.call(ctx, "start-all", func(reply chan<- error) {
		if err := o.acceptingStarts(); err != nil {
			reply <- err
			return
		}
		o.beginBoot(reply)
	})
}

// StopAll stops every service in reverse dependency order and returns when
// all are down. The loop keeps running.
func (o *Orchestrator) StopAll(ctx context.Context) error {
	return o.call(ctx, "stop-all", func(reply chan<- error) {
		o.beginStopAll(false, reply)
	})
}

// Shutdown stops every service in reverse dependency order, then ends the
// loop.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.call(ctx, "shutdown", func(reply chan<- error) {
		o.beginStopAll(true, reply)
	})
}

// Reload re-reads the definitions and applies the difference.
func (o *Orchestrator) Reload(ctx context.Context) error {
	return o.call(ctx, "reload", func(reply chan<- error) {
		reply <- o.reload()
	})
}

// DumpStatus logs every snapshot and writes the status file.
func (o *Orchestrator) DumpStatus(ctx context.Context) error {
	return o.call(ctx, "dump-status", func(reply chan<- error) {
		reply <- o.dumpStatus()
	})
}
