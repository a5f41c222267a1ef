package orchestrator

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"warden/internal/api"
	"warden/internal/events"
	"warden/internal/lifecycle"
	"warden/internal/supervisor"
	"warden/pkg/logging"
)

// onProcessEnded applies the restart policy to an instance whose process
// ended (or never became ready) while Starting or Active.
func (o *Orchestrator) onProcessEnded(inst *Instance, status api.ExitStatus, reason string) {
	policy := inst.Def.Restart
	suppressed := inst.stopRequested || o.shuttingDown
	if !suppressed && supervisor.RestartPermitted(policy.Mode, status.Kind) {
		inst.Attempts++
	}

	switch supervisor.Decide(policy, status.Kind, inst.Attempts, suppressed) {
	case supervisor.Restart:
		delay := inst.nextDelay()
		o.fire(inst, lifecycle.EventRestart, reason)
		inst.restartTimer = o.after(delay, events.RestartDue{Owner: inst.owner()})
		logging.Info("Orchestrator", "Restarting %s in %s (attempt %d)", inst.Def.Name, delay, inst.Attempts)

	case supervisor.Exhausted:
		logging.Warn("Orchestrator", "Service %s exhausted %d restart attempts", inst.Def.Name, policy.MaxAttempts)
		o.fire(inst, lifecycle.EventFail, fmt.Sprintf("%s; restart limit %d reached", reason, policy.MaxAttempts))

	default:
		if inst.State() == api.StateActive && status.Kind == api.ExitSuccess {
			o.finish(inst, reason)
			return
		}
		o.fire(inst, lifecycle.EventFail, reason)
	}
}

// nextDelay returns the wait before the next restart attempt.
func (i *Instance) nextDelay() time.Duration {
	if i.backoff == nil {
		i.backoff = newBackOff(i.Def.Restart)
	}
	d := i.backoff.NextBackOff()
	if d == backoff.Stop {
		d = i.Def.Restart.MaxDelay
	}
	if d < 0 {
		d = 0
	}
	return d
}

// newBackOff builds the delay sequence for a restart policy: constant
// delays, or delays doubling from Delay up to MaxDelay.
func newBackOff(p api.RestartPolicy) backoff.BackOff {
	if p.Backoff != api.BackoffExponential || p.Delay <= 0 {
		return backoff.NewConstantBackOff(p.Delay)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Delay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval < p.Delay {
		b.MaxInterval = p.Delay
	}
	b.Reset()
	return b
}
