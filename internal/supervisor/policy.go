package supervisor

import "warden/internal/api"

// RestartPermitted is the restart decision table: whether mode restarts a
// process that ended with kind.
func RestartPermitted(mode api.RestartMode, kind api.ExitKind) bool {
	switch mode {
	case api.RestartAlways:
		return kind != api.ExitNone
	case api.RestartOnSuccess:
		return kind == api.ExitSuccess
	case api.RestartOnFailure:
		return kind == api.ExitFailure || kind == api.ExitAbnormal
	case api.RestartOnAbnormal:
		return kind == api.ExitAbnormal
	default:
		return false
	}
}

// Decision is what to do with an instance after its process ended.
type Decision int

const (
	// NoRestart settles the instance according to the exit.
	NoRestart Decision = iota
	// Restart schedules another attempt after the backoff delay.
	Restart
	// Exhausted means the policy wanted a restart but no attempts remain.
	Exhausted
)

func (d Decision) String() string {
	switch d {
	case NoRestart:
		return "no-restart"
	case Restart:
		return "restart"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Decide applies the restart policy. attempts counts consecutive unexpected
// exits including this one. An operator-requested stop always wins.
func Decide(policy api.RestartPolicy, kind api.ExitKind, attempts int, stopRequested bool) Decision {
	if stopRequested || !RestartPermitted(policy.Mode, kind) {
		return NoRestart
	}
	if policy.MaxAttempts > 0 && attempts >= policy.MaxAttempts {
		return Exhausted
	}
	return Restart
}
