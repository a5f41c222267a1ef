package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"warden/internal/api"
)

func TestRestartPermittedTable(t *testing.T) {
	tests := []struct {
		mode                         api.RestartMode
		success, failure, abnormal bool
	}{
		{api.RestartNever, false, false, false},
		{api.RestartOnSuccess, true, false, false},
		{api.RestartOnFailure, false, true, true},
		{api.RestartOnAbnormal, false, false, true},
		{api.RestartAlways, true, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			assert.Equal(t, tt.success, RestartPermitted(tt.mode, api.ExitSuccess), "success")
			assert.Equal(t, tt.failure, RestartPermitted(tt.mode, api.ExitFailure), "failure")
			assert.Equal(t, tt.abnormal, RestartPermitted(tt.mode, api.ExitAbnormal), "abnormal")
		})
	}
}

func TestDecide(t *testing.T) {
	always3 := api.RestartPolicy{Mode: api.RestartAlways, MaxAttempts: 3}
	unlimited := api.RestartPolicy{Mode: api.RestartOnFailure}

	tests := []struct {
		name          string
		policy        api.RestartPolicy
		kind          api.ExitKind
		attempts      int
		stopRequested bool
		want          Decision
	}{
		{"first failure restarts", always3, api.ExitFailure, 1, false, Restart},
		{"second failure restarts", always3, api.ExitFailure, 2, false, Restart},
		{"third failure exhausts", always3, api.ExitFailure, 3, false, Exhausted},
		{"operator stop wins", always3, api.ExitAbnormal, 1, true, NoRestart},
		{"policy refuses", unlimited, api.ExitSuccess, 1, false, NoRestart},
		{"unlimited keeps going", unlimited, api.ExitAbnormal, 1000, false, Restart},
		{"never", api.RestartPolicy{Mode: api.RestartNever}, api.ExitFailure, 1, false, NoRestart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.policy, tt.kind, tt.attempts, tt.stopRequested))
		})
	}
}

func TestReadinessMapping(t *testing.T) {
	tests := []struct {
		name   string
		typ    api.ServiceType
		remain bool
		ev     ProcessEvent
		want   Verdict
	}{
		{"simple ready on spawn", api.TypeSimple, false, EventSpawned, Ready},
		{"simple exit before ready", api.TypeSimple, false, EventExitedSuccess, NotReady},
		{"idle behaves like simple", api.TypeIdle, false, EventSpawned, Ready},
		{"forking waits on spawn", api.TypeForking, false, EventSpawned, Pending},
		{"forking parent exits cleanly", api.TypeForking, false, EventExitedSuccess, AwaitPIDFile},
		{"forking parent fails", api.TypeForking, false, EventExitedFailure, NotReady},
		{"forking pid file", api.TypeForking, false, EventPIDFile, Ready},
		{"oneshot waits for exit", api.TypeOneshot, false, EventSpawned, Pending},
		{"oneshot exit zero", api.TypeOneshot, false, EventExitedSuccess, Ready},
		{"oneshot exit nonzero", api.TypeOneshot, false, EventExitedFailure, NotReady},
		{"oneshot remain after exit", api.TypeOneshot, true, EventSpawned, Ready},
		{"notify waits on spawn", api.TypeNotify, false, EventSpawned, Pending},
		{"notify token", api.TypeNotify, false, EventNotified, Ready},
		{"notify killed", api.TypeNotify, false, EventExitedAbnormal, NotReady},
		{"simple ignores tokens", api.TypeSimple, false, EventNotified, Pending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Readiness(tt.typ, tt.remain, tt.ev))
		})
	}
}

func TestExitEvent(t *testing.T) {
	assert.Equal(t, EventExitedSuccess, ExitEvent(api.ExitSuccess))
	assert.Equal(t, EventExitedFailure, ExitEvent(api.ExitFailure))
	assert.Equal(t, EventExitedAbnormal, ExitEvent(api.ExitAbnormal))
}
