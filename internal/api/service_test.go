package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snaps := []StateSnapshot{
		{
			Name:         "db",
			ID:           "5b0c2f9e-4c61-4c4c-9f43-0d2b2f8f9c11",
			Type:         TypeSimple,
			State:        StateActive,
			PID:          4242,
			RestartCount: 2,
			LastExit:     ExitStatus{Kind: ExitFailure, Code: 3},
			StartedAt:    started,
			Since:        started.Add(time.Second),
		},
		{
			Name:         "network.target",
			Type:         TypeTarget,
			State:        StateFailed,
			RestartCount: 0,
			LastExit:     ExitStatus{Kind: ExitAbnormal, Signal: "killed", TimedOut: true},
			Reason:       "start timeout",
		},
	}

	data, err := EncodeSnapshots(snaps)
	require.NoError(t, err)

	decoded, err := DecodeSnapshots(data)
	require.NoError(t, err)
	require.Len(t, decoded, len(snaps))

	for i := range snaps {
		assert.Equal(t, snaps[i].State, decoded[i].State)
		assert.Equal(t, snaps[i].PID, decoded[i].PID)
		assert.Equal(t, snaps[i].RestartCount, decoded[i].RestartCount)
		assert.Equal(t, snaps[i].LastExit, decoded[i].LastExit)
		assert.True(t, snaps[i].StartedAt.Equal(decoded[i].StartedAt))
	}
}

func TestDecodeSnapshotsRejectsGarbage(t *testing.T) {
	_, err := DecodeSnapshots([]byte("{not json"))
	assert.Error(t, err)
}

func TestExitStatusString(t *testing.T) {
	assert.Equal(t, "-", ExitStatus{}.String())
	assert.Equal(t, "success (code 0)", ExitStatus{Kind: ExitSuccess}.String())
	assert.Equal(t, "abnormal (signal terminated)", ExitStatus{Kind: ExitAbnormal, Signal: "terminated"}.String())
	assert.Equal(t, "abnormal (timeout)", ExitStatus{Kind: ExitAbnormal, TimedOut: true}.String())
}

func TestErrorHelpersSeeThroughWrapping(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not found", NewServiceNotFoundError("db"), IsNotFound},
		{"already running", &AlreadyRunningError{Service: "db", State: StateActive}, IsAlreadyRunning},
		{"config", &ConfigError{Path: "/etc/x.yaml", Err: fmt.Errorf("bad")}, IsConfigError},
		{"unknown dependency", &UnknownDependencyError{Service: "app", Dependency: "db", Kind: DependencyRequires}, IsUnknownDependency},
		{"cycle", &CycleError{Path: []string{"a", "b", "a"}}, IsCycle},
		{"spawn", &SpawnError{Service: "db", Err: fmt.Errorf("enoent")}, IsSpawnError},
		{"timeout", &TimeoutError{Service: "db", Phase: TimeoutStart, After: time.Second}, IsTimeout},
		{"dependency failed", &DependencyFailedError{Service: "app", Dependency: "db"}, IsDependencyFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("control command: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.False(t, tt.check(fmt.Errorf("plain")))
		})
	}
}

func TestCycleErrorContains(t *testing.T) {
	err := &CycleError{Path: []string{"a", "b", "c", "a"}}
	assert.True(t, err.Contains("b"))
	assert.False(t, err.Contains("d"))
	assert.Equal(t, "dependency cycle detected: a -> b -> c -> a", err.Error())
}

func TestServiceTypeAndRestartModeValidity(t *testing.T) {
	assert.True(t, TypeNotify.Valid())
	assert.False(t, ServiceType("daemon").Valid())
	assert.True(t, RestartOnAbnormal.Valid())
	assert.False(t, RestartMode("sometimes").Valid())
	assert.True(t, IsTargetName("network.target"))
	assert.False(t, IsTargetName("network"))
	assert.True(t, TargetDefinition("x.target").IsVirtual())
}
