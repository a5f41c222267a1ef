package api

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// ServiceState is the lifecycle state of a service instance.
type ServiceState string

const (
	StateInactive   ServiceState = "inactive"
	StateStarting   ServiceState = "starting"
	StateActive     ServiceState = "active"
	StateStopping   ServiceState = "stopping"
	StateRestarting ServiceState = "restarting"
	StateFailed     ServiceState = "failed"
)

// AllStates lists every state in lifecycle order.
var AllStates = []ServiceState{
	StateInactive, StateStarting, StateActive, StateStopping, StateRestarting, StateFailed,
}

// IsTerminal reports whether the state ends a start attempt: the service
// either came up or gave up.
func (s ServiceState) IsTerminal() bool {
	return s == StateActive || s == StateFailed
}

// ExitKind classifies how a process ended.
type ExitKind string

const (
	ExitNone     ExitKind = ""
	ExitSuccess  ExitKind = "success"
	ExitFailure  ExitKind = "failure"
	ExitAbnormal ExitKind = "abnormal"
)

// ExitStatus is the classified exit of a supervised process.
type ExitStatus struct {
	Kind     ExitKind `json:"kind,omitempty"`
	Code     int      `json:"code"`
	Signal   string   `json:"signal,omitempty"`
	TimedOut bool     `json:"timedOut,omitempty"`
}

func (e ExitStatus) String() string {
	switch {
	case e.Kind == ExitNone:
		return "-"
	case e.TimedOut:
		return fmt.Sprintf("%s (timeout)", e.Kind)
	case e.Signal != "":
		return fmt.Sprintf("%s (signal %s)", e.Kind, e.Signal)
	default:
		return fmt.Sprintf("%s (code %d)", e.Kind, e.Code)
	}
}

// StateSnapshot is the status() view of a service instance.
type StateSnapshot struct {
	Name         string       `json:"name"`
	ID           string       `json:"id"`
	Type         ServiceType  `json:"type"`
	State        ServiceState `json:"state"`
	PID          int          `json:"pid,omitempty"`
	RestartCount int          `json:"restartCount"`
	LastExit     ExitStatus   `json:"lastExit"`
	StartedAt    time.Time    `json:"startedAt,omitempty"`
	Since        time.Time    `json:"since"`
	Reason       string       `json:"reason,omitempty"`
}

// EncodeSnapshots serializes snapshots as JSON.
func EncodeSnapshots(snaps []StateSnapshot) ([]byte, error) {
	return json.Marshal(snaps)
}

// DecodeSnapshots parses the output of EncodeSnapshots.
func DecodeSnapshots(data []byte) ([]StateSnapshot, error) {
	var snaps []StateSnapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("failed to decode state snapshots: %w", err)
	}
	return snaps, nil
}

// ProcessStats is a live view of a supervised OS process.
type ProcessStats struct {
	PID        int       `json:"pid"`
	Name       string    `json:"name"`
	Cmdline    string    `json:"cmdline,omitempty"`
	Status     string    `json:"status,omitempty"`
	CPUPercent float64   `json:"cpuPercent"`
	RSS        uint64    `json:"rss"`
	NumThreads int32     `json:"numThreads"`
	CreatedAt  time.Time `json:"createdAt"`
}
