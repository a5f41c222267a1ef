package control

import (
	"context"

	"warden/internal/api"
)

// Service is the caller interface of the core that the control API serves.
type Service interface {
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	Status(ctx context.Context, name string) (api.StateSnapshot, error)
	StatusAll(ctx context.Context) ([]api.StateSnapshot, error)
	List(ctx context.Context) ([]api.ServiceInfo, error)
	Reload(ctx context.Context) error
	DumpStatus(ctx context.Context) error
}

// StatsFunc returns live statistics of a supervised process.
type StatsFunc func(pid int) (*api.ProcessStats, error)

// Error kinds carried in ErrorResponse.
const (
	KindNotFound       = "not_found"
	KindAlreadyRunning = "already_running"
	KindUnavailable    = "unavailable"
	KindInvalid        = "invalid"
	KindInternal       = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string           `json:"error"`
	Kind    string           `json:"kind"`
	Service string           `json:"service,omitempty"`
	State   api.ServiceState `json:"state,omitempty"`
}

// ActionResponse acknowledges a start, stop, restart, reload or dump.
type ActionResponse struct {
	Action  string `json:"action"`
	Service string `json:"service,omitempty"`
	OK      bool   `json:"ok"`
}
