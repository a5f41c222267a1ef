package api

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotFoundError represents a resource not found error with contextual information.
// Control commands return it for names the core does not know about.
type NotFoundError struct {
	// ResourceType categorizes the type of resource that was not found
	// (e.g., "service", "process")
	ResourceType string

	// ResourceName is the specific identifier of the resource that was not found
	ResourceName string

	// Message provides a custom error message if the default format is insufficient
	Message string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound checks if an error is a NotFoundError using error unwrapping.
//
// Example:
//
//	snap, err := orch.Status(ctx, "db")
//	if api.IsNotFound(err) {
//	    return fmt.Errorf("no such service")
//	}
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a new NotFoundError with the specified resource type and name.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// NewServiceNotFoundError creates a service not found error.
func NewServiceNotFoundError(name string) *NotFoundError {
	return NewNotFoundError("service", name)
}

// AlreadyRunningError is returned by start() for an instance that is already
// starting or active.
type AlreadyRunningError struct {
	Service string
	State   ServiceState
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("service %s is already %s", e.Service, e.State)
}

// IsAlreadyRunning reports whether err is or wraps an AlreadyRunningError.
func IsAlreadyRunning(err error) bool {
	var target *AlreadyRunningError
	return errors.As(err, &target)
}

// ConfigError describes a malformed service definition. The definition is
// excluded from the registry; the error is never fatal to the system.
type ConfigError struct {
	Path    string
	Service string
	Err     error
}

func (e *ConfigError) Error() string {
	subject := e.Service
	if subject == "" {
		subject = e.Path
	}
	return fmt.Sprintf("invalid definition %s: %v", subject, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// DependencyKind names the relation through which a dependency was declared.
type DependencyKind string

const (
	DependencyRequires DependencyKind = "requires"
	DependencyAfter    DependencyKind = "after"
	DependencyWants    DependencyKind = "wants"
)

// UnknownDependencyError is returned when requires/after references a name
// that is neither defined nor a target.
type UnknownDependencyError struct {
	Service    string
	Dependency string
	Kind       DependencyKind
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("service %s %s unknown service %s", e.Service, e.Kind, e.Dependency)
}

// IsUnknownDependency reports whether err is or wraps an UnknownDependencyError.
func IsUnknownDependency(err error) bool {
	var target *UnknownDependencyError
	return errors.As(err, &target)
}

// CycleError reports a dependency cycle. Path starts and ends with the same
// service, e.g. [a b c a].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// Contains reports whether name is on the cycle.
func (e *CycleError) Contains(name string) bool {
	for _, n := range e.Path {
		if n == name {
			return true
		}
	}
	return false
}

// IsCycle reports whether err is or wraps a CycleError.
func IsCycle(err error) bool {
	var target *CycleError
	return errors.As(err, &target)
}

// SpawnError is a failure to create the OS process of a service. It counts
// as an immediate failed start.
type SpawnError struct {
	Service string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Service, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// IsSpawnError reports whether err is or wraps a SpawnError.
func IsSpawnError(err error) bool {
	var target *SpawnError
	return errors.As(err, &target)
}

// TimeoutPhase names the operation whose deadline expired.
type TimeoutPhase string

const (
	TimeoutStart TimeoutPhase = "start"
	TimeoutStop  TimeoutPhase = "stop"
)

// TimeoutError is a start or stop timeout.
type TimeoutError struct {
	Service string
	Phase   TimeoutPhase
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("service %s did not %s within %s", e.Service, e.Phase, e.After)
}

// IsTimeout reports whether err is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// DependencyFailedError marks a service cancelled because a required
// dependency failed before it ever became active.
type DependencyFailedError struct {
	Service    string
	Dependency string
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("service %s cancelled: required dependency %s failed", e.Service, e.Dependency)
}

// IsDependencyFailed reports whether err is or wraps a DependencyFailedError.
func IsDependencyFailed(err error) bool {
	var target *DependencyFailedError
	return errors.As(err, &target)
}

// ErrShuttingDown is returned for control commands received after shutdown began.
var ErrShuttingDown = errors.New("supervisor is shutting down")
