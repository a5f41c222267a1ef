package api

import (
	"strings"
	"time"
)

// ServiceType is the closed set of service variants. It decides how
// readiness is detected and whether a process is spawned at all.
type ServiceType string

const (
	TypeSimple  ServiceType = "simple"
	TypeForking ServiceType = "forking"
	TypeOneshot ServiceType = "oneshot"
	TypeNotify  ServiceType = "notify"
	TypeIdle    ServiceType = "idle"
	// TypeTarget is a virtual node without a process. It becomes Active as
	// soon as it is scheduled.
	TypeTarget ServiceType = "target"
)

// Valid reports whether t is one of the known service types.
func (t ServiceType) Valid() bool {
	switch t {
	case TypeSimple, TypeForking, TypeOneshot, TypeNotify, TypeIdle, TypeTarget:
		return true
	}
	return false
}

// TargetSuffix marks names that resolve to implicit virtual targets when
// no definition with that name exists.
const TargetSuffix = ".target"

// IsTargetName reports whether name follows the virtual target convention.
func IsTargetName(name string) bool {
	return strings.HasSuffix(name, TargetSuffix)
}

// RestartMode selects which exit classifications trigger an automatic restart.
type RestartMode string

const (
	RestartNever      RestartMode = "never"
	RestartOnSuccess  RestartMode = "on-success"
	RestartOnFailure  RestartMode = "on-failure"
	RestartOnAbnormal RestartMode = "on-abnormal"
	RestartAlways     RestartMode = "always"
)

// Valid reports whether m is one of the known restart modes.
func (m RestartMode) Valid() bool {
	switch m {
	case RestartNever, RestartOnSuccess, RestartOnFailure, RestartOnAbnormal, RestartAlways:
		return true
	}
	return false
}

// BackoffKind selects how the delay between restart attempts evolves.
type BackoffKind string

const (
	BackoffConstant    BackoffKind = "constant"
	BackoffExponential BackoffKind = "exponential"
)

// RestartPolicy controls automatic restarts of a service.
type RestartPolicy struct {
	Mode RestartMode `yaml:"policy" json:"policy"`
	// Delay is waited before every restart attempt.
	Delay time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`
	// MaxAttempts bounds consecutive unexpected exits. Zero means unlimited.
	MaxAttempts int         `yaml:"maxAttempts,omitempty" json:"maxAttempts,omitempty"`
	Backoff     BackoffKind `yaml:"backoff,omitempty" json:"backoff,omitempty"`
	// MaxDelay caps exponential backoff.
	MaxDelay time.Duration `yaml:"maxDelay,omitempty" json:"maxDelay,omitempty"`
}

// ResourceLimits are carried with the definition for future enforcement.
// The supervisor does not apply them yet.
type ResourceLimits struct {
	NoFile    uint64 `yaml:"noFile,omitempty" json:"noFile,omitempty"`
	NProc     uint64 `yaml:"nproc,omitempty" json:"nproc,omitempty"`
	MemoryMax uint64 `yaml:"memoryMax,omitempty" json:"memoryMax,omitempty"`
	CPUWeight uint64 `yaml:"cpuWeight,omitempty" json:"cpuWeight,omitempty"`
}

// ServiceDefinition is the immutable description of a service, produced by
// the registry and only read by the core.
type ServiceDefinition struct {
	Name             string            `yaml:"name" json:"name"`
	Description      string            `yaml:"description,omitempty" json:"description,omitempty"`
	Type             ServiceType       `yaml:"type" json:"type"`
	Exec             string            `yaml:"exec,omitempty" json:"exec,omitempty"`
	WorkingDirectory string            `yaml:"workingDirectory,omitempty" json:"workingDirectory,omitempty"`
	User             string            `yaml:"user,omitempty" json:"user,omitempty"`
	Group            string            `yaml:"group,omitempty" json:"group,omitempty"`
	Environment      map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`
	Restart          RestartPolicy     `yaml:"restart" json:"restart"`
	StartTimeout     time.Duration     `yaml:"startTimeout,omitempty" json:"startTimeout,omitempty"`
	StopTimeout      time.Duration     `yaml:"stopTimeout,omitempty" json:"stopTimeout,omitempty"`
	After            []string          `yaml:"after,omitempty" json:"after,omitempty"`
	Requires         []string          `yaml:"requires,omitempty" json:"requires,omitempty"`
	Wants            []string          `yaml:"wants,omitempty" json:"wants,omitempty"`
	Limits           ResourceLimits    `yaml:"limits,omitempty" json:"limits,omitempty"`
	PIDFile          string            `yaml:"pidFile,omitempty" json:"pidFile,omitempty"`
	NotifySocket     string            `yaml:"notifySocket,omitempty" json:"notifySocket,omitempty"`
	RemainAfterExit  bool              `yaml:"remainAfterExit,omitempty" json:"remainAfterExit,omitempty"`
	// Output is "inherit" (default, supervisor log sink), "null" or a file path.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// IsVirtual reports whether the definition describes a target without a process.
func (d ServiceDefinition) IsVirtual() bool {
	return d.Type == TypeTarget
}

// TargetDefinition builds the definition of an implicit virtual target.
func TargetDefinition(name string) ServiceDefinition {
	return ServiceDefinition{
		Name:        name,
		Description: "implicit target",
		Type:        TypeTarget,
		Restart:     RestartPolicy{Mode: RestartNever},
	}
}

// ServiceInfo is the list() view of a definition.
type ServiceInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        ServiceType `json:"type"`
	Requires    []string    `json:"requires,omitempty"`
	After       []string    `json:"after,omitempty"`
	Wants       []string    `json:"wants,omitempty"`
}

// Info returns the list() view of d.
func (d ServiceDefinition) Info() ServiceInfo {
	return ServiceInfo{
		Name:        d.Name,
		Description: d.Description,
		Type:        d.Type,
		Requires:    d.Requires,
		After:       d.After,
		Wants:       d.Wants,
	}
}
