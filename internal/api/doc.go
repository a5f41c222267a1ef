// Package api holds the types shared by every warden component: service
// definitions, lifecycle states, exit classifications, status snapshots and
// the error taxonomy.
//
// Definitions are produced by the registry and treated as immutable by the
// core. Snapshots are the only view of instance state that leaves the
// orchestrator loop.
//
// # Errors
//
// Each error kind is a concrete type with an IsXxx helper built on
// errors.As, so wrapped errors keep their classification:
//
//	if api.IsNotFound(err) { ... }
//	if api.IsCycle(err) { ... }
package api
