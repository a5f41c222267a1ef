// Package dependency provides the directed acyclic graph over services used
// to order start-up and shutdown.
//
// # Dependency kinds
//
//   - requires: ordering plus failure propagation. A dependent whose required
//     service fails before it ever became active is cancelled.
//   - after: ordering only. The dependent waits for the dependency to reach a
//     terminal state but never fails because of it.
//   - wants: a soft hint. It does not order and unknown names are ignored.
//
// Names ending in ".target" that are referenced but not defined become
// virtual nodes; they have no process and are active as soon as scheduled.
//
// # Validation
//
// Unknown requires/after references yield an api.UnknownDependencyError.
// Cycles are found with a depth-first traversal and reported as an
// api.CycleError carrying the full closed path.
//
// # Levels
//
// Levels computes topological levels with Kahn's algorithm:
//
//	g, err := dependency.FromDefinitions(defs)
//	levels, err := g.Levels()
//	// levels[0] has no dependencies, levels[1] depends only on levels[0], ...
//
// Services within a level may start concurrently; stopping walks the levels
// in reverse.
//
// # Thread Safety
//
// Graph is not safe for concurrent use. The orchestrator loop owns it.
package dependency
