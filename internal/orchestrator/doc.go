// Package orchestrator implements the core loop of warden.
//
// The Orchestrator is the explicit context object of the supervision
// engine. One goroutine, the one running Run, consumes the event queue and
// is the only code that mutates service instances, the dependency graph or
// the pid table. Everything else (spawns, readiness waits, timers, OS
// signals and control requests) posts events onto the queue.
//
// # Instances
//
// Instances live in an index-addressed slice. A separate pid to index map
// resolves ProcessExited events, and every asynchronous event carries an
// Owner (index and generation) so results of an earlier incarnation are
// recognised and dropped.
//
// # Scheduling
//
// StartAll marks every service pending and releases them level by level in
// topological order. A pending service starts once its requires/after
// dependencies allow it; a required dependency that failed cancels it
// without a spawn. StopAll and Shutdown walk the levels in reverse, idle
// services first.
//
// # Restarts
//
// When a process ends, the restart policy of its definition decides
// between a delayed restart (constant or exponential backoff), a final
// Failed state, or Inactive for a clean finish. Operator stops and
// shutdown never trigger restarts.
//
// # Control
//
// Start, Stop, Restart, Status, StatusAll, List, StartAll, StopAll,
// Shutdown, Reload and DumpStatus are safe for concurrent use. Each queues a
// command and waits for the loop to answer.
package orchestrator
