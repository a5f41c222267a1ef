// Package signals is the Signal Coordinator: the one place that listens for
// OS signals and turns them into normalized Kinds for the orchestrator.
//
//	SIGCHLD          -> ChildExited (reap everything that exited)
//	SIGTERM, SIGINT  -> Terminate, Interrupt (orderly shutdown)
//	SIGHUP           -> Reload
//	SIGUSR1          -> DumpStatus
//
// The handler normally pushes the matching event onto the core queue, so
// tests can drive the orchestrator with HandleSignal calls instead of real
// signal delivery.
package signals
