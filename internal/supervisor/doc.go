// Package supervisor spawns, signals, reaps and classifies service
// processes.
//
// Processes are started through /bin/sh -c in their own process group, so
// Terminate and Kill reach every descendant. Exits are collected with a
// non-blocking wait4(-1) loop (ReapAll) triggered by SIGCHLD; cmd.Wait is
// never used. Each reaped supervised child yields exactly one
// events.ProcessExited on the sink, classified by ClassifyWaitStatus.
//
// Readiness is a pure mapping (Readiness) from service type and process
// event to a Verdict. Notify services get a unixgram socket through
// NOTIFY_SOCKET and are ready once they send ReadyToken; forking services
// are ready once their parent exits cleanly and WatchPIDFile sees a valid
// pid file.
//
// Restart decisions are likewise pure: RestartPermitted implements the
// policy table and Decide adds attempt accounting and operator stops.
package supervisor
