// Package bootstrap prepares the machine when warden runs as the init
// process: it mounts the virtual filesystems, sets the hostname, seeds the
// kernel random pool and, when warden is not PID 1, registers it as a child
// subreaper so orphaned daemons are reparented to it.
//
// Every step failure is returned as a *StepError and is fatal for the
// process. Nothing in the service graph can be started without them.
package bootstrap
