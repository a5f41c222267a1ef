// Package logging provides the subsystem-tagged structured logger used by
// every warden component.
//
// It is a thin layer over log/slog. Each record carries a "subsystem"
// attribute naming the component that emitted it, and error records carry
// an "error" attribute.
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("Orchestrator", "Boot level %d complete", level)
//	logging.Warn("Registry", "Excluding malformed definition %s", path)
//	logging.Error("Supervisor", err, "Failed to spawn %s", name)
//
// Output returns the configured writer; the supervisor copies the stdout and
// stderr of services there so that service output and supervisor records
// end up in one sink.
package logging
