// Package app provides application bootstrap and lifecycle management for warden.
//
// # Architecture Overview
//
// The app package is the layer between the command line and the engine:
//
//  1. **Configuration (`config.go`)**: runtime flags of one invocation (debug, init, config path)
//  2. **Bootstrap (`bootstrap.go`)**: loads warden.yaml, initializes logging and wires services
//  3. **Services (`services.go`)**: builds the queue, supervisor, orchestrator, control server,
//     metrics recorder and definition watcher, and connects them
//  4. **Modes (`modes.go`)**: runs the supervisor in the foreground until shutdown
//
// # Wiring
//
// Every producer of events (the process supervisor, the signal coordinator
// and the definition watcher) pushes onto the same events.Queue, and the
// orchestrator is its only consumer. The control server calls the
// orchestrator's blocking command methods, which are themselves queued.
//
// # Shutdown
//
// SIGTERM and SIGINT reach the orchestrator through the signal coordinator
// and stop every service in reverse dependency order. Cancelling the
// context passed to Run has the same effect. Once the loop exits, the
// control socket is removed and the supervisor kills whatever is left after
// the configured stop timeout.
//
// # Usage
//
//	cfg := app.NewConfig(debug, initMode, configPath)
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
package app
