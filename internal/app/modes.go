package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/internal/api"
	"warden/internal/bootstrap"
	"warden/internal/orchestrator"
	"warden/pkg/logging"
)

// controlStopTimeout bounds how long in-flight control requests may delay
// the exit.
const controlStopTimeout = 5 * time.Second

// runSupervisor runs warden in the foreground until the core loop exits.
//
// Behavior:
//   - Runs the bootstrap steps first when cfg.Init is set; their failure is fatal
//   - Starts the core loop, the signal coordinator and the control socket
//   - Boots every service in dependency order
//   - Blocks until SIGTERM/SIGINT or cancellation of ctx, then stops all
//     services in reverse order
//
// Cancelling ctx requests the same orderly shutdown as SIGTERM; it does
// not abandon running services.
func runSupervisor(ctx context.Context, cfg *Config, services *Services) error {
	wc := cfg.WardenConfig

	if cfg.Init {
		if err := bootstrap.New(wc.Bootstrap).Run(); err != nil {
			return fmt.Errorf("bootstrap failed: %w", err)
		}
	}

	// The loop outlives ctx so shutdown can still stop every service.
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	orch := services.Orchestrator
	if services.Metrics != nil {
		changes := orch.SubscribeToStateChanges()
		go services.Metrics.Run(runCtx, changes)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- orch.Run(runCtx) }()
	go services.Signals.Run(orch.Done())

	defer closeSupervisor(services, wc.Defaults.StopTimeout)

	if err := services.Control.Start(runCtx); err != nil {
		logging.Error("Supervisor", err, "Failed to start control socket")
		shutdown(orch, cancelRun)
		<-runErr
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), controlStopTimeout)
		defer cancel()
		if err := services.Control.Stop(stopCtx); err != nil {
			logging.Warn("Supervisor", "Control socket did not stop cleanly: %v", err)
		}
	}()

	if services.Watcher != nil {
		if err := services.Watcher.Start(runCtx); err != nil {
			logging.Warn("Supervisor", "Definition watching disabled: %v", err)
		} else {
			defer services.Watcher.Stop()
		}
	}

	go func() {
		err := orch.StartAll(runCtx)
		switch {
		case err == nil:
		case errors.Is(err, api.ErrShuttingDown), errors.Is(err, orchestrator.ErrBootInterrupted):
			logging.Info("Supervisor", "Boot interrupted: %v", err)
		default:
			logging.Error("Supervisor", err, "Boot failed")
		}
	}()

	select {
	case <-ctx.Done():
		logging.Info("Supervisor", "Context cancelled, shutting down")
		shutdown(orch, cancelRun)
	case err := <-services.Control.Errors():
		logging.Error("Supervisor", err, "Control socket failed, shutting down")
		shutdown(orch, cancelRun)
	case <-orch.Done():
	}

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info("Supervisor", "Shutdown complete")
	return nil
}

// shutdown stops every service through the core loop. If the loop refuses,
// it is cancelled outright and the supervisor's Close cleans up.
func shutdown(orch *orchestrator.Orchestrator, cancelRun context.CancelFunc) {
	if err := orch.Shutdown(context.Background()); err != nil && !errors.Is(err, api.ErrShuttingDown) {
		logging.Error("Supervisor", err, "Orderly shutdown failed")
		cancelRun()
	}
}

func closeSupervisor(services *Services, grace time.Duration) {
	if err := services.Supervisor.Close(grace); err != nil {
		logging.Warn("Supervisor", "Process cleanup incomplete: %v", err)
	}
}
