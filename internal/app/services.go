package app

import (
	"fmt"

	"warden/internal/control"
	"warden/internal/events"
	"warden/internal/metrics"
	"warden/internal/orchestrator"
	"warden/internal/registry"
	"warden/internal/signals"
	"warden/internal/supervisor"
	"warden/pkg/logging"
)

// Services holds all initialized components used by the application.
//
// The components share one event queue: the supervisor, the signal
// coordinator and the definition watcher only ever push onto it, and the
// orchestrator is its single consumer.
type Services struct {
	Queue        *events.Queue
	Supervisor   *supervisor.Supervisor
	Orchestrator *orchestrator.Orchestrator
	Registry     *registry.Loader

	// Signals is subscribed on creation, before any child is spawned.
	Signals *signals.Coordinator

	Control *control.Server

	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Recorder

	// Watcher is nil unless definition watching is enabled.
	Watcher *registry.Watcher
}

// InitializeServices creates and wires every component from the loaded
// configuration.
func InitializeServices(cfg *Config) (*Services, error) {
	if cfg.WardenConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	wc := cfg.WardenConfig

	queue := events.NewQueue()

	sup := supervisor.New(supervisor.Config{
		Sink:        queue,
		Environment: wc.Environment,
		RuntimeDir:  wc.RuntimeDir,
		Output:      logging.Output(),
	})

	loader := registry.NewLoader(wc.ServicesDir, wc.Defaults)

	orch := orchestrator.New(orchestrator.Config{
		Queue:      queue,
		Supervisor: sup,
		Source:     loader,
		StateDir:   wc.StateDir,
	})

	services := &Services{
		Queue:        queue,
		Supervisor:   sup,
		Orchestrator: orch,
		Registry:     loader,
		Signals:      signals.NewCoordinator(orch),
	}

	serverCfg := control.ServerConfig{
		SocketPath: wc.ControlSocket,
		Service:    orch,
		Stats:      supervisor.Stats,
	}
	if wc.MetricsEnabled {
		services.Metrics = metrics.NewRecorder(queue)
		serverCfg.Metrics = services.Metrics.Handler()
	}
	services.Control = control.NewServer(serverCfg)

	if wc.Watch {
		services.Watcher = registry.NewWatcher(wc.ServicesDir, wc.WatchDebounce, queue)
	}

	logging.Debug("Bootstrap", "Services initialized (metrics=%t, watch=%t)", wc.MetricsEnabled, wc.Watch)
	return services, nil
}
