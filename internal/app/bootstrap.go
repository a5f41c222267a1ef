package app

import (
	"context"
	"fmt"
	"os"

	"warden/internal/config"
	"warden/pkg/logging"
)

// Application represents the main application structure that bootstraps and runs warden.
//
// The Application follows a two-phase initialization pattern:
//  1. Bootstrap phase: Load configuration, initialize logging, wire services
//  2. Execution phase: Run the supervisor until shutdown
//
// Example usage:
//
//	cfg := app.NewConfig(false, false, "/etc/warden/warden.yaml")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration, initializes logging and wires
// every component. Nothing is started yet.
func NewApplication(cfg *Config) (*Application, error) {
	// Log with the CLI defaults until the configured level is known.
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	logging.InitForCLI(appLogLevel, os.Stderr)

	if cfg.WardenConfig == nil {
		wardenCfg, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load warden configuration from %s", cfg.ConfigPath)
			return nil, fmt.Errorf("failed to load warden configuration from %s: %w", cfg.ConfigPath, err)
		}
		cfg.WardenConfig = &wardenCfg
	}

	if err := initLogging(cfg); err != nil {
		return nil, err
	}

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func initLogging(cfg *Config) error {
	level, err := logging.ParseLevel(cfg.WardenConfig.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.Init(level, logging.Format(cfg.WardenConfig.LogFormat), os.Stderr)
	return nil
}

// Services returns the wired components.
func (a *Application) Services() *Services {
	return a.services
}

// Run executes the application
//
// It blocks until the supervisor has shut down, either through a
// terminate signal or through cancellation of ctx.
func (a *Application) Run(ctx context.Context) error {
	return runSupervisor(ctx, a.config, a.services)
}
