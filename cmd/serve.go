package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"warden/internal/app"
	"warden/internal/config"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveInit runs the bootstrap steps before any service. Implied when
// running as PID 1.
var serveInit bool

// serveConfigPath is the warden.yaml to load.
var serveConfigPath string

// serveCmd defines the serve command structure.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervisor in the foreground",
	Long: `Runs the supervisor: loads the service definitions, starts every service
in dependency order and supervises them until SIGTERM or SIGINT, then stops
them in reverse order.

Signals:
  SIGTERM, SIGINT  stop every service and exit
  SIGHUP           reload service definitions
  SIGUSR1          log the state of every service and write status.json

When running as PID 1, or with --init, the machine is prepared first:
virtual filesystems are mounted, the hostname is set and the random pool is
seeded. A failure in any of these steps is fatal.

Configuration:
  warden loads /etc/warden/warden.yaml unless --config is given. A missing
  file means the built-in defaults.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the main entry point for the serve command
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveInit || os.Getpid() == 1, serveConfigPath)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().BoolVar(&serveInit, "init", false, "Run the bootstrap steps first (implied as PID 1)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigFile, "Path of warden.yaml")
}
