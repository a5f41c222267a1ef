package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"warden/internal/api"
	"warden/internal/config"
	"warden/internal/control"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeNotFound indicates the named service does not exist.
	ExitCodeNotFound = 2
	// ExitCodeUnavailable indicates the supervisor is not reachable or is shutting down.
	ExitCodeUnavailable = 3
)

// socketPath is the control socket used by every client command.
var socketPath string

// rootCmd represents the base command for the warden application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Supervise services in dependency order",
	Long: `warden is a service supervisor that can run as the init process.

It starts services in dependency order, restarts them according to their
restart policy and stops them in reverse order on shutdown. 'warden serve'
runs the supervisor; the other commands talk to it over its control socket.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "warden version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if api.IsNotFound(err) {
		return ExitCodeNotFound
	}
	if errors.Is(err, api.ErrShuttingDown) || control.IsUnavailable(err) {
		return ExitCodeUnavailable
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", config.DefaultControlSocket, "Path of the control socket")
}
