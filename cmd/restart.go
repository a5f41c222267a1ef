package cmd

import (
	"github.com/spf13/cobra"

	"warden/internal/control"
)

var restartOptions actionOptions

// restartCmd represents the restart command
var restartCmd = &cobra.Command{
	Use:   "restart NAME",
	Short: "Restart a service",
	Long: `Stop a service if it is running, then start it again. The restart attempt
counter is cleared.

Examples:
  warden restart nginx`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: serviceNameCompletion,
	RunE:              runRestart,
}

func init() {
	rootCmd.AddCommand(restartCmd)

	restartOptions.register(restartCmd)
}

func runRestart(cmd *cobra.Command, args []string) error {
	return runAction(cmd, restartOptions, "restart", args[0], (*control.Client).Restart)
}
