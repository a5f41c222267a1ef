package cmd

import (
	"github.com/spf13/cobra"

	"warden/internal/control"
)

var stopOptions actionOptions

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop NAME",
	Short: "Stop a service",
	Long: `Stop a service. A pending restart is cancelled and the service is not
restarted until it is started again.

Examples:
  warden stop nginx
  warden stop nginx --wait

Note: the supervisor must be running (use 'warden serve') before using this command.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: serviceNameCompletion,
	RunE:              runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopOptions.register(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	return runAction(cmd, stopOptions, "stop", args[0], (*control.Client).Stop)
}
