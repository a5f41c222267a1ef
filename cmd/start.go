package cmd

import (
	"github.com/spf13/cobra"

	"warden/internal/control"
)

var startOptions actionOptions

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start NAME",
	Short: "Start a service",
	Long: `Start a service and, first, whatever it requires.

Starting a failed service clears its restart attempt counter. Starting a
service that is stopping schedules a start once it is down.

Examples:
  warden start nginx
  warden start nginx --wait

Note: the supervisor must be running (use 'warden serve') before using this command.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: serviceNameCompletion,
	RunE:              runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startOptions.register(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	return runAction(cmd, startOptions, "start", args[0], (*control.Client).Start)
}
