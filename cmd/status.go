package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"warden/internal/api"
)

var (
	statusOutputFormat string
	statusQuiet        bool
	statusVerbose      bool
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [NAME]",
	Short: "Show the state of services",
	Long: `Show the state of one service, or of every service when no name is given.

With --verbose, a single running service is shown together with live
statistics of its process.

Examples:
  warden status
  warden status nginx --verbose
  warden status -o json`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: serviceNameCompletion,
	RunE:              runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	statusCmd.Flags().BoolVarP(&statusQuiet, "quiet", "q", false, "Suppress non-essential output")
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "Include live process statistics")
}

func runStatus(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter(cmd, statusOutputFormat, statusQuiet)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()
	client := newClient()

	if len(args) == 0 {
		snaps, err := client.StatusAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		return formatter.FormatSnapshots(snaps)
	}

	snap, err := client.Status(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get status of %s: %w", args[0], err)
	}

	var stats *api.ProcessStats
	if statusVerbose && snap.PID != 0 {
		// The process may exit between the two requests.
		if stats, err = client.ProcessStats(ctx, snap.PID); err != nil && !api.IsNotFound(err) {
			return fmt.Errorf("failed to get process statistics: %w", err)
		}
	}
	return formatter.FormatSnapshot(snap, stats)
}
