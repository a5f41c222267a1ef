package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write a status snapshot",
	Long: `Ask the supervisor to log the state of every service and write it to
status.json in its state directory. The same happens on SIGUSR1.`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().DumpStatus(ctx); err != nil {
		return fmt.Errorf("failed to dump status: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Status dumped")
	return nil
}
