package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// reloadCmd represents the reload command
var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload service definitions",
	Long: `Re-read the service definitions and apply the difference: removed services
are stopped, changed ones are restarted with the new definition and new ones
become available. The same happens on SIGHUP.

If the new definitions contain a cycle or an unknown requirement, the
current set is kept and the error is reported.`,
	Args: cobra.NoArgs,
	RunE: runReload,
}

func init() {
	rootCmd.AddCommand(reloadCmd)
}

func runReload(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Definitions reloaded")
	return nil
}
