package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	listOutputFormat string
	listQuiet        bool
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the loaded service definitions",
	Long: `List every service definition the supervisor currently knows, with its
type and dependencies.

Examples:
  warden list
  warden list -o yaml`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	listCmd.Flags().BoolVarP(&listQuiet, "quiet", "q", false, "Suppress non-essential output")
}

func runList(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter(cmd, listOutputFormat, listQuiet)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()

	infos, err := newClient().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list services: %w", err)
	}
	return formatter.FormatDefinitions(infos)
}
