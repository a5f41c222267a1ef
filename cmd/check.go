package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"warden/internal/config"
	"warden/internal/dependency"
	"warden/internal/registry"
	"warden/pkg/logging"
)

var (
	checkConfigPath   string
	checkServicesDir  string
	checkOutputFormat string
	checkQuiet        bool
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate service definitions and show the start order",
	Long: `Load the service definitions, build the dependency graph and print the
levels services are started in. Services in the same level start together.

check fails when a definition is malformed, a requirement is unknown or the
dependencies form a cycle. It does not need a running supervisor.

Examples:
  warden check
  warden check --services-dir ./services -o json`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkConfigPath, "config", config.DefaultConfigFile, "Path of warden.yaml")
	checkCmd.Flags().StringVar(&checkServicesDir, "services-dir", "", "Directory of service definitions (overrides the configuration)")
	checkCmd.Flags().StringVarP(&checkOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "Suppress non-essential output")
}

func runCheck(cmd *cobra.Command, args []string) error {
	logging.InitForCLI(logging.LevelWarn, cmd.ErrOrStderr())

	formatter, err := newFormatter(cmd, checkOutputFormat, checkQuiet)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(checkConfigPath)
	if err != nil {
		return err
	}
	dir := cfg.ServicesDir
	if checkServicesDir != "" {
		dir = checkServicesDir
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defs, defErrs, err := registry.NewLoader(dir, cfg.Defaults).LoadWithErrors(ctx)
	if err != nil {
		return fmt.Errorf("failed to load definitions from %s: %w", dir, err)
	}
	for _, defErr := range defErrs {
		fmt.Fprintf(cmd.ErrOrStderr(), "invalid: %v\n", defErr)
	}

	graph, err := dependency.FromDefinitions(defs)
	if err != nil {
		return err
	}
	levels, err := graph.Levels()
	if err != nil {
		return err
	}

	names := make([][]string, len(levels))
	for i, level := range levels {
		for _, id := range level {
			names[i] = append(names[i], string(id))
		}
	}
	if err := formatter.FormatLevels(names); err != nil {
		return err
	}

	if len(defErrs) > 0 {
		return fmt.Errorf("%d invalid service definition(s) in %s", len(defErrs), dir)
	}
	return nil
}

