package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"warden/internal/api"
	"warden/internal/control"
	"warden/internal/formatting"
)

// waitPollInterval is how often --wait polls the service state.
const waitPollInterval = 200 * time.Millisecond

// requestTimeout bounds every control socket request.
var requestTimeout time.Duration

func newClient() *control.Client {
	return control.NewClient(socketPath)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, requestTimeout)
}

func newFormatter(cmd *cobra.Command, format string, quiet bool) (formatting.Formatter, error) {
	f, ok := formatting.ParseFormat(format)
	if !ok {
		return nil, fmt.Errorf("unknown output format '%s'. Available formats: table, json, yaml", format)
	}
	return formatting.New(formatting.Options{
		Format: f,
		Quiet:  quiet,
		Color:  f == formatting.FormatTable && !quiet,
		Out:    cmd.OutOrStdout(),
	}), nil
}

// actionOptions are the flags shared by start, stop and restart.
type actionOptions struct {
	wait  bool
	quiet bool
}

func (o *actionOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.wait, "wait", "w", false, "Wait until the service settled")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "Suppress non-essential output")
}

// runAction sends one service action and reports it.
func runAction(cmd *cobra.Command, opts actionOptions, verb string, name string, action func(c *control.Client, ctx context.Context, name string) error) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	client := newClient()
	requested := time.Now()
	if err := action(client, ctx, name); err != nil {
		return fmt.Errorf("failed to %s %s: %w", verb, name, err)
	}
	if !opts.wait {
		if !opts.quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s requested\n", name, verb)
		}
		return nil
	}

	var s *spinner.Spinner
	if !opts.quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" Waiting for %s...", name)
		s.Start()
	}
	snap, err := waitSettled(ctx, client, name, verb == "stop", requested)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return fmt.Errorf("failed waiting for %s: %w", name, err)
	}
	if snap.State == api.StateFailed {
		return fmt.Errorf("%s failed: %s", name, snap.Reason)
	}
	if !opts.quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, snap.State)
	}
	return nil
}

// waitSettled polls until the service reached a state the action can end
// in. A oneshot that already finished counts as settled once it entered
// Inactive after the request.
func waitSettled(ctx context.Context, client *control.Client, name string, stopping bool, since time.Time) (api.StateSnapshot, error) {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	for {
		snap, err := client.Status(ctx, name)
		if err != nil {
			return snap, err
		}
		if settled(snap, stopping, since) {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}

func settled(snap api.StateSnapshot, stopping bool, since time.Time) bool {
	switch snap.State {
	case api.StateFailed:
		return true
	case api.StateInactive:
		return stopping || snap.Since.After(since)
	case api.StateActive:
		return !stopping
	}
	return false
}

// serviceNameCompletion completes service names from the running supervisor.
func serviceNameCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	infos, err := newClient().List(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 30*time.Second, "Timeout of control socket requests")
}
