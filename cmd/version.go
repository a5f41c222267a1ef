package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionVerbose bool

// newVersionCmd creates the command that prints the warden version and,
// with --verbose, the Go runtime it was built with.
func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the warden version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "warden version %s\n", GetVersion())
			if versionVerbose {
				fmt.Fprintf(out, "go: %s\nplatform: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			}
		},
	}
	cmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "Also print the Go version and platform")
	return cmd
}
