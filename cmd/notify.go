package cmd

import (
	"errors"
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
)

var notifyStatus string

// notifyCmd represents the notify command
var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Report readiness to the supervisor",
	Long: `Send the readiness token to $NOTIFY_SOCKET. Services of type notify run
this (or speak the protocol themselves) once they are ready to serve.

Examples:
  warden notify
  warden notify --status "listening on :8080"`,
	Args: cobra.NoArgs,
	RunE: runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)

	notifyCmd.Flags().StringVar(&notifyStatus, "status", "", "Free-form status text sent along with readiness")
}

func runNotify(cmd *cobra.Command, args []string) error {
	state := daemon.SdNotifyReady
	if notifyStatus != "" {
		state += "\nSTATUS=" + notifyStatus
	}
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return fmt.Errorf("failed to notify supervisor: %w", err)
	}
	if !sent {
		return errors.New("NOTIFY_SOCKET is not set")
	}
	return nil
}
