package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"a2a/internal/daemonctl"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	var identityName string

	cmd := &cobra.Command{
		Use:   "send MESSAGE...",
		Short: "Send a message through the running daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			message := strings.TrimSpace(strings.Join(args, " "))
			if message == "" {
				return errors.New("message is empty")
			}
			return daemonctl.Send(cmd.Context(), cfg.Paths.DataDir, identityName, message)
		},
	}

	cmd.Flags().StringVarP(&identityName, "identity", "i", "", "Daemon identity to send through (first running daemon when empty)")
	return cmd
}
