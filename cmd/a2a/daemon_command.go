package main

import (
	"github.com/spf13/cobra"

	"a2a/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Join a room and relay messages until interrupted",
		Long: "Join a room and relay messages until interrupted.\n\n" +
			"Messages from peers are printed to stdout. Other a2a commands hand\n" +
			"messages to this process through a local socket.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts.Stdout = cmd.OutOrStdout()
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Identity, "identity", "i", "", "Identity name (generated when empty)")
	cmd.Flags().StringVarP(&opts.Room, "room", "r", "", "Room label (default from room.default_room)")
	cmd.Flags().StringVarP(&opts.Join, "join", "j", "", "Join the room described by a ticket")
	return cmd
}
