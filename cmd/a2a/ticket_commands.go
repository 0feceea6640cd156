package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"a2a/internal/bus"
	"a2a/internal/ticket"
)

func newTicketCommand() *cobra.Command {
	ticketCmd := &cobra.Command{
		Use:         "ticket",
		Short:       "Ticket utilities",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	ticketCmd.AddCommand(newTicketInspectCommand())
	ticketCmd.AddCommand(newTicketRoomCommand())
	return ticketCmd
}

func newTicketInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect TICKET",
		Short: "Decode a ticket and show its topic and peers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := ticket.Decode(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Topic: %s\n", t.Topic)
			if len(t.Peers) == 0 {
				fmt.Fprintln(out, "No peers in ticket")
				return nil
			}
			rows := make([][]string, 0, len(t.Peers))
			for i, p := range t.Peers {
				addrs := "-"
				if len(p.Addrs) > 0 {
					addrs = strings.Join(p.Addrs, ", ")
				}
				rows = append(rows, []string{strconv.Itoa(i + 1), p.ID.String(), addrs})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "PEER ID", "ADDRESSES"},
				rows,
				1,
			))
			return nil
		},
	}
}

func newTicketRoomCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "room NAME",
		Short: "Print the topic id for a room label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), bus.TopicFromRoom(args[0]))
			return nil
		},
	}
}
