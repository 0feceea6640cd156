package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"a2a/internal/daemonctl"
	"a2a/internal/identity"
)

func newIDCommand(ctx *commandContext) *cobra.Command {
	var identityName string

	cmd := &cobra.Command{
		Use:   "id",
		Short: "Show an identity's public id",
		Long:  `Show the name, public id and creation time of a stored identity.

Unlike daemon, id never creates an identity: an unknown --identity is an
error. Run "a2a daemon --identity NAME" once to create NAME.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.identities()
			if err != nil {
				return err
			}
			id, err := pickIdentity(store, identityName)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:      %s\n", id.Name)
			fmt.Fprintf(out, "Public ID: %s\n", id.PublicID())
			fmt.Fprintf(out, "Created:   %s\n", formatCreated(id.CreatedAt))
			return nil
		},
	}

	cmd.Flags().StringVarP(&identityName, "identity", "i", "", "Identity name (the only or first identity when empty)")
	return cmd
}

// pickIdentity loads name, or the first identity by name when name is empty.
func pickIdentity(store *identity.Store, name string) (identity.Identity, error) {
	if strings.TrimSpace(name) != "" {
		id, err := store.Load(name)
		if errors.Is(err, identity.ErrNotFound) {
			return id, fmt.Errorf("%w; `a2a daemon --identity %s` creates it", err, strings.TrimSpace(name))
		}
		return id, err
	}
	ids, err := store.List()
	if err != nil {
		return identity.Identity{}, err
	}
	if len(ids) == 0 {
		return identity.Identity{}, errors.New("no identities found; run `a2a daemon` to create one")
	}
	return ids[0], nil
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List identities and whether a daemon is running for each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.identities()
			if err != nil {
				return err
			}
			ids, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No identities found. Create one with `a2a daemon`")
				return nil
			}

			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				status := "stopped"
				if daemonctl.IsRunning(cmd.Context(), cfg.Paths.DataDir, id.Name) {
					status = "running"
				}
				rows = append(rows, []string{
					id.Name,
					id.PeerID().Short(),
					formatCreated(id.CreatedAt),
					status,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"NAME", "PUBLIC ID", "CREATED", "STATUS"},
				rows,
			))
			return nil
		},
	}
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
