package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tinoosan/ghusers/internal/data"
)

func newAvatarCmd(cfgFile func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "avatar <login>",
		Short: "Fetch a user's avatar into the cache",
		Long: `Look up the user's profile, then download the avatar into the local cache
unless it is already there. Prints the cached file path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgFile())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			p, err := a.users.Profile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("profile %s: %w", args[0], err)
			}
			b, err := a.users.Avatar(cmd.Context(), p.ID)
			if err != nil {
				return fmt.Errorf("avatar %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", a.cache.PathFor(p.ID), len(b))
			return nil
		},
	}
}

func newPurgeCmd(cfgFile func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <id>",
		Short: "Remove a cached avatar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := data.ParseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cfgFile())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.users.PurgeAvatar(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", a.cache.PathFor(id))
			return nil
		},
	}
}
