package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUsersCmd(cfgFile func() string) *cobra.Command {
	var since int64
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List one page of users",
		Example: `  ghusers users
  ghusers users --since 46`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgFile())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			list, err := a.users.List(cmd.Context(), since)
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			printUsers(cmd.OutOrStdout(), list)
			fmt.Fprintf(cmd.OutOrStdout(), "\nnext page: --since %d\n", list.LastID(since))
			return nil
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "only users with an id greater than this")
	return cmd
}

func newProfileCmd(cfgFile func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "profile <login>",
		Short: "Show a user's profile",
		Args:  cobra.ExactArgs(1),
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
			printProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}
}
