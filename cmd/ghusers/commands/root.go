// Package commands implements the ghusers CLI.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:   "ghusers",
		Short: "Browse GitHub users through a serial network queue with a local avatar cache",
		Long: `ghusers lists users and profiles from the GitHub REST API and keeps their
avatars in a crash-safe on-disk cache. Every network request goes through a
single FIFO queue that admits one request at a time.

Configuration comes from defaults, an optional YAML file and GHUSERS_*
environment variables (e.g. GHUSERS_API_TOKEN, GHUSERS_CACHE_ROOT).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/ghusers/config.yaml)")
	root.CompletionOptions.DisableDefaultCmd = true

	cfg := func() string { return cfgFile }
	root.AddCommand(
		newServeCmd(cfg),
		newUsersCmd(cfg),
		newProfileCmd(cfg),
		newAvatarCmd(cfg),
		newPurgeCmd(cfg),
		newInitCmd(cfg),
	)
	return root
}
