// Package cmd holds the command line entry points of the bot.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. Without a subcommand the bot runs.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mediapool-bot",
		Short:         "Telegram bot serving random media from per-chat libraries",
		Long:          "Telegram bot that keeps a categorized media library per chat and serves random items without repeats",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
