package main

import (
	"github.com/spf13/cobra"

	"github.com/Montabos/Projet/internal/config"
)

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "mailflow",
		Short: "Draft emails with a reviewed, resumable workflow",
		Long: `Mailflow classifies an email instruction, gathers context from the
local corpus and the web, drafts the email, and reviews it. Every run pauses
after review so a human can approve, edit, or resume it. Runs are persisted
and can be continued from any command.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.BaseConfigFile, "Config file path (TOML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(
		chatCmd(opts),
		startCmd(opts),
		resumeCmd(opts),
		showCmd(opts),
		approveCmd(opts),
		editCmd(opts),
		runsCmd(opts),
		deleteCmd(opts),
	)

	return cmd
}
