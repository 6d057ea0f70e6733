// Package cmd implements the panel command line.
package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "panel",
		Short:         "Telegram moderation panel: batch kicks, risk checks, and bot inventory",
		Long:          "panel runs the moderation HTTP API and Telegram listeners, and manages the bots, chats, accounts, and user presets it acts on.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newServeCmd(app),
		newCheckConfigCmd(app),
		newStatusCmd(app),
		newBotsCmd(app),
		newChatsCmd(app),
		newAccountsCmd(app),
		newRiskCmd(app),
		newKickCmd(app),
		newPresetsCmd(app),
	)

	return rootCmd
}
