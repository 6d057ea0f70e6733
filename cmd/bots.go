package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/feature/bot"
	"tg_moderation_panel/internal/store"
)

func newBotsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bots",
		Short: "Manage stored bot credentials",
	}

	cmd.AddCommand(
		newBotsListCmd(app),
		newBotsAddCmd(app),
		newBotsSetActiveCmd(app, "enable", "Mark a bot as active", true),
		newBotsSetActiveCmd(app, "disable", "Mark a bot as inactive", false),
	)

	return cmd
}

func newBotsListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored bots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withStore(cmd.Context(), func(manager *store.Manager) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), mongoQueryTimeout)
				defer cancel()

				bots, err := domain.NewBotRepository(manager.Bots()).ListBots(ctx)
				if err != nil {
					return err
				}

				for _, record := range bots {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\tactive=%t\n", record.BotID, record.Name, record.IsActive)
				}
				return nil
			})
		},
	}
}

func newBotsAddCmd(app *app) *cobra.Command {
	var (
		botID    int64
		name     string
		token    string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a bot credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withStore(cmd.Context(), func(manager *store.Manager) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), mongoQueryTimeout)
				defer cancel()

				created, err := bot.NewRegistrar(manager.Bots(), app.logger).EnsureBot(ctx, domain.Bot{
					BotID:    botID,
					Name:     name,
					Token:    token,
					IsActive: !inactive,
				})
				if err != nil {
					return err
				}

				verb := "updated"
				if created {
					verb = "added"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s bot %d\n", verb, botID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&botID, "id", 0, "Telegram bot id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&token, "token", "", "Bot API token")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "store the bot without activating it")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func newBotsSetActiveCmd(app *app, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <bot-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			botID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || botID <= 0 {
				return fmt.Errorf("invalid bot id %q", args[0])
			}

			return app.withStore(cmd.Context(), func(manager *store.Manager) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), mongoQueryTimeout)
				defer cancel()

				if err := bot.NewRegistrar(manager.Bots(), app.logger).SetActive(ctx, botID, active); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "bot %d active=%t\n", botID, active)
				return nil
			})
		},
	}
}
