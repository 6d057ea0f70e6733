package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/store"
)

func newChatsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Inspect the chats each bot can act in",
	}

	cmd.AddCommand(newChatsListCmd(app))
	return cmd
}

func newChatsListCmd(app *app) *cobra.Command {
	var botID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chats for one bot, or for every active bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withStore(cmd.Context(), func(manager *store.Manager) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), mongoQueryTimeout)
				defer cancel()

				botIDs := []int64{botID}
				if botID == 0 {
					bots, err := domain.NewBotRepository(manager.Bots()).ListActiveBots(ctx)
					if err != nil {
						return err
					}
					botIDs = botIDs[:0]
					for _, record := range bots {
						botIDs = append(botIDs, record.BotID)
					}
				}

				chats := domain.NewChatRepository(manager.BotChats())
				for _, id := range botIDs {
					list, err := chats.ListChatsForBot(ctx, id)
					if err != nil {
						return err
					}
					for _, c := range list {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\t%s\t%s\n", c.BotID, c.TelegramID, c.ChatType, c.Title)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&botID, "bot", 0, "bot id (defaults to every active bot)")
	return cmd
}
