package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tg_moderation_panel/internal/externalapi"
	"tg_moderation_panel/internal/store"
)

func newStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stored record counts and configured external APIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			err := app.withStore(cmd.Context(), func(manager *store.Manager) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), mongoQueryTimeout)
				defer cancel()

				stats, err := store.NewStatsProvider(manager.Bots(), manager.BotChats(), manager.Accounts()).Collect(ctx)
				if err != nil {
					return fmt.Errorf("collect stats: %w", err)
				}

				_, _ = fmt.Fprintf(out, "bots: %d (%d active)\n", stats.Bots, stats.ActiveBots)
				_, _ = fmt.Fprintf(out, "chats: %d\n", stats.Chats)
				_, _ = fmt.Fprintf(out, "accounts: %d\n", stats.Accounts)
				return nil
			})
			if err != nil {
				return err
			}

			snapshot, err := externalapi.NewManager(app.cfg.ExternalAPIFile, app.logger).Load()
			if err != nil {
				return fmt.Errorf("load external apis: %w", err)
			}
			_, _ = fmt.Fprintf(out, "external apis: %d kick, %d risk\n",
				len(snapshot.OfType(externalapi.TypeKick)), len(snapshot.OfType(externalapi.TypeRisk)))

			rejoin := "disabled"
			if app.cfg.RejoinEnabled() {
				rejoin = "enabled"
			}
			_, _ = fmt.Fprintf(out, "rejoin: %s\n", rejoin)
			return nil
		},
	}
}
