package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tg_moderation_panel/internal/externalapi"
	"tg_moderation_panel/internal/kick"
	"tg_moderation_panel/internal/logging"
	"tg_moderation_panel/internal/store"
)

func newKickCmd(app *app) *cobra.Command {
	var (
		apiID     string
		users     []string
		preset    string
		permanent bool
	)

	cmd := &cobra.Command{
		Use:   "kick",
		Short: "Kick users using the scope of a configured kick API",
		Long:  "kick runs the same fan-out as POST /api/kick for each listed user, using the bot and chat scope of the named kick API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userIDs, err := parseIDs(users)
			if err != nil {
				return err
			}
			if preset != "" {
				presetIDs, err := app.presetUserIDs(cmd, preset)
				if err != nil {
					return err
				}
				userIDs = mergeIDs(userIDs, presetIDs)
			}
			if len(userIDs) == 0 {
				return errors.New("no users given; pass --user or --preset")
			}

			def, err := app.findKickDefinition(apiID)
			if err != nil {
				return err
			}

			var requested *bool
			if cmd.Flags().Changed("permanent") {
				requested = &permanent
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.withStore(ctx, func(manager *store.Manager) error {
				stack, err := app.newKickStack(manager)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, userID := range userIDs {
					report, err := stack.service.Kick(ctx, def.Kick, kick.Request{UserID: userID, PermanentBan: requested})
					if err != nil {
						return fmt.Errorf("kick user %d: %w", userID, err)
					}

					app.logger.WithFields(logging.Fields{
						"event":     "cli_kick",
						"api_id":    def.ID,
						"user_id":   userID,
						"succeeded": report.Succeeded,
						"failed":    report.Failed,
					}).Info("kick finished")

					_, _ = fmt.Fprintln(out, report.Message)
					for _, item := range report.Items {
						if item.Success {
							_, _ = fmt.Fprintf(out, "  ok\tbot %d\tchat %d\t%s\n", item.BotID, item.ChatID, item.Title)
							continue
						}
						_, _ = fmt.Fprintf(out, "  failed\tbot %d\tchat %d\t%s\t%s\n", item.BotID, item.ChatID, item.Title, item.Error)
					}
					for _, note := range report.Notes {
						_, _ = fmt.Fprintf(out, "  note: %s\n", note)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&apiID, "api", "", "id of the kick API whose scope to use")
	cmd.Flags().StringSliceVar(&users, "user", nil, "user ids to kick (repeatable or comma separated)")
	cmd.Flags().StringVar(&preset, "preset", "", "kick every user in this preset")
	cmd.Flags().BoolVar(&permanent, "permanent", false, "ban permanently (defaults to the API setting)")
	_ = cmd.MarkFlagRequired("api")

	return cmd
}

func (a *app) findKickDefinition(apiID string) (externalapi.Definition, error) {
	snapshot, err := externalapi.NewManager(a.cfg.ExternalAPIFile, a.logger).Load()
	if err != nil {
		return externalapi.Definition{}, fmt.Errorf("load external apis: %w", err)
	}

	for _, def := range snapshot.OfType(externalapi.TypeKick) {
		if !strings.EqualFold(def.ID, strings.TrimSpace(apiID)) {
			continue
		}
		if !def.Enabled {
			return externalapi.Definition{}, fmt.Errorf("kick api %q is disabled", apiID)
		}
		return def, nil
	}

	return externalapi.Definition{}, fmt.Errorf("kick api %q not found in %s", apiID, a.cfg.ExternalAPIFile)
}

func (a *app) presetUserIDs(cmd *cobra.Command, name string) ([]int64, error) {
	s, err := a.presetStore()
	if err != nil {
		return nil, err
	}
	p, err := s.Get(cmd.Context(), name)
	if err != nil {
		return nil, err
	}
	return p.UserIDs, nil
}
