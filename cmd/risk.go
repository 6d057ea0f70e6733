package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/risk"
	"tg_moderation_panel/internal/store"
)

func newRiskCmd(app *app) *cobra.Command {
	var action string

	cmd := &cobra.Command{
		Use:   "risk [account-id...]",
		Short: "Check accounts against the 24 hour login requirement",
		Long:  "risk classifies the given accounts (or every account) and prints the ids to proceed with for the chosen warning action.",
		RunE: func(cmd *cobra.Command, args []string) error {
			warningAction, err := risk.ParseWarningAction(action)
			if err != nil {
				return err
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			return app.withStore(cmd.Context(), func(manager *store.Manager) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), mongoQueryTimeout)
				defer cancel()

				list, err := domain.NewAccountRepository(manager.Accounts()).ListAccounts(ctx, ids)
				if err != nil {
					return err
				}

				result := risk.NewClassifier(nil).AssessBatch(list)
				writeRiskReport(cmd, result, warningAction)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&action, "action", risk.ActionContinue.String(), "what to do with risky accounts: continue or exclude-risky")
	return cmd
}

func writeRiskReport(cmd *cobra.Command, result risk.BatchResult, action risk.WarningAction) {
	out := cmd.OutOrStdout()

	for _, entry := range result.All {
		status := "ok"
		if entry.Assessment.IsRisky {
			status = "risky"
		}
		_, _ = fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", entry.Account.AccountID, entry.Account.Phone, status, entry.Assessment.Message)
	}

	_, _ = fmt.Fprintf(out, "total: %d, risky: %d, safe: %d\n", result.Total, result.RiskyCount, result.SafeCount)
	_, _ = fmt.Fprintln(out, result.Summary())

	proceed := result.Apply(action)
	ids := make([]int64, 0, len(proceed))
	for _, a := range proceed {
		ids = append(ids, a.AccountID)
	}
	_, _ = fmt.Fprintf(out, "proceed (%s): %s\n", action, joinIDs(ids))
}
