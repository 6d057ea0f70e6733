package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tg_moderation_panel/internal/domain"
	"tg_moderation_panel/internal/feature/account"
	"tg_moderation_panel/internal/store"
)

func newAccountsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage user-session accounts",
	}

	cmd.AddCommand(
		newAccountsListCmd(app),
		newAccountsImportCmd(app),
		newAccountsLoginCmd(app),
	)

	return cmd
}

func newAccountsListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [account-id...]",
		Short: "List accounts with their recorded timestamps",
		RunE: func(cmd *cobra.Command, args []string) error {
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

				for _, a := range list {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\tlogin=%s\timported=%s\n",
						a.AccountID, a.Phone, formatTimestamp(a.LastLoginAt), formatTimestamp(a.CreatedAt))
				}
				return nil
			})
		},
	}
}

func newAccountsImportCmd(app *app) *cobra.Command {
	var (
		accountID int64
		phone     string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Record an account, stamping its import time on first sight",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withStore(cmd.Context(), func(manager *store.Manager) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), mongoQueryTimeout)
				defer cancel()

				created, err := account.NewRegistrar(manager.Accounts(), app.logger).EnsureAccount(ctx, accountID, phone)
				if err != nil {
					return err
				}

				verb := "synced"
				if created {
					verb = "imported"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s account %d\n", verb, accountID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&accountID, "id", 0, "account id")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newAccountsLoginCmd(app *app) *cobra.Command {
	var (
		accountID int64
		at        string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Record a successful login for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var loginAt time.Time
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at value: %w", err)
				}
				loginAt = parsed
			}

			return app.withStore(cmd.Context(), func(manager *store.Manager) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), mongoQueryTimeout)
				defer cancel()

				if err := account.NewRegistrar(manager.Accounts(), app.logger).RecordLogin(ctx, accountID, loginAt); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "recorded login for account %d\n", accountID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&accountID, "id", 0, "account id")
	cmd.Flags().StringVar(&at, "at", "", "login time in RFC3339 (defaults to now)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func formatTimestamp(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}
