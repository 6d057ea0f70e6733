package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tg_moderation_panel/internal/config"
	"tg_moderation_panel/internal/externalapi"
	"tg_moderation_panel/internal/logging"
)

const redactedKey = "(redacted)"

func newCheckConfigCmd(app *app) *cobra.Command {
	var showAPIs bool

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Load and print the configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Info("configuration check", logging.Fields{"event": "config_only"})

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "configuration check: ok")
			_, _ = fmt.Fprintln(out, config.FormatRedacted(app.cfg))

			if !showAPIs {
				return nil
			}

			snapshot, err := externalapi.NewManager(app.cfg.ExternalAPIFile, app.logger).Load()
			if err != nil {
				return fmt.Errorf("load external apis: %w", err)
			}

			defs := snapshot.Definitions()
			for i := range defs {
				if defs[i].APIKey != "" {
					defs[i].APIKey = redactedKey
				}
			}

			data, err := externalapi.Marshal(defs)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, "external apis:")
			_, _ = out.Write(data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showAPIs, "apis", false, "also print the loaded external API definitions")
	return cmd
}
