package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPresetsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage named lists of user ids",
	}

	cmd.AddCommand(
		newPresetsListCmd(app),
		newPresetsSaveCmd(app),
		newPresetsDeleteCmd(app),
	)

	return cmd
}

func newPresetsListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.presetStore()
			if err != nil {
				return err
			}

			list, err := s.List(cmd.Context())
			if err != nil {
				return err
			}

			for _, p := range list {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Name, joinIDs(p.UserIDs))
			}
			return nil
		},
	}
}

func newPresetsSaveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "save <name> <user-id>...",
		Short: "Create or replace a preset",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}

			s, err := app.presetStore()
			if err != nil {
				return err
			}

			p, err := s.Save(cmd.Context(), args[0], ids)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved preset %s with %d users\n", p.Name, len(p.UserIDs))
			return nil
		},
	}
}

func newPresetsDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.presetStore()
			if err != nil {
				return err
			}

			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted preset %s\n", args[0])
			return nil
		},
	}
}
