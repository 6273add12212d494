package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guesser/catalog"
)

func (a *app) seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <theme.toml>...",
		Short: "Import theme definitions as new snapshot versions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			for _, path := range args {
				theme, err := catalog.LoadTheme(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				snapshot, err := store.Import(cmd.Context(), theme)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s\n", theme.Name, theme.Version, snapshot)
			}
			return nil
		},
	}
}

func (a *app) themesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List stored themes and their versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store()
			if err != nil {
				return err
			}
			themes, err := store.Themes(cmd.Context())
			if err != nil {
				return err
			}
			bold := color.New(color.Bold).SprintFunc()
			for _, theme := range themes {
				versions, err := store.Versions(cmd.Context(), theme)
				if err != nil {
					return err
				}
				names := make([]string, len(versions))
				for i, v := range versions {
					names[i] = v.String()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", bold(theme), strings.Join(names, " "))
			}
			return nil
		},
	}
}
