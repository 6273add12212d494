package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"guesser/experiments"
	"guesser/game"
)

func (a *app) experimentCommand() *cobra.Command {
	var (
		theme   string
		version string
		name    string
		out     string
		workers int
		compare bool
	)
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Let an oracle play every entity of a theme and record the games as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseVersion(version)
			if err != nil {
				return err
			}
			store, err := a.store()
			if err != nil {
				return err
			}
			options, err := a.cfg.GameOptions()
			if err != nil {
				return err
			}
			cfg := experiments.Config{
				Name:    name,
				Theme:   theme,
				Version: v,
				Options: options,
				Workers: workers,
				OutDir:  out,
			}
			clock := clockwork.NewRealClock()

			if !compare {
				summary, err := experiments.Run(cmd.Context(), store, cfg, clock)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), name, summary)
				return nil
			}
			results, err := experiments.CompareVariants(cmd.Context(), store, cfg, clock)
			if err != nil {
				return err
			}
			for _, variant := range []game.Variant{game.VariantStandard, game.VariantResumed} {
				printSummary(cmd.OutOrStdout(), name+"_"+variant.String(), results[variant])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "theme to play")
	cmd.Flags().StringVar(&version, "version", "", "theme version (latest when empty)")
	cmd.Flags().StringVar(&name, "name", "selfplay", "experiment name, used for the output directory")
	cmd.Flags().StringVar(&out, "out", "", "directory for CSV records (none written when empty)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent games (GOMAXPROCS when 0)")
	cmd.Flags().BoolVar(&compare, "compare", false, "run once per session variant")
	_ = cmd.MarkFlagRequired("theme")
	return cmd
}

func printSummary(out io.Writer, name string, s experiments.Summary) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(out, "%s: %d games, %d found (%.0f%%), %d turns, %d guesses\n",
		bold(name), s.Games, s.Victories, 100*s.VictoryRate(), s.Turns, s.Guesses)
	if s.Dir != "" {
		fmt.Fprintf(out, "  records in %s\n", s.Dir)
	}
}
