package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guesser/catalog"
	"guesser/communication/client"
	"guesser/engine"
	"guesser/game"
	"guesser/player"
)

func (a *app) playCommand() *cobra.Command {
	var theme, version, remote string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Think of something and let the engine guess it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var driver engine.Driver
			if remote != "" {
				g := client.New(remote, nil).NewGame(theme, version)
				defer func() { _ = g.Close(context.WithoutCancel(ctx)) }()
				driver = g
			} else {
				g, err := a.localGame(ctx, theme, version)
				if err != nil {
					return err
				}
				defer func() { _ = g.Session().Close() }()
				driver = g
			}

			prompt, err := engine.Run(ctx, driver, player.NewTerminal(cmd.InOrStdin(), out))
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nBye.")
				return nil
			}
			if err != nil {
				return err
			}
			printOutcome(out, prompt)
			return nil
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "theme to play")
	cmd.Flags().StringVar(&version, "version", "", "theme version (latest when empty)")
	cmd.Flags().StringVar(&remote, "remote", "", "play against a server at this URL instead of locally")
	_ = cmd.MarkFlagRequired("theme")
	return cmd
}

func (a *app) localGame(ctx context.Context, theme, version string) (*engine.Game, error) {
	v, err := parseVersion(version)
	if err != nil {
		return nil, err
	}
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	options, err := a.cfg.GameOptions()
	if err != nil {
		return nil, err
	}
	s, err := game.New(ctx, store, game.NewSequentialAllocator(a.cfg.MaxSessionID), theme, v, options...)
	if err != nil {
		return nil, err
	}
	return engine.NewGame(s), nil
}

func parseVersion(s string) (catalog.Version, error) {
	if s == "" {
		return catalog.Version{}, nil
	}
	return catalog.ParseVersion(s)
}

func printOutcome(out io.Writer, prompt engine.Prompt) {
	if prompt.Victory() {
		color.New(color.FgGreen, color.Bold).Fprintf(out, "Outcome: %s. Got it!\n", prompt.State)
		return
	}
	color.New(color.FgRed, color.Bold).Fprintf(out, "Outcome: %s. You win this time.\n", prompt.State)
}
