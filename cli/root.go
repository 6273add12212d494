// Package cli wires the guesser commands: seeding theme snapshots, playing in the terminal,
// serving the HTTP play API and running self-play experiments.
package cli

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"guesser/config"
	"guesser/storage/sqlite"
)

type app struct {
	cfg config.Config
}

// NewRootCommand builds the command tree. Logs go to errOut.
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "guesser",
		Short:         "Adaptive twenty-questions guessing engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, errOut)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().String("data-dir", "", "snapshot directory (overrides GUESSER_DATA_DIR)")
	root.PersistentFlags().String("log-level", "", "log level (overrides GUESSER_LOG_LEVEL)")

	root.AddCommand(
		a.seedCommand(),
		a.themesCommand(),
		a.playCommand(),
		a.serveCommand(),
		a.experimentCommand(),
	)
	return root
}

// Execute runs the CLI with the process streams and returns the exit code.
func Execute() int {
	if err := NewRootCommand(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		log.Error().Err(err).Msg("guesser failed")
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command, errOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: errOut, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	a.cfg = cfg
	return nil
}

func (a *app) store() (*sqlite.Store, error) {
	return sqlite.Open(a.cfg.DataDir)
}
