package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"guesser/communication/server"
	"guesser/game"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP play API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			store, err := a.store()
			if err != nil {
				return err
			}
			options, err := a.cfg.GameOptions()
			if err != nil {
				return err
			}
			srv := server.New(store,
				server.WithGameOptions(options...),
				server.WithIdleTimeout(a.cfg.IdleTimeout),
				server.WithAllocator(game.NewSequentialAllocator(a.cfg.MaxSessionID)),
			)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return srv.RunJanitor(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides GUESSER_HTTP_ADDR)")
	return cmd
}
