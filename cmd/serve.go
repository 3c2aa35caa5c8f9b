package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"markalloc/internal/bootstrap"
	"markalloc/internal/bootstrap/logging"
	"markalloc/internal/errs"
	"markalloc/internal/transport/httpapi"
	"markalloc/internal/usecase/allocation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the allocation HTTP API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *allocation.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := httpapi.NewApp(ctx, svc)
		g, gctx := errgroup.WithContext(sigCtx)
		g.Go(func() error {
			logging.Info(ctx, "http server listening", slog.String("addr", addr))
			if err := server.Listen(addr); err != nil {
				return errs.Wrapf(err, "listen on %s", addr)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logging.Info(ctx, "shutting down http server")
			if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
				return errs.Wrap(err, "shutdown http server")
			}
			return nil
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error(ctx, "http server failed", slog.Any("err", errs.Loggable(err)))
			return err
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address; defaults to http.addr")
}
