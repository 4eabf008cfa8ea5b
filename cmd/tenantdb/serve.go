package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/tenantdb/internal/app"
	httpserver "github.com/dropDatabas3/tenantdb/internal/http"
	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
)

func serveCmd(g *globals) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP (admin + probe) y la política de discovery",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(cfg, app.Deps{})
			if err != nil {
				return err
			}
			defer a.Close()

			// si el tenant default no responde, no arrancamos
			if err := a.Start(ctx); err != nil {
				return err
			}

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error { return a.RunDiscovery(ctx) })
			eg.Go(func() error { return a.RunJanitor(ctx) })
			eg.Go(func() error {
				return httpserver.Serve(ctx, cfg.Server.Addr, a.Handler(), cfg.Server.ShutdownTimeout)
			})
			err = eg.Wait()
			logger.L().Info("tenantdb stopped", logger.Count(a.Registry.Len()))
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Dirección de escucha (pisa server.addr)")
	return cmd
}

// withApp arranca la app (tenant default incluido) para comandos one-shot.
func withApp(ctx context.Context, g *globals, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, app.Deps{})
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}
