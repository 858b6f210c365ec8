package commands

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/typesynth/pkg/api"
	"github.com/openfroyo/typesynth/pkg/dsl"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve search, execution and run history over HTTP.

Endpoints:
  POST /v1/search                  plans between two types
  POST /v1/execute                 plan and run
  GET  /v1/runs[/{id}]             stored runs
  GET  /v1/runs/{id}/provenance    provenance document
  GET  /v1/catalog/dot             catalog graph
  GET  /healthz, /metrics`,
		Example: `  typesynth serve --catalog ghg.dsl --addr :9090 --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), appNeeds{catalog: true, store: true, policy: true})
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Server.WatchCatalog = watch
			}

			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			if a.cfg.Server.WatchCatalog {
				if err := api.WatchCatalog(ctx, svc, a.cfg.Catalog, dsl.Load); err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr:         a.cfg.Server.Addr,
				Handler:      api.NewServer(svc, a.tel).Handler(),
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
				BaseContext:  func(_ net.Listener) context.Context { return ctx },
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", srv.Addr).Str("catalog", a.cfg.Catalog).Msg("Serving API")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("Shutting down API server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address (overrides config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the catalog when its file changes")

	return cmd
}
