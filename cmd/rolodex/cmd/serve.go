package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/rolodex/internal/config"
	"github.com/Aman-CERP/rolodex/internal/logging"
	"github.com/Aman-CERP/rolodex/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Start the HTTP API.

Stored address books are restored from the contact store before the
server accepts requests. Endpoints:

  PUT    /v1/users/{user}/contacts        upsert a JSON array of contacts
  DELETE /v1/users/{user}/contacts/{id}   delete one contact
  GET    /v1/users/{user}/search?q=&k=    search
  GET    /v1/cache/stats                  result cache counters
  GET    /healthz                         liveness
  GET    /metrics                         Prometheus metrics`,
		Example: `  rolodex serve
  rolodex serve --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()
	if !global.debug {
		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.Server.LogLevel
		l, cleanup, err := logging.Setup(logCfg)
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		defer cleanup()
		logger = l
	}

	return withDataLock(cfg, func() error {
		opts := persistentOptions(cfg)
		opts.telemetryPath = telemetryPath(cfg)
		opts.prometheus = true

		a, err := newApp(ctx, cfg, logger, opts)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		logger.Info("serve_ready",
			slog.Int("users_restored", a.restored),
			slog.String("embedder", a.embedder.ModelName()),
			slog.Bool("reasoning", a.reasoner != nil))

		srv, err := server.New(a.engine, a.metrics, serverConfig(cfg), logger)
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx)
	})
}
