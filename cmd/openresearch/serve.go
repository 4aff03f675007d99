package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rhuss/openresearch/pkg/auth"
	"github.com/rhuss/openresearch/pkg/config"
	"github.com/rhuss/openresearch/pkg/transport/mcp"
	transporthttp "github.com/rhuss/openresearch/pkg/transport/http"
)

func newServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the research API over HTTP",
		Long: `Serve the research API over HTTP until SIGINT or SIGTERM.

Routes:
  POST /api/research/start             start a task
  GET  /api/research/{id}              task status and results
  GET  /api/research/{id}/events       task updates as Server-Sent Events
  GET  /api/research/{id}/report.html  rendered report
  POST /api/research/{id}/confirm      approve the search plan
  POST /api/research/{id}/clarify      answer the clarifying questions
  GET  /api/settings                   provider settings (keys masked)
  POST /api/settings                   partial settings update
  GET  /api/settings/{provider}/models model listing
  GET  /health, /metrics and the MCP endpoint (default /mcp)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "listen port (overrides server.port)")
	return cmd
}

// serve runs the HTTP server until ctx is done, then shuts the server and
// the engine down within server.shutdown_timeout.
func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	chain, err := authChain(cfg.Auth)
	if err != nil {
		return err
	}

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}
	bypass := append([]string{}, auth.DefaultBypassEndpoints...)
	if metricsPath != "" {
		bypass = append(bypass, metricsPath)
	}

	srv := transporthttp.NewServer(a.engine, a.settings,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		transporthttp.WithMetricsPath(metricsPath),
		transporthttp.WithMiddleware(auth.Middleware(chain, bypass)),
	)
	if cfg.MCP.Enabled {
		srv.Mount(cfg.MCP.Path, mcp.Handler(a.engine, version))
		slog.Info("mcp endpoint enabled", "path", cfg.MCP.Path)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.engine.Shutdown(shutdownCtx); err != nil {
			slog.Warn("engine shutdown cut running stages short", "error", err)
		}
		return nil
	})
	return g.Wait()
}
