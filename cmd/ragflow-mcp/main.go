// Command ragflow-mcp serves RAGFlow retrieval as MCP tools over stdio or
// streamable HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/jonwraymond/toolragflow/config"
	"github.com/jonwraymond/toolragflow/registry"
	"github.com/jonwraymond/toolragflow/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fs := pflag.NewFlagSet("ragflow-mcp", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "ragflow-mcp: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(config.LoadOptions{Flags: fs})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragflow-mcp: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "ragflow-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger, zapLogger := telemetry.NewLogger(cfg.Log.Telemetry(), os.Stderr)
	defer func() { _ = zapLogger.Sync() }()
	slog.SetDefault(logger)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(promRegistry)

	reg, err := registry.New(registry.Config{
		App:      cfg,
		Logger:   logger,
		Metrics:  metrics,
		Gatherer: promRegistry,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Error("registry close failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting ragflow-mcp",
		"version", cfg.Server.Version,
		"transport", cfg.Server.Transport,
		"base_url", cfg.RAGFlow.BaseURL)

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		return serveHTTP(ctx, logger, cfg.Server.Addr, reg.Handler())
	default:
		if cfg.Server.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", telemetry.Handler(promRegistry))
			go func() {
				if err := serveHTTP(ctx, logger, cfg.Server.MetricsAddr, mux); err != nil {
					logger.Error("metrics listener failed", "error", err)
				}
			}()
		}
		return reg.ServeStdio(ctx)
	}
}

// serveHTTP runs handler on addr until ctx is cancelled.
func serveHTTP(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listener started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down http listener", "addr", addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s: %w", addr, err)
	}
	return nil
}
