package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"mediashare/internal/platform/config"
	"mediashare/internal/platform/httpserver"
	"mediashare/internal/platform/logger"
	"mediashare/internal/platform/tracing"
)

// main wires dependencies and runs the API, metrics and outbox relay until a
// signal arrives. Business logic lives in internal/registry.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, "mediashare")
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	api := httpserver.New(cfg.Server.Addr, app.Router())
	metricsSrv := httpserver.New(cfg.Server.MetricsAddr, app.MetricsRouter())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting mediashare", "addr", cfg.Server.Addr, "env", cfg.Environment)
		return httpserver.Run(gctx, api, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		log.Info("serving metrics", "addr", cfg.Server.MetricsAddr)
		return httpserver.Run(gctx, metricsSrv, cfg.Server.ShutdownTimeout)
	})
	if app.relay != nil {
		g.Go(func() error {
			return app.relay.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
