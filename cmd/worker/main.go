package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"presence/internal/config"
	"presence/internal/queue"
	"presence/internal/watch"
)

// Worker watches the source files and tells every API replica to drop its
// cache when they change.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger(os.Stdout).With("component", "worker"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, err := newBus(cfg)
	if err != nil {
		slog.Error("worker cannot start", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	if !bus.Healthy(ctx) {
		slog.Warn("refresh bus not reachable, will keep trying", "backend", cfg.RefreshBackend)
	}

	slog.Info("worker started", "interval", cfg.WatchInterval, "csv", cfg.DataCSV, "xml", cfg.DataXML)
	err = watch.New(bus, cfg.WatchInterval, cfg.DataCSV, cfg.DataXML).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
	slog.Info("worker stopped")
}

// newBus returns the shared bus. Only redis reaches other processes.
func newBus(cfg config.App) (queue.Queue, error) {
	if cfg.RefreshBackend != "redis" {
		return nil, fmt.Errorf("refresh backend %q is process-local; set REFRESH_BACKEND=redis", cfg.RefreshBackend)
	}
	return queue.NewRedisPubSub(cfg.RedisAddr, cfg.RefreshChannel), nil
}
