package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"presence/internal/api"
	"presence/internal/attendance"
	"presence/internal/cache"
	"presence/internal/config"
	"presence/internal/directory"
	"presence/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger(os.Stdout))

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		slog.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := attendance.NewService(
		attendance.NewRepository(cfg.DataCSV),
		directory.NewRepository(cfg.DataXML),
		cache.New(cfg.CacheTTL),
	)

	bus := newBus(cfg)
	defer bus.Close()

	go queue.Listen(ctx, bus, time.Second, func(msg queue.Message) {
		if msg.Type != queue.TypeCacheReset {
			slog.Debug("ignoring bus message", "type", msg.Type, "id", msg.ID)
			return
		}
		slog.Info("reset requested", "id", msg.ID)
		svc.Reset()
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(api.NewHandler(svc, bus), cfg.RateLimitPerMin),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", cfg.HTTPPort, "csv", cfg.DataCSV, "xml", cfg.DataXML, "cache_ttl", cfg.CacheTTL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server forced shutdown", "error", err)
	}
	slog.Info("server exited")
	return nil
}

func newBus(cfg config.App) queue.Queue {
	if cfg.RefreshBackend == "redis" {
		return queue.NewRedisPubSub(cfg.RedisAddr, cfg.RefreshChannel)
	}
	return queue.NewInMemory(16)
}
