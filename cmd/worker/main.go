// Command worker runs the background side of billora: the daily renewal
// scheduler, the outbox relay and the notice consumer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/billora/internal/app"
	"github.com/felixgeelhaar/billora/pkg/config"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLoggerForEnv(cfg.AppEnv, cfg.LogLevel).With("component", "worker")

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func run(parent context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	relay := container.OutboxProcessor
	if err := relay.Start(ctx); err != nil {
		return err
	}
	defer relay.Stop()

	if err := container.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer container.Scheduler.Stop()

	consumer, err := container.NewEventConsumer(ctx)
	if err != nil {
		return err
	}
	if consumer != nil {
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("event consumer stopped", "error", err)
				cancel()
			}
		}()
	}

	every(ctx, cfg.OutboxCleanupInterval, func() {
		deleted, err := container.OutboxRepo.DeleteOld(ctx, cfg.OutboxRetentionDays)
		switch {
		case err != nil:
			logger.Error("outbox cleanup failed", "error", err)
		case deleted > 0:
			logger.Info("outbox cleaned", "deleted", deleted, "retention_days", cfg.OutboxRetentionDays)
		}
	})
	every(ctx, cfg.OutboxStatsInterval, func() {
		s := relay.GetStats()
		logger.Info("outbox stats",
			"published", s.PublishedCount,
			"failed", s.FailedCount,
			"dead", s.DeadCount,
			"lag_seconds", s.LagSeconds,
			"last_error", s.LastError,
		)
	})

	if cfg.WorkerHealthAddr != "" {
		go serveHealth(ctx, cfg.WorkerHealthAddr, healthRoutes(container), logger)
	}

	logger.Info("worker started", "run_at", cfg.RenewalRunAt, "timezone", cfg.RenewalTimezone)
	<-ctx.Done()
	logger.Info("shutting down worker")
	return nil
}

// every calls fn on each tick of interval until ctx ends.
func every(ctx context.Context, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func healthRoutes(c *app.Container) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s := c.OutboxProcessor.GetStats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"outbox":   s,
			"breaker":  c.Gateway.State(),
			"next_run": c.Scheduler.NextRun(time.Now()),
		})
	})
	mux.Handle("/livez", observability.LivenessHandler())
	mux.Handle("/readyz", c.Health.ReadinessHandler())
	mux.Handle("/metrics", c.Metrics.Handler())
	return mux
}

func serveHealth(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("health server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("health server error", "error", err)
	}
}
