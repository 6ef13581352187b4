package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/billora/adapter/cli"
	cliBilling "github.com/felixgeelhaar/billora/adapter/cli/billing"
	"github.com/felixgeelhaar/billora/adapter/cli/plan"
	"github.com/felixgeelhaar/billora/internal/app"
	mcpinternal "github.com/felixgeelhaar/billora/internal/mcp"
	"github.com/felixgeelhaar/billora/pkg/config"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli.AddCommand(cliBilling.Cmd)
	cli.AddCommand(plan.Cmd)

	cfg, err := config.Load()
	if err != nil {
		// help and version still work without a usable environment
		logger := newLogger("development", "info")
		logger.Warn("configuration invalid, running without database", "error", err)
		return execute(ctx)
	}

	logger := newLogger(cfg.AppEnv, cfg.LogLevel)
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			return 1
		}
		logger.Warn("container unavailable, running in limited mode", "error", err)
		return execute(ctx)
	}
	defer container.Close()

	if cfg.OutboxProcessorEnabled {
		if err := container.OutboxProcessor.Start(ctx); err != nil {
			logger.Warn("outbox processor not started", "error", err)
		}
		defer container.OutboxProcessor.Stop()
	}
	cli.SetApp(mcpinternal.NewCLIApp(container))
	return execute(ctx)
}

func newLogger(appEnv, level string) *slog.Logger {
	logCfg := observability.EnvLogConfig(appEnv, level)
	logCfg.LevelVar = cli.LogLevel
	logger := observability.NewLogger(logCfg)
	cli.SetLogger(logger)
	return logger
}

func execute(ctx context.Context) int {
	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
