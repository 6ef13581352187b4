// Command mcp exposes billora's billing operations to MCP clients over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/billora/internal/app"
	mcpinternal "github.com/felixgeelhaar/billora/internal/mcp"
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
	logger := observability.NewLoggerForEnv(cfg.AppEnv, cfg.LogLevel).With("component", "mcp")

	if err := serve(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()
	return mcpinternal.Serve(ctx, cfg, mcpinternal.NewCLIApp(container), logger)
}
