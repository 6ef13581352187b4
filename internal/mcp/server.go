// Package mcp hosts the billing tools over MCP's streamable HTTP transport.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/middleware"

	"github.com/felixgeelhaar/billora/adapter/cli"
	mcplocal "github.com/felixgeelhaar/billora/adapter/mcp"
	"github.com/felixgeelhaar/billora/pkg/config"
)

// NewServer registers the billing tools, resources and prompts. Only tool
// registration is fatal.
func NewServer(app *cli.App, logger *slog.Logger) (*mcpgo.Server, error) {
	if app == nil {
		return nil, errors.New("mcp: app is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	srv := mcpgo.NewServer(mcpgo.ServerInfo{
		Name:         "billora-mcp",
		Version:      cli.Version,
		Capabilities: mcpgo.Capabilities{Tools: true, Resources: true, Prompts: true},
	})
	deps := mcplocal.ToolDependencies{App: app}
	if err := mcplocal.RegisterCLITools(srv, deps); err != nil {
		return nil, err
	}
	if err := mcplocal.RegisterResources(srv, deps); err != nil {
		logger.Warn("mcp resources unavailable", "error", err)
	}
	if err := mcplocal.RegisterPrompts(srv, deps); err != nil {
		logger.Warn("mcp prompts unavailable", "error", err)
	}
	return srv, nil
}

// Serve blocks until ctx is canceled. A non-empty MCP_AUTH_TOKEN puts bearer
// authentication in front of the default middleware stack.
func Serve(ctx context.Context, cfg *config.Config, app *cli.App, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("mcp: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	srv, err := NewServer(app, logger)
	if err != nil {
		return err
	}

	log := slogAdapter{logger}
	stack := middleware.DefaultStack(log)
	if cfg.MCPAuthToken == "" {
		logger.Warn("MCP_AUTH_TOKEN is empty; billing tools are open to any caller")
	} else {
		tokens := middleware.StaticTokens(map[string]*middleware.Identity{
			cfg.MCPAuthToken: {ID: "mcp", Name: "billing-operator"},
		})
		auth := middleware.Auth(middleware.BearerTokenAuthenticator(tokens), middleware.WithAuthLogger(log))
		stack = append([]middleware.Middleware{auth}, stack...)
	}

	logger.Info("mcp server listening", "addr", cfg.MCPAddr, "version", cli.BuildInfo())
	return mcpgo.ServeHTTPWithMiddleware(ctx, srv, cfg.MCPAddr, nil, mcpgo.WithMiddleware(stack...))
}

// slogAdapter satisfies middleware.Logger.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Debug(msg string, f ...middleware.Field) { a.l.Debug(msg, args(f)...) }
func (a slogAdapter) Info(msg string, f ...middleware.Field)  { a.l.Info(msg, args(f)...) }
func (a slogAdapter) Warn(msg string, f ...middleware.Field)  { a.l.Warn(msg, args(f)...) }
func (a slogAdapter) Error(msg string, f ...middleware.Field) { a.l.Error(msg, args(f)...) }

func args(fields []middleware.Field) []any {
	out := make([]any, 0, 2*len(fields))
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}
