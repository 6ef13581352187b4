// Package mcp exposes the billing operations as MCP tools, resources and prompts.
package mcp

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/billora/adapter/cli"
)

// ToolDependencies provides handlers and context for MCP tools.
type ToolDependencies struct {
	App *cli.App
}

// RegisterCLITools registers MCP tools that mirror CLI functionality.
func RegisterCLITools(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return errors.New("server is required")
	}
	if deps.App == nil {
		return errors.New("app is required")
	}

	registerCoreTools(srv, deps)
	registerBillingTools(srv, deps)
	return nil
}

func registerCoreTools(srv *mcp.Server, deps ToolDependencies) {
	srv.Tool("cli.health").
		Description("Report whether the billing services are wired").
		Handler(func(ctx context.Context, input struct{}) (map[string]any, error) {
			app := deps.App
			return map[string]any{
				"billing":   app.Billing != nil,
				"renewals":  app.Renewals != nil,
				"sweeper":   app.Sweeper != nil,
				"scheduler": app.Scheduler != nil,
				"version":   cli.Version,
			}, nil
		})
}
