package mcp

import (
	"github.com/felixgeelhaar/billora/adapter/cli"
	"github.com/felixgeelhaar/billora/internal/app"
)

// NewCLIApp exposes the container's services to the CLI and MCP adapters.
func NewCLIApp(container *app.Container) *cli.App {
	return &cli.App{
		Billing:   container.Billing,
		Renewals:  container.Renewals,
		Sweeper:   container.Sweeper,
		Scheduler: container.Scheduler,
		Migrate:   container.Migrate,
	}
}
