package cli

import (
	"context"

	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
)

// App holds the CLI application dependencies.
type App struct {
	Billing   *billingApp.Service
	Renewals  *billingApp.RenewalService
	Sweeper   *billingApp.Sweeper
	Scheduler *billingApp.Scheduler

	// Migrate applies pending schema migrations.
	Migrate func(ctx context.Context) error
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
