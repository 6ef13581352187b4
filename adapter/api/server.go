// Package api serves the billing back office over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/felixgeelhaar/billora/internal/audit"
	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
	identityApp "github.com/felixgeelhaar/billora/internal/identity/application"
	paymentApp "github.com/felixgeelhaar/billora/internal/payment/application"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

// Server is the HTTP API server.
type Server struct {
	router http.Handler
	server *http.Server
	logger *slog.Logger
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Deps are the services behind the routes.
type Deps struct {
	Identity *identityApp.Service
	Billing  *billingApp.Service
	Renewals *billingApp.RenewalService
	Payments *paymentApp.Service
	Audit    *audit.SQLStore
	Health   *observability.HealthRegistry
	// Metrics serves /metrics. Nil disables the endpoint.
	Metrics http.Handler
}

// NewServer wires the router.
func NewServer(cfg ServerConfig, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{logger: logger}
	s.router = NewRouter(deps, logger)
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// NewRouter builds the chi router with middleware and every route.
func NewRouter(deps Deps, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(requestContext)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(prometheusMiddleware)

	r.Get("/health", healthHandler(deps.Health))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", newAuthHandler(deps.Identity).routes())

		r.Group(func(r chi.Router) {
			r.Use(authenticate(deps.Identity))
			r.Mount("/users", newUserHandler(deps.Identity).routes())
			r.Mount("/plans", newPlanHandler(deps.Billing).routes())
			r.Mount("/subscriptions", newSubscriptionHandler(deps.Billing, deps.Renewals).routes())
			r.Mount("/invoices", newInvoiceHandler(deps.Billing).routes())
			r.Mount("/payment-methods", newPaymentHandler(deps.Payments).routes())
			r.Mount("/audit", newAuditHandler(deps.Audit).routes())
		})
	})
	return r
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

func healthHandler(registry *observability.HealthRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			writeJSON(w, http.StatusOK, map[string]string{
				"status": "healthy",
				"time":   time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
		registry.ReadinessHandler().ServeHTTP(w, r)
	}
}
