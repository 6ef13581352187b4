// Package gateway decorates charge gateways with failure isolation.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/billora/internal/billing/application"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

// ErrGatewayUnavailable is returned while the breaker is open.
var ErrGatewayUnavailable = errors.New("charge gateway unavailable")

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive gateway errors that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// HalfOpenRequests is how many trial requests may pass while half-open.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig opens after five consecutive errors for thirty seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, OpenTimeout: 30 * time.Second, HalfOpenRequests: 1}
}

// Breaker guards a ChargeGateway. Declines are ordinary answers and never
// trip it; only gateway errors do. While open, charges fail fast without
// reaching the gateway.
type Breaker struct {
	next    application.ChargeGateway
	breaker *gobreaker.CircuitBreaker[bool]
}

// NewBreaker wraps next.
func NewBreaker(next application.ChargeGateway, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	defaults := DefaultBreakerConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = defaults.HalfOpenRequests
	}
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        "charge-gateway",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &Breaker{next: next, breaker: gobreaker.NewCircuitBreaker[bool](settings)}
}

func (b *Breaker) Charge(ctx context.Context, sub *domain.Subscription) (bool, error) {
	approved, err := b.breaker.Execute(func() (bool, error) {
		return b.next.Charge(ctx, sub)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return approved, err
}

// State reports the breaker state for health output.
func (b *Breaker) State() string {
	return b.breaker.State().String()
}
