package application

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

// ChargeGateway collects one renewal payment. A false result is a decline;
// an error means the gateway could not be asked at all.
type ChargeGateway interface {
	Charge(ctx context.Context, sub *domain.Subscription) (bool, error)
}

// DefaultSuccessRate is the simulated approval probability.
const DefaultSuccessRate = 0.95

// SimulatedGateway approves a charge when a uniform draw exceeds the
// failure probability.
type SimulatedGateway struct {
	mu          sync.Mutex
	draw        func() float64
	successRate float64
}

// NewSimulatedGateway creates a gateway approving about successRate of charges.
func NewSimulatedGateway(successRate float64) *SimulatedGateway {
	return NewSimulatedGatewayWith(successRate, rand.Float64)
}

// NewSimulatedGatewayWith uses draw as the source of uniform [0,1) values.
func NewSimulatedGatewayWith(successRate float64, draw func() float64) *SimulatedGateway {
	if successRate < 0 || successRate > 1 {
		successRate = DefaultSuccessRate
	}
	return &SimulatedGateway{draw: draw, successRate: successRate}
}

func (g *SimulatedGateway) Charge(ctx context.Context, _ *domain.Subscription) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.mu.Lock()
	v := g.draw()
	g.mu.Unlock()
	return v > 1-g.successRate, nil
}
