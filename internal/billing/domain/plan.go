package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanTier ranks plans for display and entitlement.
type PlanTier string

const (
	TierBasic      PlanTier = "basic"
	TierPremium    PlanTier = "premium"
	TierEnterprise PlanTier = "enterprise"
)

// ParsePlanTier validates a persisted or user-supplied tier.
func ParsePlanTier(s string) (PlanTier, error) {
	switch t := PlanTier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierBasic, TierPremium, TierEnterprise:
		return t, nil
	default:
		return "", ErrInvalidTier
	}
}

// Plan is reference data. Subscriptions snapshot its price when created, so
// later price edits never reach existing subscribers.
type Plan struct {
	ID              uuid.UUID
	Name            string
	Tier            PlanTier
	MonthlyPrice    decimal.Decimal
	Description     string
	Features        []string
	MaxUsers        int
	StorageGB       int
	PrioritySupport bool
	Active          bool
	DisplayOrder    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPlan creates an active plan.
func NewPlan(name string, tier PlanTier, monthlyPrice decimal.Decimal, now time.Time) (*Plan, error) {
	p := &Plan{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(name),
		Tier:         tier,
		MonthlyPrice: RoundMoney(monthlyPrice),
		Active:       true,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the plan's invariants.
func (p *Plan) Validate() error {
	if p.Name == "" {
		return ErrEmptyPlanName
	}
	if _, err := ParsePlanTier(string(p.Tier)); err != nil {
		return err
	}
	if p.MonthlyPrice.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}
