package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionRepository persists subscriptions. Save inserts new aggregates
// and updates existing ones with an optimistic version check.
type SubscriptionRepository interface {
	Save(ctx context.Context, s *Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	FindAll(ctx context.Context) ([]*Subscription, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)
	FindByStatus(ctx context.Context, status SubscriptionStatus) ([]*Subscription, error)
	// FindDue returns active auto-renewing subscriptions with nextChargeDate <= asOf.
	FindDue(ctx context.Context, asOf time.Time) ([]*Subscription, error)
	// FindDelinquentCandidates returns active subscriptions with nextChargeDate < before.
	FindDelinquentCandidates(ctx context.Context, before time.Time) ([]*Subscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// InvoiceRepository persists invoices.
type InvoiceRepository interface {
	Save(ctx context.Context, inv *Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	FindAll(ctx context.Context) ([]*Invoice, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*Invoice, error)
	FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*Invoice, error)
	FindByStatus(ctx context.Context, status InvoiceStatus) ([]*Invoice, error)
	FindByIssueDateRange(ctx context.Context, from, to time.Time) ([]*Invoice, error)
	FindByTotalRange(ctx context.Context, min, max decimal.Decimal) ([]*Invoice, error)
	// FindOverdue returns pending invoices with dueDate < asOf.
	FindOverdue(ctx context.Context, asOf time.Time) ([]*Invoice, error)
	PendingTotal(ctx context.Context) (decimal.Decimal, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PlanRepository persists plans.
type PlanRepository interface {
	Save(ctx context.Context, p *Plan) error
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	FindAll(ctx context.Context) ([]*Plan, error)
	FindActive(ctx context.Context) ([]*Plan, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CountryResolver returns the billing country from the owner's profile, or
// "" when the user has no profile or no country.
type CountryResolver interface {
	CountryFor(ctx context.Context, userID uuid.UUID) (string, error)
}
