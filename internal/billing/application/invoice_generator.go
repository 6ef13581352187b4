package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
)

// MonthName returns the uppercase English name of t's month, e.g. OCTOBER.
func MonthName(t time.Time) string {
	return strings.ToUpper(t.Month().String())
}

// InvoiceGenerator builds the paid invoice for one renewal. It draws an
// invoice number and reads reference data; it persists nothing.
type InvoiceGenerator struct {
	plans    domain.PlanRepository
	country  domain.CountryResolver
	taxes    *TaxTable
	numberer *InvoiceNumberer
	clock    sharedDomain.Clock
}

// NewInvoiceGenerator wires the generator's collaborators.
func NewInvoiceGenerator(plans domain.PlanRepository, country domain.CountryResolver, taxes *TaxTable, numberer *InvoiceNumberer, clock sharedDomain.Clock) *InvoiceGenerator {
	return &InvoiceGenerator{
		plans:    plans,
		country:  country,
		taxes:    taxes,
		numberer: numberer,
		clock:    clock,
	}
}

// Generate produces the invoice settling sub's current charge.
func (g *InvoiceGenerator) Generate(ctx context.Context, sub *domain.Subscription) (*domain.Invoice, error) {
	plan, err := g.plans.FindByID(ctx, sub.PlanID())
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %s: %w", sub.PlanID(), err)
	}

	subtotal := sub.Price()
	if subtotal.IsZero() {
		subtotal = plan.MonthlyPrice
	}

	country := ""
	if g.country != nil {
		country, err = g.country.CountryFor(ctx, sub.UserID())
		if err != nil {
			return nil, fmt.Errorf("failed to resolve billing country: %w", err)
		}
	}
	if strings.TrimSpace(country) == "" {
		country = g.taxes.DefaultCountry()
	}

	number, err := g.numberer.Next(ctx)
	if err != nil {
		return nil, err
	}

	now := g.clock.Now()
	return domain.IssueInvoice(domain.IssueParams{
		Number:         number,
		SubscriptionID: sub.ID(),
		Subtotal:       subtotal,
		TaxRate:        g.taxes.RateFor(country),
		Concept:        fmt.Sprintf("Suscripción %s - %s", plan.Name, MonthName(sub.NextChargeDate())),
		IssueDate:      sharedDomain.Today(g.clock),
		PaidAt:         &now,
	}, now), nil
}
