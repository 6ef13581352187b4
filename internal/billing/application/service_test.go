package application

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

type serviceFixture struct {
	clock  *sharedDomain.FixedClock
	plans  *memPlans
	subs   *memSubscriptions
	invs   *memInvoices
	outbox *memOutbox
	svc    *Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		clock:  sharedDomain.NewFixedClock(renewalNow),
		plans:  newMemPlans(),
		subs:   newMemSubscriptions(),
		invs:   newMemInvoices(),
		outbox: &memOutbox{},
	}
	f.svc = NewService(f.plans, f.subs, f.invs, f.outbox, nil, nil, nil, f.clock)
	return f
}

func (f *serviceFixture) issue(t *testing.T, subID uuid.UUID, number, subtotal string, issued time.Time, paid bool) *domain.Invoice {
	t.Helper()
	params := domain.IssueParams{
		Number:         number,
		SubscriptionID: subID,
		Subtotal:       decimal.RequireFromString(subtotal),
		TaxRate:        decimal.NewFromInt(21),
		Concept:        "Suscripción Basic - OCTOBER",
		IssueDate:      issued,
	}
	if paid {
		params.PaidAt = &issued
	}
	inv := domain.IssueInvoice(params, issued)
	require.NoError(t, f.invs.Save(context.Background(), inv))
	return inv
}

func TestService_PlanLifecycle(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	plan, err := f.svc.CreatePlan(ctx, PlanInput{
		Name:         " Premium ",
		Tier:         "premium",
		MonthlyPrice: decimal.RequireFromString("19.999"),
		Features:     []string{"sso", "api"},
		MaxUsers:     5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Premium", plan.Name)
	assert.Equal(t, "20.00", plan.MonthlyPrice.StringFixed(2))
	assert.True(t, plan.Active)

	inactive := false
	updated, err := f.svc.UpdatePlan(ctx, plan.ID, PlanInput{Name: "Premium", Tier: "premium", MonthlyPrice: decimal.NewFromInt(25), Active: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	active, err := f.svc.ListActivePlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = f.svc.CreatePlan(ctx, PlanInput{Name: "Odd", Tier: "platinum"})
	assert.ErrorIs(t, err, domain.ErrInvalidTier)

	require.NoError(t, f.svc.DeletePlan(ctx, plan.ID))
	_, err = f.svc.GetPlan(ctx, plan.ID)
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestService_SubscribeDefaults(t *testing.T) {
	f := newServiceFixture()
	ctx := observability.WithActorID(context.Background(), "admin@billora.test")
	plan, err := f.svc.CreatePlan(ctx, PlanInput{Name: "Basic", Tier: "basic", MonthlyPrice: decimal.RequireFromString("9.99")})
	require.NoError(t, err)

	userID := uuid.New()
	sub, err := f.svc.Subscribe(ctx, SubscribeInput{UserID: userID, PlanID: plan.ID})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, sub.Status())
	assert.True(t, sub.AutoRenew())
	assert.Equal(t, "9.99", sub.Price().StringFixed(2))
	assert.Equal(t, day(2025, 10, 15), sub.StartDate())
	assert.Equal(t, day(2025, 11, 15), sub.NextChargeDate())
	assert.Equal(t, "admin@billora.test", sub.CreatedBy())
	assert.Equal(t, []string{domain.RoutingKeySubscriptionCreated}, f.outbox.keys(sub.ID()))

	_, err = f.svc.UpdatePlan(ctx, plan.ID, PlanInput{Name: "Basic", Tier: "basic", MonthlyPrice: decimal.NewFromInt(50)})
	require.NoError(t, err)
	stored, err := f.svc.GetSubscription(ctx, sub.ID())
	require.NoError(t, err)
	assert.Equal(t, "9.99", stored.Price().StringFixed(2), "plan edits never reach existing subscribers")

	custom := decimal.RequireFromString("4.50")
	discounted, err := f.svc.Subscribe(ctx, SubscribeInput{UserID: userID, PlanID: plan.ID, Price: &custom})
	require.NoError(t, err)
	assert.Equal(t, "4.50", discounted.Price().StringFixed(2))

	mine, err := f.svc.ListSubscriptionsByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = f.svc.Subscribe(ctx, SubscribeInput{UserID: userID, PlanID: uuid.New()})
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestService_ChangeSubscriptionStatus(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	plan, err := f.svc.CreatePlan(ctx, PlanInput{Name: "Basic", Tier: "basic", MonthlyPrice: decimal.NewFromInt(10)})
	require.NoError(t, err)
	sub, err := f.svc.Subscribe(ctx, SubscribeInput{UserID: uuid.New(), PlanID: plan.ID})
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	cancelled, err := f.svc.ChangeSubscriptionStatus(ctx, sub.ID(), "CANCELLED", "too expensive")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status())
	require.NotNil(t, cancelled.CancelledAt())
	assert.Equal(t, "too expensive", cancelled.CancelReason())
	require.NotNil(t, cancelled.EndDate())
	assert.Equal(t, day(2025, 10, 17), *cancelled.EndDate())
	assert.False(t, cancelled.AutoRenew())
	assert.Equal(t, SystemActor, cancelled.UpdatedBy())

	byStatus, err := f.svc.ListSubscriptionsByStatus(ctx, "cancelled")
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	_, err = f.svc.ChangeSubscriptionStatus(ctx, sub.ID(), "paused", "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	require.NoError(t, f.svc.DeleteSubscription(ctx, sub.ID()))
	_, err = f.svc.GetSubscription(ctx, sub.ID())
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestService_InvoiceQueries(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	subID := uuid.New()

	old := f.issue(t, subID, "FAC-202508-00001", "10.00", day(2025, 8, 1), false)
	recent := f.issue(t, subID, "FAC-202510-00002", "50.00", day(2025, 10, 10), false)
	paid := f.issue(t, subID, "FAC-202510-00003", "9.99", day(2025, 10, 12), true)

	overdue, err := f.svc.ListOverdue(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, old.ID(), overdue[0].ID())

	inRange, err := f.svc.ListInvoicesByIssueDate(ctx, day(2025, 10, 1), day(2025, 10, 12))
	require.NoError(t, err)
	assert.Len(t, inRange, 2)

	_, err = f.svc.ListInvoicesByIssueDate(ctx, day(2025, 10, 12), day(2025, 10, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	byTotal, err := f.svc.ListInvoicesByTotal(ctx, decimal.NewFromInt(12), decimal.NewFromInt(13))
	require.NoError(t, err)
	require.Len(t, byTotal, 2)
	assert.Equal(t, old.ID(), byTotal[0].ID())
	assert.Equal(t, paid.ID(), byTotal[1].ID())

	pending, err := f.svc.PendingTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "72.60", pending.StringFixed(2))

	settled, err := f.svc.MarkInvoicePaid(ctx, recent.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, settled.Status())
	assert.Equal(t, "60.50", settled.Total().StringFixed(2), "totals are never recomputed")
	assert.Equal(t, []string{domain.RoutingKeyInvoiceIssued, domain.RoutingKeyInvoicePaid}, f.outbox.keys(recent.ID()))

	refunded, err := f.svc.ChangeInvoiceStatus(ctx, paid.ID(), "refunded")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceRefunded, refunded.Status())

	byStatus, err := f.svc.ListInvoicesByStatus(ctx, "paid")
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	_, err = f.svc.ListInvoicesByStatus(ctx, "lost")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	require.NoError(t, f.svc.DeleteInvoice(ctx, old.ID()))
	_, err = f.svc.GetInvoice(ctx, old.ID())
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)

	found, err := f.svc.GetInvoiceByNumber(ctx, "FAC-202510-00003")
	require.NoError(t, err)
	assert.Equal(t, paid.ID(), found.ID())
}

func TestService_TaxRates(t *testing.T) {
	f := newServiceFixture()
	rates := f.svc.TaxRates()
	assert.Equal(t, "16", rates["México"].String())
}

func TestWriteInvoicesCSV(t *testing.T) {
	f := newServiceFixture()
	inv := f.issue(t, uuid.New(), "FAC-202510-00007", "9.99", day(2025, 10, 15), true)

	var buf bytes.Buffer
	require.NoError(t, WriteInvoicesCSV(&buf, []*domain.Invoice{inv}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{
		"number", "subscription_id", "issue_date", "due_date", "paid_at",
		"subtotal", "tax_rate", "tax_amount", "total", "status", "concept",
	}, records[0])
	assert.Equal(t, "FAC-202510-00007", records[1][0])
	assert.Equal(t, "2025-11-14", records[1][3])
	assert.Equal(t, "12.09", records[1][8])
	assert.Equal(t, "paid", records[1][9])
	assert.Equal(t, "Suscripción Basic - OCTOBER", records[1][10])
}
