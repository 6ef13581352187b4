package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/testdb"
)

var testNow = time.Date(2025, 10, 15, 10, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func insertUser(t *testing.T, conn database.Connection) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := conn.Exec(context.Background(),
		`INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), id.String()+"@billora.test", "x", database.FormatTimestamp(testNow), database.FormatTimestamp(testNow))
	require.NoError(t, err)
	return id
}

func savedPlan(t *testing.T, repo *PlanRepository, name, price string) *domain.Plan {
	t.Helper()
	plan, err := domain.NewPlan(name, domain.TierBasic, decimal.RequireFromString(price), testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), plan))
	return plan
}

func savedSubscription(t *testing.T, repo *SubscriptionRepository, userID uuid.UUID, plan *domain.Plan, today time.Time) *domain.Subscription {
	t.Helper()
	sub, err := domain.NewSubscription(userID, plan, decimal.Zero, today, testNow, "admin")
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), sub))
	return sub
}

func TestPlanRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewPlanRepository(testdb.Open(t))

	plan, err := domain.NewPlan("Enterprise", domain.TierEnterprise, decimal.RequireFromString("199.90"), testNow)
	require.NoError(t, err)
	plan.Features = []string{"sso", "audit log", "priority, support"}
	plan.MaxUsers = 50
	plan.PrioritySupport = true
	plan.DisplayOrder = 3
	require.NoError(t, repo.Save(ctx, plan))

	loaded, err := repo.FindByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Enterprise", loaded.Name)
	assert.Equal(t, domain.TierEnterprise, loaded.Tier)
	assert.Equal(t, "199.90", loaded.MonthlyPrice.StringFixed(2))
	assert.Equal(t, []string{"sso", "audit log", "priority, support"}, loaded.Features)
	assert.Equal(t, 50, loaded.MaxUsers)
	assert.True(t, loaded.PrioritySupport)
	assert.True(t, loaded.Active)

	loaded.Active = false
	require.NoError(t, repo.Save(ctx, loaded))
	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, plan.ID))
	_, err = repo.FindByID(ctx, plan.ID)
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, plan.ID), domain.ErrPlanNotFound)
}

func TestSubscriptionRepository_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	conn := testdb.Open(t)
	plans := NewPlanRepository(conn)
	repo := NewSubscriptionRepository(conn)
	userID := insertUser(t, conn)
	plan := savedPlan(t, plans, "Basic", "9.99")

	sub := savedSubscription(t, repo, userID, plan, day(2025, 10, 15))
	assert.Equal(t, 1, sub.Version())

	loaded, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	assert.Equal(t, userID, loaded.UserID())
	assert.Equal(t, plan.ID, loaded.PlanID())
	assert.Equal(t, day(2025, 10, 15), loaded.StartDate())
	assert.Equal(t, day(2025, 11, 15), loaded.NextChargeDate())
	assert.Nil(t, loaded.EndDate())
	assert.Equal(t, domain.StatusActive, loaded.Status())
	assert.True(t, loaded.AutoRenew())
	assert.Equal(t, "9.99", loaded.Price().StringFixed(2))
	assert.Equal(t, "admin", loaded.CreatedBy())
	assert.Equal(t, 1, loaded.Version())

	require.NoError(t, loaded.ChangeStatus(domain.StatusCancelled, "moving", testNow.Add(time.Hour), "ops"))
	require.NoError(t, repo.Save(ctx, loaded))
	assert.Equal(t, 2, loaded.Version())

	reloaded, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, reloaded.Status())
	assert.Equal(t, "moving", reloaded.CancelReason())
	require.NotNil(t, reloaded.CancelledAt())
	assert.True(t, reloaded.CancelledAt().Equal(testNow.Add(time.Hour)))
	require.NotNil(t, reloaded.EndDate())
	assert.Equal(t, day(2025, 10, 15), *reloaded.EndDate())
	assert.False(t, reloaded.AutoRenew())

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestSubscriptionRepository_OptimisticVersion(t *testing.T) {
	ctx := context.Background()
	conn := testdb.Open(t)
	repo := NewSubscriptionRepository(conn)
	sub := savedSubscription(t, repo, insertUser(t, conn), savedPlan(t, NewPlanRepository(conn), "Basic", "9.99"), day(2025, 10, 15))

	first, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)

	first.SetAutoRenew(false, testNow, "a")
	require.NoError(t, repo.Save(ctx, first))

	second.SetAutoRenew(true, testNow, "b")
	assert.ErrorIs(t, repo.Save(ctx, second), domain.ErrConcurrentModification)
}

func TestSubscriptionRepository_DueAndDelinquentSelection(t *testing.T) {
	ctx := context.Background()
	conn := testdb.Open(t)
	repo := NewSubscriptionRepository(conn)
	userID := insertUser(t, conn)
	plan := savedPlan(t, NewPlanRepository(conn), "Basic", "9.99")

	// NewSubscription charges one month after the start date.
	dueToday := savedSubscription(t, repo, userID, plan, day(2025, 9, 15))
	lapsed := savedSubscription(t, repo, userID, plan, day(2025, 9, 1))
	future := savedSubscription(t, repo, userID, plan, day(2025, 9, 16))
	manual := savedSubscription(t, repo, userID, plan, day(2025, 9, 1))
	manual.SetAutoRenew(false, testNow, "admin")
	require.NoError(t, repo.Save(ctx, manual))
	suspended := savedSubscription(t, repo, userID, plan, day(2025, 9, 1))
	require.NoError(t, suspended.ChangeStatus(domain.StatusSuspended, "", testNow, "admin"))
	require.NoError(t, repo.Save(ctx, suspended))

	due, err := repo.FindDue(ctx, day(2025, 10, 15))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{dueToday.ID(), lapsed.ID()}, ids(due))

	candidates, err := repo.FindDelinquentCandidates(ctx, day(2025, 10, 8))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{lapsed.ID(), manual.ID()}, ids(candidates))

	byUser, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, byUser, 5)

	suspendedList, err := repo.FindByStatus(ctx, domain.StatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{suspended.ID()}, ids(suspendedList))
	assert.NotContains(t, ids(due), future.ID())
}

func ids(subs []*domain.Subscription) []uuid.UUID {
	out := make([]uuid.UUID, len(subs))
	for i, s := range subs {
		out[i] = s.ID()
	}
	return out
}

func TestInvoiceRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	conn := testdb.Open(t)
	subs := NewSubscriptionRepository(conn)
	repo := NewInvoiceRepository(conn)
	userID := insertUser(t, conn)
	sub := savedSubscription(t, subs, userID, savedPlan(t, NewPlanRepository(conn), "Basic", "9.99"), day(2025, 9, 15))

	paidAt := testNow
	paid := domain.IssueInvoice(domain.IssueParams{
		Number:         "FAC-202510-00001",
		SubscriptionID: sub.ID(),
		Subtotal:       decimal.RequireFromString("9.99"),
		TaxRate:        decimal.NewFromInt(16),
		Concept:        "Suscripción Basic - OCTOBER",
		IssueDate:      day(2025, 10, 15),
		PaidAt:         &paidAt,
	}, testNow)
	require.NoError(t, repo.Save(ctx, paid))

	pending := domain.IssueInvoice(domain.IssueParams{
		Number:         "FAC-202508-00002",
		SubscriptionID: sub.ID(),
		Subtotal:       decimal.RequireFromString("50"),
		TaxRate:        decimal.NewFromInt(21),
		IssueDate:      day(2025, 8, 1),
	}, testNow)
	require.NoError(t, repo.Save(ctx, pending))

	loaded, err := repo.FindByNumber(ctx, "FAC-202510-00001")
	require.NoError(t, err)
	assert.Equal(t, paid.ID(), loaded.ID())
	assert.Equal(t, "9.99", loaded.Subtotal().StringFixed(2))
	assert.Equal(t, "16.00", loaded.TaxRate().StringFixed(2))
	assert.Equal(t, "1.60", loaded.TaxAmount().StringFixed(2))
	assert.Equal(t, "11.59", loaded.Total().StringFixed(2))
	assert.Equal(t, domain.InvoicePaid, loaded.Status())
	require.NotNil(t, loaded.PaidAt())
	assert.True(t, loaded.PaidAt().Equal(paidAt))
	assert.Equal(t, day(2025, 11, 14), loaded.DueDate())
	assert.Equal(t, "Suscripción Basic - OCTOBER", loaded.Concept())

	overdue, err := repo.FindOverdue(ctx, day(2025, 10, 15))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, pending.ID(), overdue[0].ID())

	total, err := repo.PendingTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "60.50", total.StringFixed(2))

	byTotal, err := repo.FindByTotalRange(ctx, decimal.NewFromInt(11), decimal.RequireFromString("11.59"))
	require.NoError(t, err)
	require.Len(t, byTotal, 1)
	assert.Equal(t, paid.ID(), byTotal[0].ID())

	byDate, err := repo.FindByIssueDateRange(ctx, day(2025, 8, 1), day(2025, 8, 31))
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, pending.ID(), byDate[0].ID())

	byUser, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	require.NoError(t, pending.MarkPaid(testNow))
	require.NoError(t, repo.Save(ctx, pending))
	settled, err := repo.FindByID(ctx, pending.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, settled.Status())
	assert.Equal(t, "60.50", settled.Total().StringFixed(2))

	byStatus, err := repo.FindByStatus(ctx, domain.InvoicePaid)
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	require.NoError(t, repo.Delete(ctx, paid.ID()))
	assert.ErrorIs(t, repo.Delete(ctx, paid.ID()), domain.ErrInvoiceNotFound)
}

func TestInvoiceRepository_DuplicateNumber(t *testing.T) {
	ctx := context.Background()
	conn := testdb.Open(t)
	sub := savedSubscription(t, NewSubscriptionRepository(conn), insertUser(t, conn), savedPlan(t, NewPlanRepository(conn), "Basic", "9.99"), day(2025, 9, 15))
	repo := NewInvoiceRepository(conn)

	issue := func() *domain.Invoice {
		return domain.IssueInvoice(domain.IssueParams{
			Number:         "FAC-202510-00009",
			SubscriptionID: sub.ID(),
			Subtotal:       decimal.NewFromInt(10),
			TaxRate:        decimal.NewFromInt(21),
			IssueDate:      day(2025, 10, 15),
		}, testNow)
	}
	require.NoError(t, repo.Save(ctx, issue()))
	assert.ErrorIs(t, repo.Save(ctx, issue()), domain.ErrDuplicateInvoiceNumber)
}

func TestSubscriptionDelete_CascadesInvoices(t *testing.T) {
	ctx := context.Background()
	conn := testdb.Open(t)
	subs := NewSubscriptionRepository(conn)
	invoices := NewInvoiceRepository(conn)
	sub := savedSubscription(t, subs, insertUser(t, conn), savedPlan(t, NewPlanRepository(conn), "Basic", "9.99"), day(2025, 9, 15))

	inv := domain.IssueInvoice(domain.IssueParams{
		Number:         "FAC-202510-00010",
		SubscriptionID: sub.ID(),
		Subtotal:       decimal.NewFromInt(10),
		TaxRate:        decimal.NewFromInt(21),
		IssueDate:      day(2025, 10, 15),
	}, testNow)
	require.NoError(t, invoices.Save(ctx, inv))

	require.NoError(t, subs.Delete(ctx, sub.ID()))
	_, err := invoices.FindByID(ctx, inv.ID())
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestRepositories_JoinUnitOfWork(t *testing.T) {
	ctx := context.Background()
	conn := testdb.Open(t)
	subs := NewSubscriptionRepository(conn)
	plan := savedPlan(t, NewPlanRepository(conn), "Basic", "9.99")
	userID := insertUser(t, conn)
	uow := database.NewUnitOfWork(conn)

	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)
	sub, err := domain.NewSubscription(userID, plan, decimal.Zero, day(2025, 10, 15), testNow, "admin")
	require.NoError(t, err)
	require.NoError(t, subs.Save(txCtx, sub))
	require.NoError(t, uow.Rollback(txCtx))

	_, err = subs.FindByID(ctx, sub.ID())
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}
