package mcp

import (
	"context"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/felixgeelhaar/billora/adapter/cli"
	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

type subscriptionInput struct {
	ID string `json:"id" jsonschema:"required"`
}

type overdueInput struct {
	AsOf string `json:"as_of,omitempty"`
}

type renewResult struct {
	SubscriptionID string             `json:"subscription_id"`
	Outcome        billingApp.Outcome `json:"outcome"`
	Error          string             `json:"error,omitempty"`
}

type sweepResult struct {
	Delinquent int `json:"delinquent"`
	GraceDays  int `json:"grace_days"`
}

type subscriptionDetail struct {
	Subscription billingApp.SubscriptionView `json:"subscription"`
	Invoices     []billingApp.InvoiceView    `json:"invoices"`
}

// billingTools holds the handlers so they can be exercised without a transport.
type billingTools struct {
	app *cli.App
}

func (b billingTools) run(ctx context.Context, _ struct{}) (billingApp.RunSummary, error) {
	if b.app.Scheduler == nil {
		return billingApp.RunSummary{}, errNoDatabase
	}
	return b.app.Scheduler.RunOnce(ctx)
}

func (b billingTools) renew(ctx context.Context, input subscriptionInput) (renewResult, error) {
	id, err := parseSubscriptionID(input.ID)
	if err != nil {
		return renewResult{}, err
	}
	if b.app.Renewals == nil {
		return renewResult{}, errNoDatabase
	}
	outcome, err := b.app.Renewals.ForceRenewal(ctx, id)
	result := renewResult{SubscriptionID: id.String(), Outcome: outcome}
	if err != nil {
		result.Error = err.Error()
	}
	return result, nil
}

func (b billingTools) sweep(ctx context.Context, _ struct{}) (sweepResult, error) {
	if b.app.Sweeper == nil {
		return sweepResult{}, errNoDatabase
	}
	n, err := b.app.Sweeper.Sweep(ctx)
	if err != nil {
		return sweepResult{}, err
	}
	return sweepResult{Delinquent: n, GraceDays: b.app.Sweeper.GraceDays()}, nil
}

func (b billingTools) taxes(_ context.Context, _ struct{}) (map[string]decimal.Decimal, error) {
	if b.app.Billing == nil {
		return nil, errNoDatabase
	}
	return b.app.Billing.TaxRates(), nil
}

func (b billingTools) subscription(ctx context.Context, input subscriptionInput) (subscriptionDetail, error) {
	id, err := parseSubscriptionID(input.ID)
	if err != nil {
		return subscriptionDetail{}, err
	}
	if b.app.Billing == nil {
		return subscriptionDetail{}, errNoDatabase
	}
	sub, err := b.app.Billing.GetSubscription(ctx, id)
	if err != nil {
		return subscriptionDetail{}, err
	}
	invoices, err := b.app.Billing.ListInvoicesBySubscription(ctx, id)
	if err != nil {
		return subscriptionDetail{}, err
	}
	return subscriptionDetail{
		Subscription: billingApp.NewSubscriptionView(sub),
		Invoices:     toInvoiceViews(invoices),
	}, nil
}

func (b billingTools) overdue(ctx context.Context, input overdueInput) ([]billingApp.InvoiceView, error) {
	if b.app.Billing == nil {
		return nil, errNoDatabase
	}
	asOf, err := parseAsOf(input.AsOf)
	if err != nil {
		return nil, err
	}
	invoices, err := b.app.Billing.ListOverdue(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return toInvoiceViews(invoices), nil
}

func toInvoiceViews(invoices []*domain.Invoice) []billingApp.InvoiceView {
	return lo.Map(invoices, func(inv *domain.Invoice, _ int) billingApp.InvoiceView {
		return billingApp.NewInvoiceView(inv)
	})
}

func registerBillingTools(srv *mcp.Server, deps ToolDependencies) {
	tools := billingTools{app: deps.App}

	srv.Tool("billing.run").
		Description("Run today's renewal batch and delinquency sweep").
		Handler(tools.run)

	srv.Tool("billing.renew").
		Description("Renew one subscription now, regardless of its charge date").
		Handler(tools.renew)

	srv.Tool("billing.sweep").
		Description("Flag subscriptions past the grace period as delinquent").
		Handler(tools.sweep)

	srv.Tool("billing.taxes").
		Description("Tax rate applied per country").
		Handler(tools.taxes)

	srv.Tool("billing.subscription").
		Description("A subscription and its invoices").
		Handler(tools.subscription)

	srv.Tool("billing.overdue").
		Description("Pending invoices past their due date").
		Handler(tools.overdue)
}
