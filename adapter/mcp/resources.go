package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/samber/lo"

	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

// RegisterResources registers MCP resources that expose billing data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("billora://plans/active").
		Name("Active Plans").
		Description("Plans currently offered, in display order").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Billing == nil {
				return nil, errNoDatabase
			}
			plans, err := app.Billing.ListActivePlans(ctx)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, lo.Map(plans, func(p *domain.Plan, _ int) billingApp.PlanView {
				return billingApp.NewPlanView(p)
			}))
		})

	srv.Resource("billora://invoices/overdue").
		Name("Overdue Invoices").
		Description("Pending invoices past their due date as of today").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Billing == nil {
				return nil, errNoDatabase
			}
			invoices, err := app.Billing.ListOverdue(ctx, time.Time{})
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, toInvoiceViews(invoices))
		})

	srv.Resource("billora://subscriptions/delinquent").
		Name("Delinquent Subscriptions").
		Description("Subscriptions flagged after the grace period").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Billing == nil {
				return nil, errNoDatabase
			}
			subs, err := app.Billing.ListSubscriptionsByStatus(ctx, string(domain.StatusDelinquent))
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, lo.Map(subs, func(s *domain.Subscription, _ int) billingApp.SubscriptionView {
				return billingApp.NewSubscriptionView(s)
			}))
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
