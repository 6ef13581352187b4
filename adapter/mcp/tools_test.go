package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/billora/adapter/cli"
	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
	"github.com/felixgeelhaar/billora/internal/billing/infrastructure/persistence"
	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/testdb"
)

func newTestServer() *mcp.Server {
	return mcp.NewServer(mcp.ServerInfo{
		Name:    "test",
		Version: "1.0.0",
		Capabilities: mcp.Capabilities{
			Tools: true,
		},
	})
}

func TestRegisterCLITools_ListTools(t *testing.T) {
	srv := newTestServer()
	require.NoError(t, RegisterCLITools(srv, ToolDependencies{App: &cli.App{}}))

	tc := testutil.NewTestClient(t, srv)
	defer tc.Close()

	tools, err := tc.ListTools()
	require.NoError(t, err)

	names := map[any]bool{}
	for _, tool := range tools {
		names[tool["name"]] = true
	}
	for _, want := range []string{"cli.health", "billing.run", "billing.renew", "billing.sweep",
		"billing.taxes", "billing.subscription", "billing.overdue"} {
		assert.True(t, names[want], "%s should be registered", want)
	}
}

func TestRegisterCLITools_RequiresApp(t *testing.T) {
	assert.Error(t, RegisterCLITools(nil, ToolDependencies{App: &cli.App{}}))
	assert.Error(t, RegisterCLITools(newTestServer(), ToolDependencies{}))
}

func TestBillingTools_WithoutDatabase(t *testing.T) {
	tools := billingTools{app: &cli.App{}}
	ctx := context.Background()

	_, err := tools.run(ctx, struct{}{})
	assert.ErrorIs(t, err, errNoDatabase)
	_, err = tools.sweep(ctx, struct{}{})
	assert.ErrorIs(t, err, errNoDatabase)
	_, err = tools.taxes(ctx, struct{}{})
	assert.ErrorIs(t, err, errNoDatabase)

	_, err = tools.renew(ctx, subscriptionInput{ID: "nope"})
	assert.EqualError(t, err, `invalid subscription id "nope"`)
	_, err = tools.subscription(ctx, subscriptionInput{})
	assert.EqualError(t, err, "subscription id is required")
}

func TestBillingTools_Queries(t *testing.T) {
	conn := testdb.Open(t)
	clock := sharedDomain.NewFixedClock(time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC))
	svc := billingApp.NewService(
		persistence.NewPlanRepository(conn),
		persistence.NewSubscriptionRepository(conn),
		persistence.NewInvoiceRepository(conn),
		outbox.NewSQLRepository(conn),
		database.NewUnitOfWork(conn),
		nil,
		billingApp.NewTaxTable(),
		clock,
	)
	tools := billingTools{app: &cli.App{Billing: svc}}
	ctx := context.Background()

	rates, err := tools.taxes(ctx, struct{}{})
	require.NoError(t, err)
	assert.NotEmpty(t, rates)

	overdue, err := tools.overdue(ctx, overdueInput{AsOf: "2025-10-15"})
	require.NoError(t, err)
	assert.Empty(t, overdue)

	_, err = tools.overdue(ctx, overdueInput{AsOf: "15/10/2025"})
	assert.ErrorContains(t, err, "YYYY-MM-DD")

	_, err = tools.subscription(ctx, subscriptionInput{ID: "6a0e9b8c-5f2e-4a73-9d6b-2d1e4c7f8a90"})
	assert.Error(t, err)
}
