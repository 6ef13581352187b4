package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/billora/internal/audit"
	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
	billingPersistence "github.com/felixgeelhaar/billora/internal/billing/infrastructure/persistence"
	identityApp "github.com/felixgeelhaar/billora/internal/identity/application"
	identityPersistence "github.com/felixgeelhaar/billora/internal/identity/infrastructure/persistence"
	paymentApp "github.com/felixgeelhaar/billora/internal/payment/application"
	paymentPersistence "github.com/felixgeelhaar/billora/internal/payment/infrastructure/persistence"
	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/testdb"
)

var apiNow = time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)

type apiFixture struct {
	router   chi.Router
	token    string
	userID   string
	invoices *billingPersistence.InvoiceRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	conn := testdb.Open(t)
	clock := sharedDomain.NewFixedClock(apiNow)
	uow := database.NewUnitOfWork(conn)
	outboxRepo := outbox.NewSQLRepository(conn)
	store := audit.NewSQLStore(conn).WithClock(clock.Now)

	users := identityPersistence.NewUserRepository(conn)
	identity := identityApp.NewService(users, outboxRepo, uow, store,
		identityApp.TokenConfig{Secret: []byte("api-test-secret")}, clock).WithHashCost(bcrypt.MinCost)

	plans := billingPersistence.NewPlanRepository(conn)
	subs := billingPersistence.NewSubscriptionRepository(conn)
	invoices := billingPersistence.NewInvoiceRepository(conn)
	taxes := billingApp.NewTaxTable()
	billing := billingApp.NewService(plans, subs, invoices, outboxRepo, uow, store, taxes, clock)
	numberer := billingApp.NewInvoiceNumberer(billingApp.NewMemorySequence(clock), clock)
	renewals := billingApp.NewRenewalService(billingApp.RenewalDeps{
		Subscriptions: subs,
		Invoices:      invoices,
		Outbox:        outboxRepo,
		UnitOfWork:    uow,
		Generator:     billingApp.NewInvoiceGenerator(plans, identityApp.NewProfileCountryResolver(users), taxes, numberer, clock),
		Gateway:       billingApp.NewSimulatedGateway(1),
		Audit:         store,
		Clock:         clock,
	})

	enc, err := crypto.NewAESGCMFromPassphrase("api-test")
	require.NoError(t, err)
	methods := paymentPersistence.NewMethodRepository(conn, crypto.NewFieldCipher(enc))
	payments := paymentApp.NewService(methods, uow, store, clock)

	router := NewRouter(Deps{
		Identity: identity,
		Billing:  billing,
		Renewals: renewals,
		Payments: payments,
		Audit:    store,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	f := &apiFixture{router: router, invoices: invoices}
	rec := f.do(t, http.MethodPost, "/api/auth/register", `{"email":"ana@example.com","password":"s3cret-pass","profile":{"first_name":"Ana","country":"España"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	f.userID = user["id"].(string)

	rec = f.do(t, http.MethodPost, "/api/auth/login", `{"email":"ana@example.com","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var token identityApp.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	f.token = token.AccessToken
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) pendingTotal(t *testing.T) decimal.Decimal {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/api/invoices/pending-total", "")
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeBody[pendingTotalResponse](t, rec).Total
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newAPIFixture(t)
	f.token = ""

	rec := f.do(t, http.MethodGet, "/api/plans", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.token = "not-a-jwt"
	rec = f.do(t, http.MethodGet, "/api/plans", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_EchoesRequestIDs(t *testing.T) {
	f := newAPIFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestAuth_LoginRejectsBadPassword(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/auth/login", `{"email":"ana@example.com","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/register", `{"email":"ana@example.com","password":"s3cret-pass"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/register", `{"email":"not-an-email","password":"s3cret-pass"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBilling_SubscribeRenewAndPay(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/plans", `{"name":"Basic","tier":"basic","monthly_price":"10.00","features":["email"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	plan := decodeBody[billingApp.PlanView](t, rec)

	rec = f.do(t, http.MethodPost, "/api/subscriptions", `{"user_id":"`+f.userID+`","plan_id":"`+plan.ID.String()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decodeBody[billingApp.SubscriptionView](t, rec)
	assert.Equal(t, "2025-11-15", sub.NextChargeDate)
	assert.True(t, sub.AutoRenew)
	assert.Equal(t, f.userID, sub.CreatedBy)

	rec = f.do(t, http.MethodPost, "/api/subscriptions/"+sub.ID.String()+"/renew", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	renewed := decodeBody[renewResponse](t, rec)
	assert.Equal(t, billingApp.OutcomeRenewed, renewed.Outcome)

	rec = f.do(t, http.MethodGet, "/api/invoices/subscription/"+sub.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	invoices := decodeBody[[]billingApp.InvoiceView](t, rec)
	require.Len(t, invoices, 1)
	assert.Equal(t, "paid", invoices[0].Status, "a renewal invoice is settled by the charge")
	require.NotNil(t, invoices[0].PaidAt)

	rec = f.do(t, http.MethodGet, "/api/invoices/number/"+invoices[0].Number, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.pendingTotal(t).IsZero())

	manual := domain.IssueInvoice(domain.IssueParams{
		Number:         "FAC-202510-90001",
		SubscriptionID: sub.ID,
		Subtotal:       decimal.RequireFromString("10.00"),
		TaxRate:        decimal.RequireFromString("21"),
		Concept:        "Ajuste manual",
		IssueDate:      apiNow,
	}, apiNow)
	require.NoError(t, f.invoices.Save(context.Background(), manual))
	assert.True(t, f.pendingTotal(t).Equal(decimal.RequireFromString("12.10")))

	rec = f.do(t, http.MethodPut, "/api/invoices/"+manual.ID().String()+"/pay", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeBody[billingApp.InvoiceView](t, rec)
	assert.Equal(t, "paid", paid.Status)
	assert.True(t, f.pendingTotal(t).IsZero())

	rec = f.do(t, http.MethodPut, "/api/invoices/"+manual.ID().String()+"/pay", "")
	assert.Equal(t, http.StatusOK, rec.Code, "paying twice is a no-op")

	rec = f.do(t, http.MethodGet, "/api/invoices/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), invoices[0].Number)

	rec = f.do(t, http.MethodGet, "/api/audit/subscription/"+sub.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]audit.Entry](t, rec)
	assert.Len(t, history, 2)
}

func TestBilling_Errors(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/plans/6a0e9b8c-5f2e-4a73-9d6b-2d1e4c7f8a90", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/plans/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/plans", `{"name":"Odd","tier":"platinum","monthly_price":"5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/invoices/filter/date?from=2025-10-10&to=2025-10-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/invoices/filter/amount?min=50&max=10", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/subscriptions/status/frozen", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/audit/widgets", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentMethods_MaskedAndDefault(t *testing.T) {
	f := newAPIFixture(t)

	body := `{"user_id":"` + f.userID + `","type":"credit_card","holder_name":"Ana","card_number":"4111111111111111","cvv":"123","exp_month":12,"exp_year":2030,"make_default":true}`
	rec := f.do(t, http.MethodPost, "/api/payment-methods", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	card := decodeBody[paymentApp.MethodView](t, rec)
	assert.True(t, card.IsDefault)
	assert.NotContains(t, card.Masked, "4111111111111111")

	rec = f.do(t, http.MethodPost, "/api/payment-methods", `{"user_id":"`+f.userID+`","type":"cheque"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/payment-methods/user/"+f.userID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, bytes.Contains(rec.Body.Bytes(), []byte("4111111111111111")))
	views := decodeBody[[]paymentApp.MethodView](t, rec)
	require.Len(t, views, 1)

	rec = f.do(t, http.MethodPut, "/api/payment-methods/"+card.ID.String()+"/deactivate", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/payment-methods/"+card.ID.String()+"/default", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
