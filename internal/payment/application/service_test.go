package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/billora/internal/audit"
	"github.com/felixgeelhaar/billora/internal/payment/domain"
	"github.com/felixgeelhaar/billora/internal/payment/infrastructure/persistence"
	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/testdb"
)

var serviceNow = time.Date(2025, 10, 15, 10, 30, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *audit.SQLStore, uuid.UUID) {
	t.Helper()
	conn := testdb.Open(t)
	enc, err := crypto.NewAESGCMFromPassphrase("test-passphrase")
	require.NoError(t, err)

	userID := uuid.New()
	_, err = conn.Exec(context.Background(),
		`INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		userID.String(), "ana@example.com", "x", database.FormatTimestamp(serviceNow), database.FormatTimestamp(serviceNow))
	require.NoError(t, err)

	clock := sharedDomain.NewFixedClock(serviceNow)
	store := audit.NewSQLStore(conn).WithClock(clock.Now)
	repo := persistence.NewMethodRepository(conn, crypto.NewFieldCipher(enc))
	return NewService(repo, database.NewUnitOfWork(conn), store, clock), store, userID
}

func TestService_AddAndList(t *testing.T) {
	svc, store, userID := newService(t)
	ctx := context.Background()

	card, err := svc.Add(ctx, AddInput{UserID: userID, Type: "credit_card", HolderName: "Ana",
		CardNumber: "4111111111111234", CVV: "123", ExpMonth: 12, ExpYear: 2026, Brand: "visa"})
	require.NoError(t, err)
	assert.Equal(t, "**** **** **** 1234", card.Masked)
	assert.True(t, card.Valid)

	bank, err := svc.Add(ctx, AddInput{UserID: userID, Type: "bank_transfer", HolderName: "Ana",
		BankName: "BBVA", IBAN: "ES9121000418450200051332", MakeDefault: true})
	require.NoError(t, err)
	assert.True(t, bank.IsDefault)

	views, err := svc.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, bank.ID, views[0].ID)
	assert.Equal(t, "****1332", views[0].Masked)

	history, err := store.History(ctx, audit.EntityPaymentMethod, card.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.NotContains(t, string(history[0].Snapshot), "4111111111111234")
}

func TestService_AddRejectsInvalid(t *testing.T) {
	svc, _, userID := newService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, AddInput{UserID: userID, Type: "credit_card", CardNumber: "4111111111111111", ExpMonth: 9, ExpYear: 2025})
	assert.ErrorIs(t, err, domain.ErrInvalidMethod)
	_, err = svc.Add(ctx, AddInput{UserID: userID, Type: "paypal", PayPalEmail: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidMethod)
	_, err = svc.Add(ctx, AddInput{UserID: userID, Type: "bank_transfer", IBAN: "ES91"})
	assert.ErrorIs(t, err, domain.ErrInvalidMethod)
	_, err = svc.Add(ctx, AddInput{UserID: userID, Type: "cash"})
	assert.ErrorIs(t, err, domain.ErrUnknownKind)

	views, err := svc.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestService_SetDefaultIsExclusive(t *testing.T) {
	svc, _, userID := newService(t)
	ctx := context.Background()

	first, err := svc.Add(ctx, AddInput{UserID: userID, Type: "paypal", PayPalEmail: "ana@example.com", MakeDefault: true})
	require.NoError(t, err)
	second, err := svc.Add(ctx, AddInput{UserID: userID, Type: "paypal", PayPalEmail: "ana.work@example.com"})
	require.NoError(t, err)

	updated, err := svc.SetDefault(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)

	views, err := svc.ListByUser(ctx, userID)
	require.NoError(t, err)
	defaults := 0
	for _, v := range views {
		if v.IsDefault {
			defaults++
			assert.Equal(t, second.ID, v.ID)
		}
	}
	assert.Equal(t, 1, defaults)
	assert.NotEqual(t, first.ID, views[0].ID)

	_, err = svc.SetDefault(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrMethodNotFound)
}

func TestService_DeactivateAndDelete(t *testing.T) {
	svc, _, userID := newService(t)
	ctx := context.Background()

	m, err := svc.Add(ctx, AddInput{UserID: userID, Type: "paypal", PayPalEmail: "ana@example.com", MakeDefault: true})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, m.ID))
	views, err := svc.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].Active)
	assert.False(t, views[0].IsDefault)

	_, err = svc.SetDefault(ctx, m.ID)
	assert.ErrorIs(t, err, domain.ErrMethodInactive)

	require.NoError(t, svc.Delete(ctx, m.ID))
	assert.ErrorIs(t, svc.Delete(ctx, m.ID), domain.ErrMethodNotFound)
}
