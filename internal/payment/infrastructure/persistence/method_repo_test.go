package persistence

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/billora/internal/payment/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/testdb"
)

var testNow = time.Date(2025, 10, 15, 10, 30, 0, 0, time.UTC)

func setup(t *testing.T) (database.Connection, *MethodRepository, uuid.UUID) {
	t.Helper()
	conn := testdb.Open(t)
	enc, err := crypto.NewAESGCMFromPassphrase("test-passphrase")
	require.NoError(t, err)

	userID := uuid.New()
	_, err = conn.Exec(context.Background(),
		`INSERT INTO users (id, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		userID.String(), "ana@example.com", "x", database.FormatTimestamp(testNow), database.FormatTimestamp(testNow))
	require.NoError(t, err)
	return conn, NewMethodRepository(conn, crypto.NewFieldCipher(enc)), userID
}

func save(t *testing.T, repo *MethodRepository, userID uuid.UUID, d domain.Details) *domain.Method {
	t.Helper()
	m, err := domain.NewMethod(userID, d, testNow)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), m))
	return m
}

func TestMethodRepository_RoundTripsEveryKind(t *testing.T) {
	ctx := context.Background()
	_, repo, userID := setup(t)

	card := save(t, repo, userID, domain.Card{HolderName: "Ana", Number: "4111111111111111", CVV: "123", ExpMonth: 12, ExpYear: 2027, Brand: "visa"})
	paypal := save(t, repo, userID, domain.PayPal{Email: "ana@example.com", AccountID: "PP-1", Verified: true})
	bank := save(t, repo, userID, domain.BankTransfer{HolderName: "Ana", BankName: "BBVA", IBAN: "ES9121000418450200051332", SWIFT: "BBVAESMM", Country: "España"})

	got, err := repo.FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.Details, got.Details)

	got, err = repo.FindByID(ctx, paypal.ID)
	require.NoError(t, err)
	assert.Equal(t, paypal.Details, got.Details)

	got, err = repo.FindByID(ctx, bank.ID)
	require.NoError(t, err)
	assert.Equal(t, bank.Details, got.Details)
	assert.True(t, got.Active)
	assert.True(t, got.CreatedAt.Equal(testNow))
}

func TestMethodRepository_EncryptsSensitiveColumns(t *testing.T) {
	ctx := context.Background()
	conn, repo, userID := setup(t)

	card := save(t, repo, userID, domain.Card{Number: "4111111111111111", CVV: "123", ExpMonth: 1, ExpYear: 2030})
	bank := save(t, repo, userID, domain.BankTransfer{IBAN: "ES9121000418450200051332"})

	var number, cvv string
	require.NoError(t, conn.QueryRow(ctx, `SELECT card_number_enc, cvv_enc FROM payment_methods WHERE id = ?`,
		card.ID.String()).Scan(&number, &cvv))
	assert.NotContains(t, number, "4111")
	assert.NotEqual(t, "123", cvv)

	var iban string
	require.NoError(t, conn.QueryRow(ctx, `SELECT iban_enc FROM payment_methods WHERE id = ?`,
		bank.ID.String()).Scan(&iban))
	assert.False(t, strings.HasPrefix(iban, "ES91"))
}

func TestMethodRepository_DefaultsAndDelete(t *testing.T) {
	ctx := context.Background()
	_, repo, userID := setup(t)

	first := save(t, repo, userID, domain.PayPal{Email: "ana@example.com"})
	second := save(t, repo, userID, domain.PayPal{Email: "ana.work@example.com"})

	first.IsDefault = true
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.ClearDefault(ctx, userID))
	second.IsDefault = true
	require.NoError(t, repo.Save(ctx, second))

	methods, err := repo.FindByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, second.ID, methods[0].ID, "default first")
	assert.False(t, methods[1].IsDefault)

	require.NoError(t, repo.Delete(ctx, first.ID))
	_, err = repo.FindByID(ctx, first.ID)
	assert.ErrorIs(t, err, domain.ErrMethodNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, first.ID), domain.ErrMethodNotFound)
}
