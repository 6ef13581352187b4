// Package persistence stores payment methods in a single table keyed by type.
// Card numbers, CVVs and IBANs are encrypted before they reach the database.
package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/billora/internal/payment/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
)

const methodColumns = `id, user_id, type, is_default, active, holder_name,
	card_number_enc, cvv_enc, exp_month, exp_year, brand,
	paypal_email, paypal_id, paypal_verified,
	bank_name, iban_enc, swift, bank_country, created_at, updated_at`

// MethodRepository implements domain.Repository.
type MethodRepository struct {
	conn   database.Connection
	cipher *crypto.FieldCipher
}

// NewMethodRepository creates a repository that seals sensitive fields with cipher.
func NewMethodRepository(conn database.Connection, cipher *crypto.FieldCipher) *MethodRepository {
	return &MethodRepository{conn: conn, cipher: cipher}
}

func (r *MethodRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// row is the flat column layout shared by every kind.
type row struct {
	holderName                  string
	cardNumber, cvv             string
	expMonth, expYear           int
	brand                       string
	paypalEmail, paypalID       string
	paypalVerified              bool
	bankName, iban, swift, bank string
}

func (r *MethodRepository) flatten(d domain.Details) (row, error) {
	var out row
	var err error
	switch v := d.(type) {
	case domain.Card:
		out.holderName, out.expMonth, out.expYear, out.brand = v.HolderName, v.ExpMonth, v.ExpYear, v.Brand
		if out.cardNumber, err = r.cipher.EncryptString(v.Number); err != nil {
			return row{}, err
		}
		if out.cvv, err = r.cipher.EncryptString(v.CVV); err != nil {
			return row{}, err
		}
	case domain.PayPal:
		out.paypalEmail, out.paypalID, out.paypalVerified = v.Email, v.AccountID, v.Verified
	case domain.BankTransfer:
		out.holderName, out.bankName, out.swift, out.bank = v.HolderName, v.BankName, v.SWIFT, v.Country
		if out.iban, err = r.cipher.EncryptString(v.IBAN); err != nil {
			return row{}, err
		}
	default:
		return row{}, domain.ErrUnknownKind
	}
	return out, nil
}

func (r *MethodRepository) Save(ctx context.Context, m *domain.Method) error {
	f, err := r.flatten(m.Details)
	if err != nil {
		return fmt.Errorf("failed to encode payment method: %w", err)
	}
	_, err = r.exec(ctx).Exec(ctx, `INSERT INTO payment_methods (`+methodColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			is_default = excluded.is_default,
			active = excluded.active,
			holder_name = excluded.holder_name,
			card_number_enc = excluded.card_number_enc,
			cvv_enc = excluded.cvv_enc,
			exp_month = excluded.exp_month,
			exp_year = excluded.exp_year,
			brand = excluded.brand,
			paypal_email = excluded.paypal_email,
			paypal_id = excluded.paypal_id,
			paypal_verified = excluded.paypal_verified,
			bank_name = excluded.bank_name,
			iban_enc = excluded.iban_enc,
			swift = excluded.swift,
			bank_country = excluded.bank_country,
			updated_at = excluded.updated_at`,
		m.ID.String(), m.UserID.String(), string(m.Kind()), m.IsDefault, m.Active, f.holderName,
		f.cardNumber, f.cvv, f.expMonth, f.expYear, f.brand,
		f.paypalEmail, f.paypalID, f.paypalVerified,
		f.bankName, f.iban, f.swift, f.bank,
		database.FormatTimestamp(m.CreatedAt), database.FormatTimestamp(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save payment method: %w", err)
	}
	return nil
}

func (r *MethodRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Method, error) {
	m, err := r.scan(r.exec(ctx).QueryRow(ctx, `SELECT `+methodColumns+` FROM payment_methods WHERE id = ?`, id.String()))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrMethodNotFound
		}
		return nil, err
	}
	return m, nil
}

// FindByUser lists the user's methods, default first.
func (r *MethodRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Method, error) {
	rows, err := r.exec(ctx).Query(ctx, `SELECT `+methodColumns+` FROM payment_methods
		WHERE user_id = ? ORDER BY is_default DESC, created_at`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query payment methods: %w", err)
	}
	defer rows.Close()

	var methods []*domain.Method
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (r *MethodRepository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	_, err := r.exec(ctx).Exec(ctx, `UPDATE payment_methods SET is_default = ? WHERE user_id = ? AND is_default = ?`,
		false, userID.String(), true)
	if err != nil {
		return fmt.Errorf("failed to clear default payment method: %w", err)
	}
	return nil
}

func (r *MethodRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.exec(ctx).Exec(ctx, `DELETE FROM payment_methods WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete payment method: %w", err)
	}
	return database.RequireAffected(result, domain.ErrMethodNotFound)
}

func (r *MethodRepository) scan(sc database.Row) (*domain.Method, error) {
	var (
		m                    domain.Method
		id, userID, kind     string
		f                    row
		createdAt, updatedAt database.Time
	)
	if err := sc.Scan(&id, &userID, &kind, &m.IsDefault, &m.Active, &f.holderName,
		&f.cardNumber, &f.cvv, &f.expMonth, &f.expYear, &f.brand,
		&f.paypalEmail, &f.paypalID, &f.paypalVerified,
		&f.bankName, &f.iban, &f.swift, &f.bank, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	m.ID, _ = uuid.Parse(id)
	m.UserID, _ = uuid.Parse(userID)
	m.CreatedAt = createdAt.Time
	m.UpdatedAt = updatedAt.Time

	k, err := domain.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	switch k {
	case domain.KindCreditCard:
		card := domain.Card{HolderName: f.holderName, ExpMonth: f.expMonth, ExpYear: f.expYear, Brand: f.brand}
		if card.Number, err = r.cipher.DecryptString(f.cardNumber); err != nil {
			return nil, err
		}
		if card.CVV, err = r.cipher.DecryptString(f.cvv); err != nil {
			return nil, err
		}
		m.Details = card
	case domain.KindPayPal:
		m.Details = domain.PayPal{Email: f.paypalEmail, AccountID: f.paypalID, Verified: f.paypalVerified}
	case domain.KindBankTransfer:
		bank := domain.BankTransfer{HolderName: f.holderName, BankName: f.bankName, SWIFT: f.swift, Country: f.bank}
		if bank.IBAN, err = r.cipher.DecryptString(f.iban); err != nil {
			return nil, err
		}
		m.Details = bank
	}
	return &m, nil
}
