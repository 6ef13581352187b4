// Package domain models stored payment methods. Method is a tagged union:
// Kind selects which Details implementation it carries.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMethodNotFound = errors.New("payment method not found")
	ErrInvalidMethod  = errors.New("payment method is not valid")
	ErrUnknownKind    = errors.New("unknown payment method type")
	ErrMethodNotOwned = errors.New("payment method belongs to another user")
	ErrMethodInactive = errors.New("payment method is inactive")
)

// Kind is the persisted discriminator.
type Kind string

const (
	KindCreditCard   Kind = "credit_card"
	KindPayPal       Kind = "paypal"
	KindBankTransfer Kind = "bank_transfer"
)

// ParseKind validates a persisted or user-supplied kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCreditCard, KindPayPal, KindBankTransfer:
		return k, nil
	default:
		return "", ErrUnknownKind
	}
}

// Details is the kind-specific part of a payment method.
type Details interface {
	Type() Kind
	// Masked renders the method for display without exposing the secret part.
	Masked() string
	IsValid(now time.Time) bool
}

// Card is a credit card. Number and CVV are encrypted at rest.
type Card struct {
	HolderName string
	Number     string
	CVV        string
	ExpMonth   int
	ExpYear    int
	Brand      string
}

func (Card) Type() Kind { return KindCreditCard }

func (c Card) Masked() string {
	if len(c.Number) < 4 {
		return "**** **** **** ****"
	}
	return "**** **** **** " + c.Number[len(c.Number)-4:]
}

// IsValid reports whether the card has not expired: the expiry month is the
// current month or later.
func (c Card) IsValid(now time.Time) bool {
	if c.ExpMonth < 1 || c.ExpMonth > 12 || c.ExpYear <= 0 {
		return false
	}
	y, m, _ := now.Date()
	if c.ExpYear != y {
		return c.ExpYear > y
	}
	return c.ExpMonth >= int(m)
}

// PayPal is a PayPal account.
type PayPal struct {
	Email     string
	AccountID string
	Verified  bool
}

func (PayPal) Type() Kind { return KindPayPal }

func (p PayPal) Masked() string {
	local, domain, ok := strings.Cut(p.Email, "@")
	if !ok {
		return "***@***"
	}
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***@" + domain
}

func (p PayPal) IsValid(time.Time) bool {
	return strings.Contains(p.Email, "@")
}

// BankTransfer is a direct debit from a bank account. The IBAN is encrypted at rest.
type BankTransfer struct {
	HolderName string
	BankName   string
	IBAN       string
	SWIFT      string
	Country    string
}

func (BankTransfer) Type() Kind { return KindBankTransfer }

func (b BankTransfer) Masked() string {
	if len(b.IBAN) < 4 {
		return "****"
	}
	return "****" + b.IBAN[len(b.IBAN)-4:]
}

func (b BankTransfer) IsValid(time.Time) bool {
	return len(b.IBAN) >= 15 && len(b.IBAN) <= 34
}

// Method is a payment method owned by a user.
type Method struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	IsDefault bool
	Active    bool
	Details   Details
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMethod creates an active, non-default method. Invalid details are rejected.
func NewMethod(userID uuid.UUID, details Details, now time.Time) (*Method, error) {
	if details == nil {
		return nil, ErrUnknownKind
	}
	if !details.IsValid(now) {
		return nil, ErrInvalidMethod
	}
	return &Method{
		ID:        uuid.New(),
		UserID:    userID,
		Active:    true,
		Details:   details,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Kind returns the discriminator of the carried details.
func (m *Method) Kind() Kind {
	return m.Details.Type()
}
