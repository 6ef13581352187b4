package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceRefunded  InvoiceStatus = "refunded"
)

// ParseInvoiceStatus accepts the persisted lowercase names.
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch st := InvoiceStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case InvoicePending, InvoicePaid, InvoiceOverdue, InvoiceCancelled, InvoiceRefunded:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

const (
	// PaymentTermDays is the gap between issue and due date.
	PaymentTermDays = 30
	// MaxConceptLength bounds the line item text.
	MaxConceptLength = 500
)

// Invoice bills one charge cycle of a subscription. Amounts are fixed when
// the invoice is issued and never recomputed.
type Invoice struct {
	sharedDomain.BaseAggregateRoot
	number          string
	subscriptionID  uuid.UUID
	issueDate       time.Time
	dueDate         time.Time
	paidAt          *time.Time
	subtotal        decimal.Decimal
	taxRate         decimal.Decimal
	taxAmount       decimal.Decimal
	total           decimal.Decimal
	status          InvoiceStatus
	concept         string
	prorated        bool
	notes           string
	paymentMethodID *uuid.UUID
}

// IssueParams describes a new invoice.
type IssueParams struct {
	Number         string
	SubscriptionID uuid.UUID
	Subtotal       decimal.Decimal
	TaxRate        decimal.Decimal
	Concept        string
	IssueDate      time.Time
	// PaidAt marks the invoice as settled at issue. Nil leaves it pending.
	PaidAt *time.Time
}

// IssueInvoice computes tax and total and records InvoiceIssued.
func IssueInvoice(p IssueParams, now time.Time) *Invoice {
	issue := sharedDomain.DateOf(p.IssueDate)
	subtotal := RoundMoney(p.Subtotal)
	taxAmount, total := ComputeTax(subtotal, p.TaxRate)

	inv := &Invoice{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(now),
		number:            p.Number,
		subscriptionID:    p.SubscriptionID,
		issueDate:         issue,
		dueDate:           issue.AddDate(0, 0, PaymentTermDays),
		subtotal:          subtotal,
		taxRate:           p.TaxRate,
		taxAmount:         taxAmount,
		total:             total,
		status:            InvoicePending,
		concept:           truncate(p.Concept, MaxConceptLength),
	}
	if p.PaidAt != nil {
		paidAt := p.PaidAt.UTC()
		inv.paidAt = &paidAt
		inv.status = InvoicePaid
	}

	inv.AddDomainEvent(&InvoiceIssued{
		BaseEvent:      invoiceEvent(inv.ID(), RoutingKeyInvoiceIssued, now),
		Number:         inv.number,
		SubscriptionID: inv.subscriptionID,
		Subtotal:       inv.subtotal,
		TaxRate:        inv.taxRate,
		TaxAmount:      inv.taxAmount,
		Total:          inv.total,
		Status:         inv.status,
	})
	return inv
}

// InvoiceState carries persisted fields for RehydrateInvoice.
type InvoiceState struct {
	ID              uuid.UUID
	Number          string
	SubscriptionID  uuid.UUID
	IssueDate       time.Time
	DueDate         time.Time
	PaidAt          *time.Time
	Subtotal        decimal.Decimal
	TaxRate         decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal
	Status          InvoiceStatus
	Concept         string
	Prorated        bool
	Notes           string
	PaymentMethodID *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int
}

// RehydrateInvoice recreates an invoice from persisted state.
func RehydrateInvoice(st InvoiceState) *Invoice {
	return &Invoice{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(st.ID, st.CreatedAt, st.UpdatedAt), st.Version),
		number:          st.Number,
		subscriptionID:  st.SubscriptionID,
		issueDate:       st.IssueDate,
		dueDate:         st.DueDate,
		paidAt:          st.PaidAt,
		subtotal:        st.Subtotal,
		taxRate:         st.TaxRate,
		taxAmount:       st.TaxAmount,
		total:           st.Total,
		status:          st.Status,
		concept:         st.Concept,
		prorated:        st.Prorated,
		notes:           st.Notes,
		paymentMethodID: st.PaymentMethodID,
	}
}

func (i *Invoice) Number() string               { return i.number }
func (i *Invoice) SubscriptionID() uuid.UUID    { return i.subscriptionID }
func (i *Invoice) IssueDate() time.Time         { return i.issueDate }
func (i *Invoice) DueDate() time.Time           { return i.dueDate }
func (i *Invoice) PaidAt() *time.Time           { return i.paidAt }
func (i *Invoice) Subtotal() decimal.Decimal    { return i.subtotal }
func (i *Invoice) TaxRate() decimal.Decimal     { return i.taxRate }
func (i *Invoice) TaxAmount() decimal.Decimal   { return i.taxAmount }
func (i *Invoice) Total() decimal.Decimal       { return i.total }
func (i *Invoice) Status() InvoiceStatus        { return i.status }
func (i *Invoice) Concept() string              { return i.concept }
func (i *Invoice) Prorated() bool               { return i.prorated }
func (i *Invoice) Notes() string                { return i.notes }
func (i *Invoice) PaymentMethodID() *uuid.UUID  { return i.paymentMethodID }

// IsOverdue reports a pending invoice whose due date is before asOf.
func (i *Invoice) IsOverdue(asOf time.Time) bool {
	return i.status == InvoicePending && i.dueDate.Before(sharedDomain.DateOf(asOf))
}

// MarkPaid settles a pending or overdue invoice.
func (i *Invoice) MarkPaid(now time.Time) error {
	switch i.status {
	case InvoicePaid:
		return nil
	case InvoicePending, InvoiceOverdue:
	default:
		return ErrInvoiceNotPayable
	}
	paidAt := now.UTC()
	i.paidAt = &paidAt
	i.status = InvoicePaid
	i.TouchAt(now)

	i.AddDomainEvent(&InvoiceSettled{
		BaseEvent: invoiceEvent(i.ID(), RoutingKeyInvoicePaid, now),
		Number:    i.number,
		PaidAt:    paidAt,
	})
	return nil
}

// ChangeStatus applies an explicit status change. Totals are untouched.
func (i *Invoice) ChangeStatus(to InvoiceStatus, now time.Time) error {
	if _, err := ParseInvoiceStatus(string(to)); err != nil {
		return err
	}
	if to == InvoicePaid {
		return i.MarkPaid(now)
	}
	if i.status == to {
		return nil
	}
	from := i.status
	i.status = to
	i.TouchAt(now)

	i.AddDomainEvent(&InvoiceStatusChanged{
		BaseEvent: invoiceEvent(i.ID(), RoutingKeyInvoiceStatusChanged, now),
		From:      from,
		To:        to,
	})
	return nil
}

// AttachPaymentMethod records which stored method settled the invoice.
func (i *Invoice) AttachPaymentMethod(id uuid.UUID) {
	i.paymentMethodID = &id
}

// SetNotes replaces the free-text notes.
func (i *Invoice) SetNotes(notes string, now time.Time) {
	i.notes = strings.TrimSpace(notes)
	i.TouchAt(now)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
