package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	SubscriptionAggregateType = "Subscription"
	InvoiceAggregateType      = "Invoice"

	RoutingKeySubscriptionCreated       = "billing.subscription.created"
	RoutingKeySubscriptionRenewed       = "billing.subscription.renewed"
	RoutingKeySubscriptionChargeFailed  = "billing.subscription.charge_failed"
	RoutingKeySubscriptionDelinquent    = "billing.subscription.delinquent"
	RoutingKeySubscriptionStatusChanged = "billing.subscription.status_changed"

	RoutingKeyInvoiceIssued        = "billing.invoice.issued"
	RoutingKeyInvoicePaid          = "billing.invoice.paid"
	RoutingKeyInvoiceStatusChanged = "billing.invoice.status_changed"
)

// SubscriptionCreated is emitted when a user subscribes to a plan.
type SubscriptionCreated struct {
	sharedDomain.BaseEvent
	UserID         uuid.UUID       `json:"user_id"`
	PlanID         uuid.UUID       `json:"plan_id"`
	Price          decimal.Decimal `json:"price"`
	NextChargeDate string          `json:"next_charge_date"`
}

// SubscriptionRenewed is emitted when a charge succeeded and the billing date moved.
type SubscriptionRenewed struct {
	sharedDomain.BaseEvent
	UserID             uuid.UUID `json:"user_id"`
	InvoiceID          uuid.UUID `json:"invoice_id"`
	InvoiceNumber      string    `json:"invoice_number"`
	PreviousChargeDate string    `json:"previous_charge_date"`
	NextChargeDate     string    `json:"next_charge_date"`
}

// SubscriptionChargeFailed is emitted when the gateway declined a renewal.
// The subscription itself is unchanged.
type SubscriptionChargeFailed struct {
	sharedDomain.BaseEvent
	UserID         uuid.UUID       `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason"`
	NextChargeDate string          `json:"next_charge_date"`
}

// SubscriptionDelinquent is emitted when the grace period lapsed without a renewal.
type SubscriptionDelinquent struct {
	sharedDomain.BaseEvent
	UserID         uuid.UUID `json:"user_id"`
	NextChargeDate string    `json:"next_charge_date"`
	GraceDays      int       `json:"grace_days"`
}

// SubscriptionStatusChanged is emitted for explicit status changes.
type SubscriptionStatusChanged struct {
	sharedDomain.BaseEvent
	From   SubscriptionStatus `json:"from"`
	To     SubscriptionStatus `json:"to"`
	Reason string             `json:"reason,omitempty"`
}

// InvoiceIssued is emitted when the generator's invoice is persisted.
type InvoiceIssued struct {
	sharedDomain.BaseEvent
	Number         string          `json:"number"`
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
	Status         InvoiceStatus   `json:"status"`
}

// InvoiceSettled is emitted when a pending invoice is settled.
type InvoiceSettled struct {
	sharedDomain.BaseEvent
	Number string    `json:"number"`
	PaidAt time.Time `json:"paid_at"`
}

// InvoiceStatusChanged is emitted for explicit invoice status changes.
type InvoiceStatusChanged struct {
	sharedDomain.BaseEvent
	From InvoiceStatus `json:"from"`
	To   InvoiceStatus `json:"to"`
}

func subscriptionEvent(id uuid.UUID, routingKey string, now time.Time) sharedDomain.BaseEvent {
	return sharedDomain.NewBaseEvent(id, SubscriptionAggregateType, routingKey, now)
}

func invoiceEvent(id uuid.UUID, routingKey string, now time.Time) sharedDomain.BaseEvent {
	return sharedDomain.NewBaseEvent(id, InvoiceAggregateType, routingKey, now)
}
