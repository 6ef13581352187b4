package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

// PlanView is the read model of a plan.
type PlanView struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Tier            string          `json:"tier"`
	MonthlyPrice    decimal.Decimal `json:"monthly_price"`
	Description     string          `json:"description"`
	Features        []string        `json:"features"`
	MaxUsers        int             `json:"max_users"`
	StorageGB       int             `json:"storage_gb"`
	PrioritySupport bool            `json:"priority_support"`
	Active          bool            `json:"active"`
	DisplayOrder    int             `json:"display_order"`
}

func NewPlanView(p *domain.Plan) PlanView {
	features := p.Features
	if features == nil {
		features = []string{}
	}
	return PlanView{
		ID:              p.ID,
		Name:            p.Name,
		Tier:            string(p.Tier),
		MonthlyPrice:    p.MonthlyPrice,
		Description:     p.Description,
		Features:        features,
		MaxUsers:        p.MaxUsers,
		StorageGB:       p.StorageGB,
		PrioritySupport: p.PrioritySupport,
		Active:          p.Active,
		DisplayOrder:    p.DisplayOrder,
	}
}

// SubscriptionView is the read model of a subscription.
type SubscriptionView struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	PlanID         uuid.UUID       `json:"plan_id"`
	StartDate      string          `json:"start_date"`
	EndDate        *string         `json:"end_date,omitempty"`
	NextChargeDate string          `json:"next_charge_date"`
	Status         string          `json:"status"`
	AutoRenew      bool            `json:"auto_renew"`
	Price          decimal.Decimal `json:"price"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
	CreatedBy      string          `json:"created_by"`
	UpdatedBy      string          `json:"updated_by"`
	Version        int             `json:"version"`
}

func NewSubscriptionView(s *domain.Subscription) SubscriptionView {
	return SubscriptionView{
		ID:             s.ID(),
		UserID:         s.UserID(),
		PlanID:         s.PlanID(),
		StartDate:      s.StartDate().Format(time.DateOnly),
		EndDate:        formatDatePtr(s.EndDate()),
		NextChargeDate: s.NextChargeDate().Format(time.DateOnly),
		Status:         string(s.Status()),
		AutoRenew:      s.AutoRenew(),
		Price:          s.Price(),
		CancelledAt:    s.CancelledAt(),
		CancelReason:   s.CancelReason(),
		CreatedBy:      s.CreatedBy(),
		UpdatedBy:      s.UpdatedBy(),
		Version:        s.Version(),
	}
}

// InvoiceView is the read model of an invoice.
type InvoiceView struct {
	ID              uuid.UUID       `json:"id"`
	Number          string          `json:"number"`
	SubscriptionID  uuid.UUID       `json:"subscription_id"`
	IssueDate       string          `json:"issue_date"`
	DueDate         string          `json:"due_date"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	Concept         string          `json:"concept"`
	Prorated        bool            `json:"prorated"`
	Notes           string          `json:"notes,omitempty"`
	PaymentMethodID *uuid.UUID      `json:"payment_method_id,omitempty"`
}

func NewInvoiceView(i *domain.Invoice) InvoiceView {
	return InvoiceView{
		ID:              i.ID(),
		Number:          i.Number(),
		SubscriptionID:  i.SubscriptionID(),
		IssueDate:       i.IssueDate().Format(time.DateOnly),
		DueDate:         i.DueDate().Format(time.DateOnly),
		PaidAt:          i.PaidAt(),
		Subtotal:        i.Subtotal(),
		TaxRate:         i.TaxRate(),
		TaxAmount:       i.TaxAmount(),
		Total:           i.Total(),
		Status:          string(i.Status()),
		Concept:         i.Concept(),
		Prorated:        i.Prorated(),
		Notes:           i.Notes(),
		PaymentMethodID: i.PaymentMethodID(),
	}
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
