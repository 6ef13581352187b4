package domain

import (
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusActive     SubscriptionStatus = "active"
	StatusCancelled  SubscriptionStatus = "cancelled"
	StatusDelinquent SubscriptionStatus = "delinquent"
	StatusSuspended  SubscriptionStatus = "suspended"
	StatusExpired    SubscriptionStatus = "expired"
)

// ParseSubscriptionStatus accepts the persisted lowercase names.
func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	switch st := SubscriptionStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusCancelled, StatusDelinquent, StatusSuspended, StatusExpired:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Subscription is a user's enrollment in a plan. Price is frozen at creation.
type Subscription struct {
	sharedDomain.BaseAggregateRoot
	userID         uuid.UUID
	planID         uuid.UUID
	startDate      time.Time
	endDate        *time.Time
	nextChargeDate time.Time
	status         SubscriptionStatus
	autoRenew      bool
	price          decimal.Decimal
	cancelledAt    *time.Time
	cancelReason   string
	createdBy      string
	updatedBy      string
}

// NewSubscription starts an active, auto-renewing subscription on today.
// A zero price takes the plan's monthly price.
func NewSubscription(userID uuid.UUID, plan *Plan, price decimal.Decimal, today, now time.Time, actor string) (*Subscription, error) {
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if price.IsZero() {
		price = plan.MonthlyPrice
	}
	today = sharedDomain.DateOf(today)

	s := &Subscription{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(now),
		userID:            userID,
		planID:            plan.ID,
		startDate:         today,
		nextChargeDate:    sharedDomain.AddMonths(today, 1),
		status:            StatusActive,
		autoRenew:         true,
		price:             RoundMoney(price),
		createdBy:         actor,
		updatedBy:         actor,
	}

	s.AddDomainEvent(&SubscriptionCreated{
		BaseEvent:      subscriptionEvent(s.ID(), RoutingKeySubscriptionCreated, now),
		UserID:         userID,
		PlanID:         plan.ID,
		Price:          s.price,
		NextChargeDate: s.nextChargeDate.Format(time.DateOnly),
	})
	return s, nil
}

// SubscriptionState carries persisted fields for RehydrateSubscription.
type SubscriptionState struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	PlanID         uuid.UUID
	StartDate      time.Time
	EndDate        *time.Time
	NextChargeDate time.Time
	Status         SubscriptionStatus
	AutoRenew      bool
	Price          decimal.Decimal
	CancelledAt    *time.Time
	CancelReason   string
	CreatedBy      string
	UpdatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int
}

// RehydrateSubscription recreates a subscription from persisted state.
func RehydrateSubscription(st SubscriptionState) *Subscription {
	return &Subscription{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(st.ID, st.CreatedAt, st.UpdatedAt), st.Version),
		userID:         st.UserID,
		planID:         st.PlanID,
		startDate:      st.StartDate,
		endDate:        st.EndDate,
		nextChargeDate: st.NextChargeDate,
		status:         st.Status,
		autoRenew:      st.AutoRenew,
		price:          st.Price,
		cancelledAt:    st.CancelledAt,
		cancelReason:   st.CancelReason,
		createdBy:      st.CreatedBy,
		updatedBy:      st.UpdatedBy,
	}
}

// Getters

func (s *Subscription) UserID() uuid.UUID          { return s.userID }
func (s *Subscription) PlanID() uuid.UUID          { return s.planID }
func (s *Subscription) StartDate() time.Time       { return s.startDate }
func (s *Subscription) EndDate() *time.Time        { return s.endDate }
func (s *Subscription) NextChargeDate() time.Time  { return s.nextChargeDate }
func (s *Subscription) Status() SubscriptionStatus { return s.status }
func (s *Subscription) AutoRenew() bool            { return s.autoRenew }
func (s *Subscription) Price() decimal.Decimal     { return s.price }
func (s *Subscription) CancelledAt() *time.Time    { return s.cancelledAt }
func (s *Subscription) CancelReason() string       { return s.cancelReason }
func (s *Subscription) CreatedBy() string          { return s.createdBy }
func (s *Subscription) UpdatedBy() string          { return s.updatedBy }
func (s *Subscription) IsActive() bool             { return s.status == StatusActive }

// IsDueOn reports whether the renewal batch for today should charge this subscription.
func (s *Subscription) IsDueOn(today time.Time) bool {
	return s.status == StatusActive && s.autoRenew && !s.nextChargeDate.After(sharedDomain.DateOf(today))
}

// IsPastGrace reports whether the charge date is more than graceDays behind today.
func (s *Subscription) IsPastGrace(today time.Time, graceDays int) bool {
	cutoff := sharedDomain.DateOf(today).AddDate(0, 0, -graceDays)
	return s.status == StatusActive && s.nextChargeDate.Before(cutoff)
}

// Renew records a settled charge: the next charge date moves forward by one
// calendar month. The start date never changes.
func (s *Subscription) Renew(invoice *Invoice, now time.Time, actor string) error {
	if !s.IsActive() {
		return ErrSubscriptionNotActive
	}
	previous := s.nextChargeDate
	s.nextChargeDate = sharedDomain.AddMonths(previous, 1)
	s.updatedBy = actor
	s.TouchAt(now)

	s.AddDomainEvent(&SubscriptionRenewed{
		BaseEvent:          subscriptionEvent(s.ID(), RoutingKeySubscriptionRenewed, now),
		UserID:             s.userID,
		InvoiceID:          invoice.ID(),
		InvoiceNumber:      invoice.Number(),
		PreviousChargeDate: previous.Format(time.DateOnly),
		NextChargeDate:     s.nextChargeDate.Format(time.DateOnly),
	})
	return nil
}

// RecordChargeFailure notes a declined charge without touching state; the
// sweeper decides later whether the subscription becomes delinquent.
func (s *Subscription) RecordChargeFailure(reason string, now time.Time) {
	s.AddDomainEvent(&SubscriptionChargeFailed{
		BaseEvent:      subscriptionEvent(s.ID(), RoutingKeySubscriptionChargeFailed, now),
		UserID:         s.userID,
		Amount:         s.price,
		Reason:         reason,
		NextChargeDate: s.nextChargeDate.Format(time.DateOnly),
	})
}

// MarkDelinquent demotes an active subscription. Other states are left alone.
func (s *Subscription) MarkDelinquent(graceDays int, now time.Time, actor string) bool {
	if s.status != StatusActive {
		return false
	}
	s.status = StatusDelinquent
	s.updatedBy = actor
	s.TouchAt(now)

	s.AddDomainEvent(&SubscriptionDelinquent{
		BaseEvent:      subscriptionEvent(s.ID(), RoutingKeySubscriptionDelinquent, now),
		UserID:         s.userID,
		NextChargeDate: s.nextChargeDate.Format(time.DateOnly),
		GraceDays:      graceDays,
	})
	return true
}

// ChangeStatus applies an explicit administrative transition. Cancelling
// stamps cancelledAt and ends the subscription today.
func (s *Subscription) ChangeStatus(to SubscriptionStatus, reason string, now time.Time, actor string) error {
	if _, err := ParseSubscriptionStatus(string(to)); err != nil {
		return err
	}
	if s.status == to {
		return nil
	}
	from := s.status
	s.status = to
	s.updatedBy = actor
	s.TouchAt(now)

	switch to {
	case StatusCancelled:
		cancelledAt := now.UTC()
		end := sharedDomain.DateOf(now)
		s.cancelledAt = &cancelledAt
		s.cancelReason = strings.TrimSpace(reason)
		s.endDate = &end
		s.autoRenew = false
	case StatusActive:
		s.cancelledAt = nil
		s.cancelReason = ""
		s.endDate = nil
	}

	s.AddDomainEvent(&SubscriptionStatusChanged{
		BaseEvent: subscriptionEvent(s.ID(), RoutingKeySubscriptionStatusChanged, now),
		From:      from,
		To:        to,
		Reason:    reason,
	})
	return nil
}

// SetAutoRenew toggles automatic renewal.
func (s *Subscription) SetAutoRenew(on bool, now time.Time, actor string) {
	s.autoRenew = on
	s.updatedBy = actor
	s.TouchAt(now)
}

// UpdatePrice changes the frozen price explicitly.
func (s *Subscription) UpdatePrice(price decimal.Decimal, now time.Time, actor string) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	s.price = RoundMoney(price)
	s.updatedBy = actor
	s.TouchAt(now)
	return nil
}
