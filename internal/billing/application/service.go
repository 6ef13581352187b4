package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/felixgeelhaar/billora/internal/audit"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
	sharedApplication "github.com/felixgeelhaar/billora/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/outbox"
)

// SystemActor authors changes made without an authenticated caller.
const SystemActor = "system"

// Service manages plans, subscriptions and invoices outside the renewal run.
type Service struct {
	plans         domain.PlanRepository
	subscriptions domain.SubscriptionRepository
	invoices      domain.InvoiceRepository
	outboxRepo    outbox.Repository
	uow           sharedApplication.UnitOfWork
	audit         audit.Recorder
	taxes         *TaxTable
	clock         sharedDomain.Clock
}

// NewService creates a billing service.
func NewService(
	plans domain.PlanRepository,
	subscriptions domain.SubscriptionRepository,
	invoices domain.InvoiceRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	recorder audit.Recorder,
	taxes *TaxTable,
	clock sharedDomain.Clock,
) *Service {
	if uow == nil {
		uow = sharedApplication.NoopUnitOfWork{}
	}
	if recorder == nil {
		recorder = audit.NoopRecorder{}
	}
	if taxes == nil {
		taxes = NewTaxTable()
	}
	return &Service{
		plans:         plans,
		subscriptions: subscriptions,
		invoices:      invoices,
		outboxRepo:    outboxRepo,
		uow:           uow,
		audit:         recorder,
		taxes:         taxes,
		clock:         clock,
	}
}

// TaxRates exposes the configured tax table.
func (s *Service) TaxRates() map[string]decimal.Decimal {
	return s.taxes.Rates()
}

// Plans

// PlanInput carries the editable fields of a plan.
type PlanInput struct {
	Name            string
	Tier            string
	MonthlyPrice    decimal.Decimal
	Description     string
	Features        []string
	MaxUsers        int
	StorageGB       int
	PrioritySupport bool
	Active          *bool
	DisplayOrder    int
}

func (in PlanInput) apply(p *domain.Plan) error {
	tier, err := domain.ParsePlanTier(in.Tier)
	if err != nil {
		return err
	}
	p.Name = strings.TrimSpace(in.Name)
	p.Tier = tier
	p.MonthlyPrice = domain.RoundMoney(in.MonthlyPrice)
	p.Description = in.Description
	p.Features = in.Features
	p.MaxUsers = in.MaxUsers
	p.StorageGB = in.StorageGB
	p.PrioritySupport = in.PrioritySupport
	p.DisplayOrder = in.DisplayOrder
	if in.Active != nil {
		p.Active = *in.Active
	}
	return p.Validate()
}

func (s *Service) CreatePlan(ctx context.Context, in PlanInput) (*domain.Plan, error) {
	tier, err := domain.ParsePlanTier(in.Tier)
	if err != nil {
		return nil, err
	}
	plan, err := domain.NewPlan(in.Name, tier, in.MonthlyPrice, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := in.apply(plan); err != nil {
		return nil, err
	}
	err = s.write(ctx, func(txCtx context.Context, actor string) error {
		if err := s.plans.Save(txCtx, plan); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.EntityPlan, plan.ID, audit.KindCreate, actor, NewPlanView(plan))
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// UpdatePlan edits a plan. Existing subscriptions keep their frozen price.
func (s *Service) UpdatePlan(ctx context.Context, id uuid.UUID, in PlanInput) (*domain.Plan, error) {
	var plan *domain.Plan
	err := s.write(ctx, func(txCtx context.Context, actor string) error {
		var err error
		plan, err = s.plans.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := in.apply(plan); err != nil {
			return err
		}
		plan.UpdatedAt = s.clock.Now().UTC()
		if err := s.plans.Save(txCtx, plan); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.EntityPlan, plan.ID, audit.KindUpdate, actor, NewPlanView(plan))
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	return s.plans.FindByID(ctx, id)
}

func (s *Service) ListPlans(ctx context.Context) ([]*domain.Plan, error) {
	return s.plans.FindAll(ctx)
}

func (s *Service) ListActivePlans(ctx context.Context) ([]*domain.Plan, error) {
	return s.plans.FindActive(ctx)
}

func (s *Service) DeletePlan(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func(txCtx context.Context, actor string) error {
		if err := s.plans.Delete(txCtx, id); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.EntityPlan, id, audit.KindDelete, actor, nil)
	})
}

// Subscriptions

// SubscribeInput opens a subscription. A nil Price takes the plan's price.
type SubscribeInput struct {
	UserID uuid.UUID
	PlanID uuid.UUID
	Price  *decimal.Decimal
}

// Subscribe starts an active, auto-renewing subscription today with the
// first charge one month out.
func (s *Service) Subscribe(ctx context.Context, in SubscribeInput) (*domain.Subscription, error) {
	plan, err := s.plans.FindByID(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	price := decimal.Zero
	if in.Price != nil {
		price = *in.Price
	}

	var sub *domain.Subscription
	err = s.write(ctx, func(txCtx context.Context, actor string) error {
		var err error
		sub, err = domain.NewSubscription(in.UserID, plan, price, sharedDomain.Today(s.clock), s.clock.Now(), actor)
		if err != nil {
			return err
		}
		if err := s.subscriptions.Save(txCtx, sub); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, audit.EntitySubscription, sub.ID(), audit.KindCreate, actor, NewSubscriptionView(sub)); err != nil {
			return err
		}
		return saveEvents(txCtx, s.outboxRepo, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) GetSubscription(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	return s.subscriptions.FindByID(ctx, id)
}

func (s *Service) ListSubscriptions(ctx context.Context) ([]*domain.Subscription, error) {
	return s.subscriptions.FindAll(ctx)
}

func (s *Service) ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	return s.subscriptions.FindByUser(ctx, userID)
}

func (s *Service) ListSubscriptionsByStatus(ctx context.Context, status string) ([]*domain.Subscription, error) {
	st, err := domain.ParseSubscriptionStatus(status)
	if err != nil {
		return nil, err
	}
	return s.subscriptions.FindByStatus(ctx, st)
}

// ChangeSubscriptionStatus applies an administrative status change.
func (s *Service) ChangeSubscriptionStatus(ctx context.Context, id uuid.UUID, status, reason string) (*domain.Subscription, error) {
	st, err := domain.ParseSubscriptionStatus(status)
	if err != nil {
		return nil, err
	}
	return s.updateSubscription(ctx, id, func(sub *domain.Subscription, actor string) error {
		return sub.ChangeStatus(st, reason, s.clock.Now(), actor)
	})
}

// SetAutoRenew toggles automatic renewal.
func (s *Service) SetAutoRenew(ctx context.Context, id uuid.UUID, on bool) (*domain.Subscription, error) {
	return s.updateSubscription(ctx, id, func(sub *domain.Subscription, actor string) error {
		sub.SetAutoRenew(on, s.clock.Now(), actor)
		return nil
	})
}

func (s *Service) updateSubscription(ctx context.Context, id uuid.UUID, change func(*domain.Subscription, string) error) (*domain.Subscription, error) {
	var sub *domain.Subscription
	err := s.write(ctx, func(txCtx context.Context, actor string) error {
		var err error
		sub, err = s.subscriptions.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := change(sub, actor); err != nil {
			return err
		}
		if err := s.subscriptions.Save(txCtx, sub); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, audit.EntitySubscription, sub.ID(), audit.KindUpdate, actor, NewSubscriptionView(sub)); err != nil {
			return err
		}
		return saveEvents(txCtx, s.outboxRepo, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// DeleteSubscription removes a subscription and, by cascade, its invoices.
func (s *Service) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func(txCtx context.Context, actor string) error {
		if err := s.subscriptions.Delete(txCtx, id); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.EntitySubscription, id, audit.KindDelete, actor, nil)
	})
}

// Invoices

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return s.invoices.FindByID(ctx, id)
}

func (s *Service) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return s.invoices.FindByNumber(ctx, number)
}

func (s *Service) ListInvoices(ctx context.Context) ([]*domain.Invoice, error) {
	return s.invoices.FindAll(ctx)
}

func (s *Service) ListInvoicesByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Invoice, error) {
	return s.invoices.FindByUser(ctx, userID)
}

func (s *Service) ListInvoicesBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*domain.Invoice, error) {
	return s.invoices.FindBySubscription(ctx, subscriptionID)
}

func (s *Service) ListInvoicesByStatus(ctx context.Context, status string) ([]*domain.Invoice, error) {
	st, err := domain.ParseInvoiceStatus(status)
	if err != nil {
		return nil, err
	}
	return s.invoices.FindByStatus(ctx, st)
}

// ListInvoicesByIssueDate returns invoices issued within [from, to].
func (s *Service) ListInvoicesByIssueDate(ctx context.Context, from, to time.Time) ([]*domain.Invoice, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s is after %s", domain.ErrInvalidRange, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	return s.invoices.FindByIssueDateRange(ctx, sharedDomain.DateOf(from), sharedDomain.DateOf(to))
}

// ListInvoicesByTotal returns invoices whose total lies within [min, max].
func (s *Service) ListInvoicesByTotal(ctx context.Context, min, max decimal.Decimal) ([]*domain.Invoice, error) {
	if max.LessThan(min) {
		return nil, fmt.Errorf("%w: %s is above %s", domain.ErrInvalidRange, min, max)
	}
	return s.invoices.FindByTotalRange(ctx, min, max)
}

// ListOverdue returns pending invoices due before asOf. A zero asOf means today.
func (s *Service) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Invoice, error) {
	if asOf.IsZero() {
		asOf = sharedDomain.Today(s.clock)
	}
	return s.invoices.FindOverdue(ctx, sharedDomain.DateOf(asOf))
}

// PendingTotal sums the totals of pending invoices.
func (s *Service) PendingTotal(ctx context.Context) (decimal.Decimal, error) {
	return s.invoices.PendingTotal(ctx)
}

// MarkInvoicePaid settles an invoice now.
func (s *Service) MarkInvoicePaid(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return s.updateInvoice(ctx, id, func(inv *domain.Invoice) error {
		return inv.MarkPaid(s.clock.Now())
	})
}

// ChangeInvoiceStatus sets an explicit status. Totals are never recomputed.
func (s *Service) ChangeInvoiceStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Invoice, error) {
	st, err := domain.ParseInvoiceStatus(status)
	if err != nil {
		return nil, err
	}
	return s.updateInvoice(ctx, id, func(inv *domain.Invoice) error {
		return inv.ChangeStatus(st, s.clock.Now())
	})
}

func (s *Service) updateInvoice(ctx context.Context, id uuid.UUID, change func(*domain.Invoice) error) (*domain.Invoice, error) {
	var inv *domain.Invoice
	err := s.write(ctx, func(txCtx context.Context, actor string) error {
		var err error
		inv, err = s.invoices.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := change(inv); err != nil {
			return err
		}
		if err := s.invoices.Save(txCtx, inv); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, audit.EntityInvoice, inv.ID(), audit.KindUpdate, actor, NewInvoiceView(inv)); err != nil {
			return err
		}
		return saveEvents(txCtx, s.outboxRepo, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func(txCtx context.Context, actor string) error {
		if err := s.invoices.Delete(txCtx, id); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.EntityInvoice, id, audit.KindDelete, actor, nil)
	})
}

func (s *Service) write(ctx context.Context, fn func(txCtx context.Context, actor string) error) error {
	actor := actorFrom(ctx, SystemActor)
	return sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		return fn(txCtx, actor)
	})
}
