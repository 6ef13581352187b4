package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/felixgeelhaar/billora/internal/audit"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
	sharedApplication "github.com/felixgeelhaar/billora/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

// Outcome is the result of processing one subscription.
type Outcome string

const (
	OutcomeRenewed Outcome = "renewed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// RenewalActor is recorded as the author of automatic renewals.
const RenewalActor = "renewal"

// DefaultConcurrency bounds how many subscriptions renew at once.
const DefaultConcurrency = 8

// RunSummary reports one batch run.
type RunSummary struct {
	Renewed    int       `json:"renewed"`
	Failed     int       `json:"failed"`
	Delinquent int       `json:"delinquent"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// RenewalDeps groups the orchestrator's collaborators.
type RenewalDeps struct {
	Subscriptions domain.SubscriptionRepository
	Invoices      domain.InvoiceRepository
	Outbox        outbox.Repository
	UnitOfWork    sharedApplication.UnitOfWork
	Generator     *InvoiceGenerator
	Gateway       ChargeGateway
	Audit         audit.Recorder
	Clock         sharedDomain.Clock
	Logger        *slog.Logger
	Metrics       observability.Metrics
	Concurrency   int
}

// RenewalService charges due subscriptions and advances their billing date.
type RenewalService struct {
	subscriptions domain.SubscriptionRepository
	invoices      domain.InvoiceRepository
	outboxRepo    outbox.Repository
	uow           sharedApplication.UnitOfWork
	generator     *InvoiceGenerator
	gateway       ChargeGateway
	audit         audit.Recorder
	clock         sharedDomain.Clock
	logger        *slog.Logger
	metrics       observability.Metrics
	concurrency   int
}

// NewRenewalService creates the orchestrator. Optional collaborators fall
// back to no-op implementations.
func NewRenewalService(deps RenewalDeps) *RenewalService {
	if deps.UnitOfWork == nil {
		deps.UnitOfWork = sharedApplication.NoopUnitOfWork{}
	}
	if deps.Audit == nil {
		deps.Audit = audit.NoopRecorder{}
	}
	if deps.Clock == nil {
		deps.Clock = sharedDomain.NewSystemClock(time.Local)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NoopMetrics{}
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = DefaultConcurrency
	}
	return &RenewalService{
		subscriptions: deps.Subscriptions,
		invoices:      deps.Invoices,
		outboxRepo:    deps.Outbox,
		uow:           deps.UnitOfWork,
		generator:     deps.Generator,
		gateway:       deps.Gateway,
		audit:         deps.Audit,
		clock:         deps.Clock,
		logger:        deps.Logger.With("component", "renewal"),
		metrics:       deps.Metrics,
		concurrency:   deps.Concurrency,
	}
}

// RunDailyBatch renews every subscription due today. One subscription's
// failure never affects the others; only a failure to list the due
// subscriptions is returned.
func (s *RenewalService) RunDailyBatch(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{StartedAt: s.clock.Now()}
	today := sharedDomain.Today(s.clock)

	due, err := s.subscriptions.FindDue(ctx, today)
	if err != nil {
		return summary, fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	logger := observability.LogOperation(s.logger, "renewal.batch", "due", len(due), "date", today.Format(time.DateOnly))
	logger.InfoContext(ctx, "renewal batch started")

	var renewed, failed atomic.Int64
	p := pool.New().WithMaxGoroutines(s.concurrency)
	for _, sub := range due {
		p.Go(func() {
			outcome, err := s.Renew(ctx, sub)
			if err != nil {
				logger.ErrorContext(ctx, "renewal failed",
					"subscription_id", sub.ID(), observability.ErrorKey, err)
			}
			switch outcome {
			case OutcomeRenewed:
				renewed.Add(1)
			case OutcomeFailed:
				failed.Add(1)
			}
		})
	}
	p.Wait()

	summary.Renewed = int(renewed.Load())
	summary.Failed = int(failed.Load())
	summary.FinishedAt = s.clock.Now()

	s.metrics.Counter(observability.MetricRenewals, int64(summary.Renewed))
	s.metrics.Counter(observability.MetricRenewalFailures, int64(summary.Failed))
	s.metrics.Timing(observability.MetricBatchDuration, summary.Duration())
	logger.InfoContext(ctx, "renewal batch finished",
		"renewed", summary.Renewed,
		"failed", summary.Failed,
		observability.DurationKey, summary.Duration().Milliseconds())

	return summary, nil
}

// Renew charges one subscription. On approval the invoice, the advanced
// subscription and their events commit together; on decline nothing but a
// charge_failed event is written. Panics are contained and reported as
// OutcomeFailed.
func (s *RenewalService) Renew(ctx context.Context, sub *domain.Subscription) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFailed
			err = fmt.Errorf("renewal of %s panicked: %v", sub.ID(), r)
		}
	}()

	if !sub.IsActive() {
		return OutcomeSkipped, nil
	}

	approved, err := s.gateway.Charge(ctx, sub)
	if err != nil {
		s.recordDecline(ctx, sub, err.Error())
		return OutcomeFailed, fmt.Errorf("charge for %s: %w", sub.ID(), err)
	}
	if !approved {
		s.recordDecline(ctx, sub, "declined")
		return OutcomeFailed, nil
	}

	invoice, err := s.generator.Generate(ctx, sub)
	if err != nil {
		return OutcomeFailed, err
	}

	actor := actorFrom(ctx, RenewalActor)
	now := s.clock.Now()
	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if err := s.invoices.Save(txCtx, invoice); err != nil {
			return fmt.Errorf("failed to save invoice %s: %w", invoice.Number(), err)
		}
		if err := sub.Renew(invoice, now, actor); err != nil {
			return err
		}
		if err := s.subscriptions.Save(txCtx, sub); err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}
		if err := s.audit.Record(txCtx, audit.EntityInvoice, invoice.ID(), audit.KindCreate, actor, NewInvoiceView(invoice)); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, audit.EntitySubscription, sub.ID(), audit.KindUpdate, actor, NewSubscriptionView(sub)); err != nil {
			return err
		}
		return s.saveEvents(txCtx, invoice, sub)
	})
	if err != nil {
		sub.ClearDomainEvents()
		return OutcomeFailed, err
	}

	s.metrics.Counter(observability.MetricInvoicesIssued, 1)
	s.metrics.Histogram(observability.MetricInvoiceTotal, invoice.Total().InexactFloat64())
	s.logger.InfoContext(ctx, "subscription renewed",
		"subscription_id", sub.ID(),
		"invoice", invoice.Number(),
		"total", invoice.Total().StringFixed(2),
		"next_charge_date", sub.NextChargeDate().Format(time.DateOnly))
	return OutcomeRenewed, nil
}

// ForceRenewal renews one subscription on demand, regardless of its charge
// date. Subscriptions that are not active or have auto-renew off are skipped.
func (s *RenewalService) ForceRenewal(ctx context.Context, id uuid.UUID) (Outcome, error) {
	sub, err := s.subscriptions.FindByID(ctx, id)
	if err != nil {
		return OutcomeFailed, err
	}
	if !sub.IsActive() || !sub.AutoRenew() {
		return OutcomeSkipped, nil
	}
	return s.Renew(ctx, sub)
}

func (s *RenewalService) recordDecline(ctx context.Context, sub *domain.Subscription, reason string) {
	sub.RecordChargeFailure(reason, s.clock.Now())
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		return s.saveEvents(txCtx, sub)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record charge failure",
			"subscription_id", sub.ID(), observability.ErrorKey, err)
	}
	sub.ClearDomainEvents()
}

type eventSource interface {
	DomainEvents() []sharedDomain.DomainEvent
	ClearDomainEvents()
}

// saveEvents stamps and stores the aggregates' pending events in the outbox.
func (s *RenewalService) saveEvents(ctx context.Context, sources ...eventSource) error {
	return saveEvents(ctx, s.outboxRepo, sources...)
}

func saveEvents(ctx context.Context, repo outbox.Repository, sources ...eventSource) error {
	var events []sharedDomain.DomainEvent
	for _, src := range sources {
		events = append(events, src.DomainEvents()...)
	}
	if len(events) == 0 || repo == nil {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events,
		sharedApplication.NewEventMetadata(observability.CorrelationUUID(ctx), actorUUID(ctx)))

	msgs, err := outbox.FromEvents(events)
	if err != nil {
		return err
	}
	if err := repo.SaveBatch(ctx, msgs); err != nil {
		return fmt.Errorf("failed to save outbox messages: %w", err)
	}
	for _, src := range sources {
		src.ClearDomainEvents()
	}
	return nil
}

func actorFrom(ctx context.Context, fallback string) string {
	if actor := observability.ActorIDFromContext(ctx); actor != "" {
		return actor
	}
	return fallback
}

func actorUUID(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(observability.ActorIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}
