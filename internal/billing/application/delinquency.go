package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/billora/internal/audit"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
	sharedApplication "github.com/felixgeelhaar/billora/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

// DefaultGraceDays is how long a missed charge stays active before the
// subscription becomes delinquent.
const DefaultGraceDays = 7

// SweeperActor is recorded as the author of delinquency changes.
const SweeperActor = "delinquency-sweeper"

// Sweeper demotes active subscriptions whose charge date lapsed past the
// grace period. Running it twice on the same day changes nothing the
// second time.
type Sweeper struct {
	subscriptions domain.SubscriptionRepository
	outboxRepo    outbox.Repository
	uow           sharedApplication.UnitOfWork
	audit         audit.Recorder
	clock         sharedDomain.Clock
	graceDays     int
	logger        *slog.Logger
	metrics       observability.Metrics
}

// NewSweeper creates a sweeper with the given grace period in days.
func NewSweeper(
	subscriptions domain.SubscriptionRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	recorder audit.Recorder,
	clock sharedDomain.Clock,
	graceDays int,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Sweeper {
	if uow == nil {
		uow = sharedApplication.NoopUnitOfWork{}
	}
	if recorder == nil {
		recorder = audit.NoopRecorder{}
	}
	if graceDays < 0 {
		graceDays = DefaultGraceDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Sweeper{
		subscriptions: subscriptions,
		outboxRepo:    outboxRepo,
		uow:           uow,
		audit:         recorder,
		clock:         clock,
		graceDays:     graceDays,
		logger:        logger.With("component", "delinquency"),
		metrics:       metrics,
	}
}

// GraceDays returns the configured grace period.
func (s *Sweeper) GraceDays() int { return s.graceDays }

// Sweep marks every lapsed subscription delinquent and returns how many
// changed. Each subscription commits on its own; a failed save is logged
// and the sweep continues.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	timer := observability.StartTimer("delinquency.sweep").WithMetrics(s.metrics)
	marked, err := s.sweep(ctx)
	timer.StopWithError(err)
	return marked, err
}

func (s *Sweeper) sweep(ctx context.Context) (int, error) {
	cutoff := sharedDomain.Today(s.clock).AddDate(0, 0, -s.graceDays)
	candidates, err := s.subscriptions.FindDelinquentCandidates(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list delinquent candidates: %w", err)
	}

	actor := actorFrom(ctx, SweeperActor)
	marked := 0
	for _, sub := range candidates {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		changed := false
		err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
			if changed = sub.MarkDelinquent(s.graceDays, s.clock.Now(), actor); !changed {
				return nil
			}
			if err := s.subscriptions.Save(txCtx, sub); err != nil {
				return err
			}
			if err := s.audit.Record(txCtx, audit.EntitySubscription, sub.ID(), audit.KindUpdate, actor, NewSubscriptionView(sub)); err != nil {
				return err
			}
			if err := saveEvents(txCtx, s.outboxRepo, sub); err != nil {
				return err
			}
			return nil
		})
		switch {
		case err != nil:
			s.logger.ErrorContext(ctx, "failed to mark subscription delinquent",
				"subscription_id", sub.ID(), observability.ErrorKey, err)
		case changed:
			marked++
		}
	}

	s.metrics.Counter(observability.MetricDelinquent, int64(marked))
	s.logger.InfoContext(ctx, "delinquency sweep finished",
		"candidates", len(candidates),
		"marked", marked,
		"cutoff", cutoff.Format(time.DateOnly))
	return marked, nil
}
