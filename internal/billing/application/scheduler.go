package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

// ErrRunInProgress is returned when a run starts while another holds the lock.
var ErrRunInProgress = errors.New("renewal run already in progress")

// SchedulerActor is recorded as the author of scheduled runs.
const SchedulerActor = "scheduler"

// RunLock keeps two renewal runs from overlapping.
type RunLock interface {
	// TryAcquire returns false when another run holds the lock.
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LocalRunLock guards runs within one process.
type LocalRunLock struct {
	held atomic.Bool
}

func (l *LocalRunLock) TryAcquire(context.Context) (bool, error) {
	return l.held.CompareAndSwap(false, true), nil
}

func (l *LocalRunLock) Release(context.Context) error {
	l.held.Store(false)
	return nil
}

// ScheduleConfig sets when the daily run fires.
type ScheduleConfig struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// DefaultSchedule fires at 00:05 local time.
func DefaultSchedule() ScheduleConfig {
	return ScheduleConfig{Hour: 0, Minute: 5, Location: time.Local}
}

// Spec renders the schedule as a standard five-field cron expression.
func (c ScheduleConfig) Spec() string {
	return fmt.Sprintf("%d %d * * *", c.Minute, c.Hour)
}

func (c ScheduleConfig) schedule() (cron.Schedule, error) {
	sched, err := cron.ParseStandard(c.Spec())
	if err != nil {
		return nil, fmt.Errorf("invalid renewal schedule %q: %w", c.Spec(), err)
	}
	if spec, ok := sched.(*cron.SpecSchedule); ok {
		spec.Location = c.Location
	}
	return sched, nil
}

// Scheduler runs the renewal batch and then the delinquency sweep, once a
// day or on demand.
type Scheduler struct {
	renewals *RenewalService
	sweeper  *Sweeper
	lock     RunLock
	clock    sharedDomain.Clock
	schedule ScheduleConfig
	logger   *slog.Logger
	metrics  observability.Metrics

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. A nil lock uses a LocalRunLock.
func NewScheduler(renewals *RenewalService, sweeper *Sweeper, lock RunLock, clock sharedDomain.Clock, schedule ScheduleConfig, logger *slog.Logger, metrics observability.Metrics) *Scheduler {
	if lock == nil {
		lock = &LocalRunLock{}
	}
	if schedule.Location == nil {
		schedule.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Scheduler{
		renewals: renewals,
		sweeper:  sweeper,
		lock:     lock,
		clock:    clock,
		schedule: schedule,
		logger:   logger.With("component", "scheduler"),
		metrics:  metrics,
	}
}

// RunOnce performs one full run: renew, then sweep. A sweep failure is
// returned alongside the renewal summary.
func (s *Scheduler) RunOnce(ctx context.Context) (RunSummary, error) {
	acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		s.metrics.Counter(observability.MetricBatchSkipped, 1)
		return RunSummary{}, ErrRunInProgress
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release run lock", observability.ErrorKey, err)
		}
	}()

	if observability.CorrelationIDFromContext(ctx) == "" {
		ctx = observability.WithCorrelationID(ctx, "")
	}

	summary, err := s.renewals.RunDailyBatch(ctx)
	if err != nil {
		return summary, err
	}

	marked, sweepErr := s.sweeper.Sweep(ctx)
	summary.Delinquent = marked
	summary.FinishedAt = s.clock.Now()

	s.logger.InfoContext(ctx, "renewal run finished",
		observability.CorrelationIDKey, observability.CorrelationIDFromContext(ctx),
		"renewed", summary.Renewed,
		"failed", summary.Failed,
		"delinquent", summary.Delinquent,
		observability.DurationKey, summary.Duration().Milliseconds())
	if sweepErr != nil {
		return summary, fmt.Errorf("delinquency sweep: %w", sweepErr)
	}
	return summary, nil
}

// NextRun returns the first scheduled instant strictly after from.
func (s *Scheduler) NextRun(from time.Time) time.Time {
	sched, err := s.schedule.schedule()
	if err != nil {
		return time.Time{}
	}
	return sched.Next(from)
}

// Start registers the daily job on a cron runner in the schedule's location.
// Runs keep going until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	sched, err := s.schedule.schedule()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(s.schedule.Location))
	c.Schedule(sched, cron.FuncJob(func() { s.fire(runCtx) }))
	c.Start()
	s.cron, s.cancel = c, cancel

	s.logger.Info("renewal runs scheduled",
		"cron", s.schedule.Spec(),
		"location", s.schedule.Location.String(),
		"next", sched.Next(s.clock.Now()).Format(time.RFC3339))
	return nil
}

// Stop halts the cron runner, cancels an in-flight run and waits for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

func (s *Scheduler) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	runCtx := observability.WithActorID(observability.WithCorrelationID(ctx, ""), SchedulerActor)
	if _, err := s.RunOnce(runCtx); err != nil {
		s.logger.ErrorContext(runCtx, "scheduled renewal run failed", observability.ErrorKey, err)
	}
}
