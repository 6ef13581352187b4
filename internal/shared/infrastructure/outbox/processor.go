package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

// ProcessorConfig tunes the relay from the outbox table to the broker.
type ProcessorConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     500 * time.Millisecond,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
	}
}

// Processor relays committed outbox rows to a Publisher. Delivery is at
// least once: a row is marked published only after Publish succeeds.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if config.RetryBackoffBase <= 0 {
		config.RetryBackoffBase = time.Second
	}
	if config.RetryBackoffMax <= 0 {
		config.RetryBackoffMax = time.Minute
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    logger.With("component", "outbox"),
		metrics:   observability.NoopMetrics{},
		now:       time.Now,
	}
}

// WithMetrics reports publish outcomes and lag to m.
func (p *Processor) WithMetrics(m observability.Metrics) *Processor {
	if m != nil {
		p.metrics = m
	}
	return p
}

// Start polls in the background until ctx ends or Stop is called. Calling
// Start on a running processor does nothing.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.running = true
	p.stop = make(chan struct{})

	p.wg.Add(1)
	go p.loop(ctx, p.stop)

	p.logger.Info("outbox processor started", "poll_interval", p.config.PollInterval, "batch_size", p.config.BatchSize)
	return nil
}

// Stop waits for the batch in flight to finish.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("outbox processor stopped")
}

func (p *Processor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Processor) loop(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := p.ProcessOnce(ctx); err != nil {
				p.logger.Error("failed to process outbox batch", observability.ErrorKey, err)
			}
		}
	}
}

// ProcessOnce relays one batch synchronously. Publish failures are recorded
// on the row and do not fail the batch.
func (p *Processor) ProcessOnce(ctx context.Context) error {
	messages, err := p.repo.GetUnpublished(ctx, p.config.BatchSize)
	if err != nil {
		p.noteError(err)
		return err
	}
	p.observeLag(messages)

	for _, msg := range messages {
		p.relay(ctx, msg)
	}
	return nil
}

func (p *Processor) relay(ctx context.Context, msg *Message) {
	err := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload)
	if err == nil {
		if err := p.repo.MarkPublished(ctx, msg.ID); err != nil {
			p.logger.Error("failed to mark message as published", "id", msg.ID, "event_id", msg.EventID, observability.ErrorKey, err)
			return
		}
		p.count(observability.MetricEventsPublished, func(s *Stats) { s.PublishedCount++ })
		return
	}

	p.logger.Warn("failed to publish message",
		append([]any{"id", msg.ID, "routing_key", msg.RoutingKey, "event_id", msg.EventID, observability.ErrorKey, err},
			traceAttrs(msg)...)...)
	p.noteError(err)

	if p.exhausted(msg) {
		p.count(observability.MetricEventsDead, func(s *Stats) { s.DeadCount++ })
		if markErr := p.repo.MarkDead(ctx, msg.ID, err.Error()); markErr != nil {
			p.logger.Error("failed to dead-letter message", "id", msg.ID, observability.ErrorKey, markErr)
		}
		return
	}

	p.count(observability.MetricEventsFailed, func(s *Stats) { s.FailedCount++ })
	retryAt := p.now().Add(p.retryBackoff(msg.RetryCount + 1))
	if markErr := p.repo.MarkFailed(ctx, msg.ID, err.Error(), retryAt); markErr != nil {
		p.logger.Error("failed to schedule message retry", "id", msg.ID, observability.ErrorKey, markErr)
	}
}

// exhausted reports whether this failure is the last one allowed.
func (p *Processor) exhausted(msg *Message) bool {
	return p.config.MaxRetries <= 0 || msg.RetryCount+1 >= p.config.MaxRetries
}

// retryBackoff is the delay before the given attempt: base doubling per
// attempt, capped at max, without jitter.
func (p *Processor) retryBackoff(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.RetryBackoffBase
	b.MaxInterval = p.config.RetryBackoffMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt && delay < b.MaxInterval; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// traceAttrs lifts correlation fields out of the stored metadata for logs.
func traceAttrs(msg *Message) []any {
	if len(msg.Metadata) == 0 {
		return nil
	}
	var meta domain.EventMetadata
	if err := json.Unmarshal(msg.Metadata, &meta); err != nil {
		return nil
	}
	return []any{
		"correlation_id", meta.CorrelationID.String(),
		"causation_id", meta.CausationID.String(),
		"actor_id", meta.ActorID.String(),
	}
}

// Stats is a snapshot of relay progress, served by the worker's /healthz.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

func (p *Processor) GetStats() Stats {
	running := p.IsRunning()
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	stats := p.stats
	stats.IsRunning = running
	return stats
}

func (p *Processor) count(metric string, bump func(*Stats)) {
	p.statsMu.Lock()
	bump(&p.stats)
	p.statsMu.Unlock()
	p.metrics.Counter(metric, 1)
}

func (p *Processor) noteError(err error) {
	now := p.now()
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.LastError = err.Error()
	p.stats.LastErrorAt = &now
}

func (p *Processor) observeLag(messages []*Message) {
	now := p.now()
	p.statsMu.Lock()
	p.stats.LastProcessedAt = &now
	if len(messages) == 0 {
		p.stats.LagSeconds = 0
		p.stats.OldestMessageAt = nil
		p.statsMu.Unlock()
		return
	}
	oldest := messages[0].CreatedAt
	for _, msg := range messages[1:] {
		if msg.CreatedAt.Before(oldest) {
			oldest = msg.CreatedAt
		}
	}
	p.stats.OldestMessageAt = &oldest
	p.stats.LagSeconds = now.Sub(oldest).Seconds()
	lag := p.stats.LagSeconds
	p.statsMu.Unlock()

	p.metrics.Gauge(observability.MetricOutboxLag, lag)
}
