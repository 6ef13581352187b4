package eventbus

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Publisher delivers outbox payloads to a broker under a routing key such
// as billing.invoice.issued.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// NoopPublisher drops every message. The container falls back to it in
// development when RabbitMQ is configured but unreachable, so outbox rows
// still drain instead of piling up.
type NoopPublisher struct {
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	n := p.dropped.Add(1)
	p.logger.Debug("event dropped, no broker", "routing_key", routingKey, "size", len(payload), "dropped_total", n)
	return nil
}

// Dropped reports how many messages were discarded.
func (p *NoopPublisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *NoopPublisher) Close() error {
	return nil
}
