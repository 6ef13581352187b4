package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/felixgeelhaar/billora/internal/shared/domain"
)

// EventConsumer reacts to the routing keys it declares, for example
// "billing.invoice.issued".
type EventConsumer interface {
	EventTypes() []string
	Handle(ctx context.Context, event *ConsumedEvent) error
}

// ConsumedEvent is the outbox envelope as it arrives from a bus. Data holds
// the event's own fields; Decode them into the concrete payload type.
type ConsumedEvent struct {
	EventID       uuid.UUID            `json:"event_id"`
	RoutingKey    string               `json:"event_type"`
	AggregateType string               `json:"aggregate_type"`
	AggregateID   uuid.UUID            `json:"aggregate_id"`
	OccurredAt    time.Time            `json:"occurred_at"`
	Metadata      domain.EventMetadata `json:"metadata"`
	Data          json.RawMessage      `json:"data"`
}

func (e *ConsumedEvent) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// decodeEnvelope falls back to the delivery's routing key when the body
// does not name one.
func decodeEnvelope(routingKey string, body []byte) (*ConsumedEvent, error) {
	var event ConsumedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}
	return &event, nil
}

// Registry fans each event out to every consumer of its routing key.
type Registry struct {
	mu     sync.RWMutex
	byKey  map[string][]EventConsumer
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{byKey: map[string][]EventConsumer{}, logger: logger}
}

func (r *Registry) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range consumer.EventTypes() {
		r.byKey[key] = append(r.byKey[key], consumer)
	}
}

// EventTypes lists the routing keys with at least one consumer. Queue
// bindings are derived from it.
func (r *Registry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.byKey)
}

func (r *Registry) ConsumerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.SumBy(lo.Values(r.byKey), func(cs []EventConsumer) int { return len(cs) })
}

// Dispatch hands event to each consumer of its routing key. A failing
// consumer does not stop the others; their errors are joined.
func (r *Registry) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	r.mu.RLock()
	consumers := r.byKey[event.RoutingKey]
	r.mu.RUnlock()

	var errs []error
	for _, c := range consumers {
		if err := c.Handle(ctx, event); err != nil {
			r.logger.ErrorContext(ctx, "event consumer failed",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
