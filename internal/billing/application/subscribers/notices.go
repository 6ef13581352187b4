// Package subscribers reacts to billing events coming off the bus.
package subscribers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

// MetricNotices counts customer notices by kind.
const MetricNotices = "billing.notices"

// Notice is what would be sent to the customer.
type Notice struct {
	Kind    string
	UserID  string
	Subject string
}

// NoticeSink delivers notices. The default sink logs them.
type NoticeSink interface {
	Deliver(ctx context.Context, n Notice) error
}

type logSink struct{ logger *slog.Logger }

func (s logSink) Deliver(_ context.Context, n Notice) error {
	s.logger.Info("billing notice", "kind", n.Kind, "user_id", n.UserID, "subject", n.Subject)
	return nil
}

// NoticesSubscriber turns renewal outcomes into customer notices.
type NoticesSubscriber struct {
	sink    NoticeSink
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewNoticesSubscriber creates a subscriber. A nil sink logs notices.
func NewNoticesSubscriber(sink NoticeSink, logger *slog.Logger, metrics observability.Metrics) *NoticesSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = logSink{logger: logger}
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &NoticesSubscriber{sink: sink, logger: logger, metrics: metrics}
}

func (s *NoticesSubscriber) EventTypes() []string {
	return []string{
		domain.RoutingKeyInvoiceIssued,
		domain.RoutingKeySubscriptionChargeFailed,
		domain.RoutingKeySubscriptionDelinquent,
	}
}

type invoiceIssuedPayload struct {
	Number string `json:"number"`
	Total  string `json:"total"`
}

type chargeFailedPayload struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type delinquentPayload struct {
	UserID    string `json:"user_id"`
	GraceDays int    `json:"grace_days"`
}

func (s *NoticesSubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var n Notice
	switch event.RoutingKey {
	case domain.RoutingKeyInvoiceIssued:
		var p invoiceIssuedPayload
		if err := event.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", event.RoutingKey, err)
		}
		n = Notice{Kind: "invoice_issued", Subject: fmt.Sprintf("Factura %s emitida por %s", p.Number, p.Total)}
	case domain.RoutingKeySubscriptionChargeFailed:
		var p chargeFailedPayload
		if err := event.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", event.RoutingKey, err)
		}
		n = Notice{Kind: "charge_failed", UserID: p.UserID, Subject: fmt.Sprintf("No pudimos cobrar %s", p.Amount)}
	case domain.RoutingKeySubscriptionDelinquent:
		var p delinquentPayload
		if err := event.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", event.RoutingKey, err)
		}
		n = Notice{Kind: "delinquent", UserID: p.UserID, Subject: fmt.Sprintf("Suscripción morosa tras %d días", p.GraceDays)}
	default:
		s.logger.Warn("unknown event type", "routing_key", event.RoutingKey)
		return nil
	}

	if err := s.sink.Deliver(ctx, n); err != nil {
		return fmt.Errorf("deliver %s notice: %w", n.Kind, err)
	}
	s.metrics.Counter(MetricNotices, 1, observability.T("kind", n.Kind))
	return nil
}
