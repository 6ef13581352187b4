package subscribers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

type captureSink struct {
	notices []Notice
	err     error
}

func (s *captureSink) Deliver(_ context.Context, n Notice) error {
	if s.err != nil {
		return s.err
	}
	s.notices = append(s.notices, n)
	return nil
}

func event(t *testing.T, key string, data any) *eventbus.ConsumedEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &eventbus.ConsumedEvent{EventID: uuid.New(), RoutingKey: key, Data: raw}
}

func TestNoticesSubscriber_Handle(t *testing.T) {
	sink := &captureSink{}
	metrics := observability.NewInMemoryMetrics()
	sub := NewNoticesSubscriber(sink, nil, metrics)
	ctx := context.Background()

	require.NoError(t, sub.Handle(ctx, event(t, domain.RoutingKeyInvoiceIssued,
		map[string]any{"number": "FAC-202510-00001", "total": "11.59"})))
	require.NoError(t, sub.Handle(ctx, event(t, domain.RoutingKeySubscriptionChargeFailed,
		map[string]any{"user_id": "u-1", "amount": "9.99", "reason": "declined"})))
	require.NoError(t, sub.Handle(ctx, event(t, domain.RoutingKeySubscriptionDelinquent,
		map[string]any{"user_id": "u-2", "grace_days": 7})))

	require.Len(t, sink.notices, 3)
	assert.Equal(t, "Factura FAC-202510-00001 emitida por 11.59", sink.notices[0].Subject)
	assert.Equal(t, "u-1", sink.notices[1].UserID)
	assert.Equal(t, "Suscripción morosa tras 7 días", sink.notices[2].Subject)
	assert.Equal(t, int64(1), metrics.GetCounter(MetricNotices, observability.T("kind", "charge_failed")))
}

func TestNoticesSubscriber_IgnoresUnknownAndReportsSinkErrors(t *testing.T) {
	sink := &captureSink{}
	sub := NewNoticesSubscriber(sink, nil, nil)

	require.NoError(t, sub.Handle(context.Background(), event(t, "billing.other", map[string]any{})))
	assert.Empty(t, sink.notices)

	sink.err = errors.New("smtp down")
	err := sub.Handle(context.Background(), event(t, domain.RoutingKeySubscriptionDelinquent,
		map[string]any{"user_id": "u-2", "grace_days": 7}))
	assert.ErrorContains(t, err, "smtp down")
}

func TestNoticesSubscriber_EventTypes(t *testing.T) {
	assert.ElementsMatch(t, []string{
		domain.RoutingKeyInvoiceIssued,
		domain.RoutingKeySubscriptionChargeFailed,
		domain.RoutingKeySubscriptionDelinquent,
	}, NewNoticesSubscriber(nil, nil, nil).EventTypes())
}
