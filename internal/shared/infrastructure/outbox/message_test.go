package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invoicePaid struct {
	domain.BaseEvent
	Number string `json:"number"`
}

func newInvoicePaid(number string) *invoicePaid {
	return &invoicePaid{
		BaseEvent: domain.NewBaseEvent(uuid.New(), "Invoice", "billing.invoice.paid", time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)),
		Number:    number,
	}
}

func TestNewMessage(t *testing.T) {
	event := newInvoicePaid("FAC-202510-00001")
	correlation := uuid.New()
	event.SetMetadata(domain.EventMetadata{CorrelationID: correlation})

	msg, err := NewMessage(event)
	require.NoError(t, err)

	assert.Equal(t, event.EventID(), msg.EventID)
	assert.Equal(t, event.AggregateID(), msg.AggregateID)
	assert.Equal(t, "Invoice", msg.AggregateType)
	assert.Equal(t, "billing.invoice.paid", msg.RoutingKey)
	assert.Equal(t, event.OccurredAt(), msg.CreatedAt)
	assert.Nil(t, msg.PublishedAt, "a new message waits for the relay")
	assert.Nil(t, msg.NextRetryAt)
	assert.Zero(t, msg.RetryCount)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &body))
	assert.Equal(t, "billing.invoice.paid", body["event_type"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "FAC-202510-00001", data["number"])

	var meta domain.EventMetadata
	require.NoError(t, json.Unmarshal(msg.Metadata, &meta))
	assert.Equal(t, correlation, meta.CorrelationID)
}

func TestFromEvents(t *testing.T) {
	msgs, err := FromEvents([]domain.DomainEvent{newInvoicePaid("a"), newInvoicePaid("b")})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.NotEqual(t, msgs[0].EventID, msgs[1].EventID)

	empty, err := FromEvents(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
