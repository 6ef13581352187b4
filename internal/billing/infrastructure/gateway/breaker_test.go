package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

type stubGateway struct {
	calls    int
	approved bool
	err      error
}

func (g *stubGateway) Charge(context.Context, *domain.Subscription) (bool, error) {
	g.calls++
	return g.approved, g.err
}

func TestBreaker_PassesThroughAnswers(t *testing.T) {
	inner := &stubGateway{approved: true}
	b := NewBreaker(inner, BreakerConfig{}, nil)

	ok, err := b.Charge(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	inner.approved = false
	for i := 0; i < 10; i++ {
		ok, err = b.Charge(context.Background(), nil)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, "closed", b.State(), "declines never trip the breaker")
}

func TestBreaker_OpensAfterConsecutiveErrors(t *testing.T) {
	inner := &stubGateway{err: errors.New("connection reset")}
	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 3, OpenTimeout: time.Hour}, nil)

	for i := 0; i < 3; i++ {
		_, err := b.Charge(context.Background(), nil)
		require.Error(t, err)
	}
	assert.Equal(t, "open", b.State())

	ok, err := b.Charge(context.Background(), nil)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, 3, inner.calls, "open breaker does not reach the gateway")
}

func TestBreaker_HalfOpenTrialCloses(t *testing.T) {
	inner := &stubGateway{err: errors.New("timeout")}
	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 1, OpenTimeout: 20 * time.Millisecond}, nil)

	_, err := b.Charge(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "open", b.State())

	time.Sleep(40 * time.Millisecond)
	inner.err = nil
	inner.approved = true
	ok, err := b.Charge(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "closed", b.State())
}
