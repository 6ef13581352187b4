package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reachable(context.Context) error { return nil }

func TestHealthRegistry(t *testing.T) {
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("healthy when every check passes", func(t *testing.T) {
		reg := NewHealthRegistry()
		reg.Register("database", DatabaseHealthChecker(reachable))
		reg.Register("redis", RedisHealthChecker(reachable))

		health := reg.GetOverallHealth(context.Background())
		assert.Equal(t, HealthStatusHealthy, health.Status)
		assert.Len(t, health.Checks, 2)
	})

	t.Run("optional dependencies degrade", func(t *testing.T) {
		reg := NewHealthRegistry()
		reg.Register("database", DatabaseHealthChecker(reachable))
		reg.Register("rabbitmq", RabbitMQHealthChecker(down))

		health := reg.GetOverallHealth(context.Background())
		assert.Equal(t, HealthStatusDegraded, health.Status)
		assert.Contains(t, health.Checks["rabbitmq"].Message, "connection refused")
	})

	t.Run("database failure is unhealthy", func(t *testing.T) {
		reg := NewHealthRegistry()
		reg.Register("database", DatabaseHealthChecker(down))
		reg.Register("redis", RedisHealthChecker(down))

		assert.Equal(t, HealthStatusUnhealthy, reg.GetOverallHealth(context.Background()).Status)
	})
}

func TestHealthHandlers(t *testing.T) {
	reg := NewHealthRegistry()
	reg.Register("database", DatabaseHealthChecker(reachable))

	rec := httptest.NewRecorder()
	reg.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body OverallHealth
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, HealthStatusHealthy, body.Status)

	reg.Register("database", DatabaseHealthChecker(func(context.Context) error { return errors.New("down") }))
	rec = httptest.NewRecorder()
	reg.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
