package observability

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// severity orders statuses so the worst one wins when folding.
func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusUnhealthy:
		return 2
	case HealthStatusDegraded:
		return 1
	}
	return 0
}

type HealthCheckResult struct {
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

type HealthChecker func(ctx context.Context) HealthCheckResult

// HealthRegistry runs named dependency checks. A required dependency that
// fails makes the process unhealthy; an optional one only degrades it.
type HealthRegistry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	last     map[string]HealthCheckResult
}

func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{checkers: map[string]HealthChecker{}, last: map[string]HealthCheckResult{}}
}

// Register adds or replaces the check for name.
func (r *HealthRegistry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	r.checkers[name] = checker
	r.mu.Unlock()
}

// Check runs every check concurrently and remembers the results for
// OverallStatus.
func (r *HealthRegistry) Check(ctx context.Context) map[string]HealthCheckResult {
	r.mu.RLock()
	checkers := maps.Clone(r.checkers)
	r.mu.RUnlock()

	type named struct {
		name   string
		result HealthCheckResult
	}
	p := pool.NewWithResults[named]().WithContext(ctx)
	for name, check := range checkers {
		p.Go(func(ctx context.Context) (named, error) {
			start := time.Now()
			res := check(ctx)
			res.Duration = time.Since(start)
			res.Timestamp = time.Now()
			return named{name, res}, nil
		})
	}
	collected, _ := p.Wait()

	results := make(map[string]HealthCheckResult, len(collected))
	for _, n := range collected {
		results[n.name] = n.result
	}
	r.mu.Lock()
	r.last = results
	r.mu.Unlock()
	return results
}

// OverallStatus folds the results of the last Check.
func (r *HealthRegistry) OverallStatus() HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return worst(r.last)
}

func worst(results map[string]HealthCheckResult) HealthStatus {
	status := HealthStatusHealthy
	for _, res := range results {
		if res.Status.severity() > status.severity() {
			status = res.Status
		}
	}
	return status
}

type OverallHealth struct {
	Status    HealthStatus                 `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Checks    map[string]HealthCheckResult `json:"checks"`
}

func (r *HealthRegistry) GetOverallHealth(ctx context.Context) OverallHealth {
	checks := r.Check(ctx)
	return OverallHealth{Status: worst(checks), Timestamp: time.Now(), Checks: checks}
}

// LivenessHandler answers 200 while the process can serve HTTP at all.
func LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

// ReadinessHandler answers 503 only when a required dependency is down.
func (r *HealthRegistry) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		health := r.GetOverallHealth(ctx)
		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(health)
	})
}

func pingChecker(component string, onFailure HealthStatus, ping func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheckResult {
		if err := ping(ctx); err != nil {
			return HealthCheckResult{Status: onFailure, Message: component + " unreachable: " + err.Error()}
		}
		return HealthCheckResult{Status: HealthStatusHealthy, Message: component + " reachable"}
	}
}

// DatabaseHealthChecker is required: nothing bills without the database.
func DatabaseHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return pingChecker("database", HealthStatusUnhealthy, ping)
}

// RedisHealthChecker degrades; sequences and the run lock fall back to local state.
func RedisHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return pingChecker("redis", HealthStatusDegraded, ping)
}

// RabbitMQHealthChecker degrades; the outbox holds messages until the broker returns.
func RabbitMQHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return pingChecker("rabbitmq", HealthStatusDegraded, ping)
}
