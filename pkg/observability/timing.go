package observability

import (
	"log/slog"
	"time"
)

// Timer measures one operation. Stop reports it to whichever of the logger
// and metrics sink are attached; both are optional.
type Timer struct {
	operation string
	start     time.Time
	logger    *slog.Logger
	metrics   Metrics
	tags      []Tag
}

func StartTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

func (t *Timer) WithLogger(logger *slog.Logger) *Timer { t.logger = logger; return t }
func (t *Timer) WithMetrics(metrics Metrics) *Timer    { t.metrics = metrics; return t }
func (t *Timer) WithTags(tags ...Tag) *Timer           { t.tags = append(t.tags, tags...); return t }

func (t *Timer) Elapsed() time.Duration { return time.Since(t.start) }

func (t *Timer) Stop() time.Duration { return t.StopWithError(nil) }

// StopWithError logs failures at error level and successes at debug, then
// records duration, a total count and, on failure, an error count.
func (t *Timer) StopWithError(err error) time.Duration {
	elapsed := t.Elapsed()
	if t.logger != nil {
		attrs := []any{OperationKey, t.operation, DurationKey, elapsed.Milliseconds()}
		if err != nil {
			t.logger.Error("operation failed", append(attrs, ErrorKey, err.Error())...)
		} else {
			t.logger.Debug("operation completed", attrs...)
		}
	}
	if t.metrics == nil {
		return elapsed
	}
	tags := make([]Tag, 0, len(t.tags)+1)
	tags = append(append(tags, t.tags...), T(OperationKey, t.operation))
	t.metrics.Timing(MetricOperationDuration, elapsed, tags...)
	t.metrics.Counter(MetricOperationTotal, 1, tags...)
	if err != nil {
		t.metrics.Counter(MetricOperationErrors, 1, tags...)
	}
	return elapsed
}

// TimeOperation runs fn under a timer and returns its error unchanged.
func TimeOperation(logger *slog.Logger, metrics Metrics, operation string, fn func() error) error {
	t := StartTimer(operation).WithLogger(logger).WithMetrics(metrics)
	err := fn()
	t.StopWithError(err)
	return err
}
