package observability

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Metrics is the recording surface the billing services depend on. The
// worker and API export it through PrometheusMetrics; tests read it back
// from InMemoryMetrics.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is a metric label.
type Tag struct {
	Key   string
	Value string
}

func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Histogram(string, float64, ...Tag)    {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// series identifies one labelled metric. Labels are sorted so tag order
// does not split a series.
type series struct {
	name   string
	labels string
}

func seriesOf(name string, tags []Tag) series {
	if len(tags) == 0 {
		return series{name: name}
	}
	pairs := make([]string, len(tags))
	for i, t := range tags {
		pairs[i] = t.Key + "=" + t.Value
	}
	slices.Sort(pairs)
	return series{name: name, labels: strings.Join(pairs, ",")}
}

// InMemoryMetrics keeps every sample for assertions in tests.
type InMemoryMetrics struct {
	mu       sync.RWMutex
	counters map[series]int64
	gauges   map[series]float64
	samples  map[series][]float64
	timings  map[series][]time.Duration
}

func NewInMemoryMetrics() *InMemoryMetrics {
	m := &InMemoryMetrics{}
	m.Reset()
	return m
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	m.counters[seriesOf(name, tags)] += value
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	m.gauges[seriesOf(name, tags)] = value
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	key := seriesOf(name, tags)
	m.mu.Lock()
	m.samples[key] = append(m.samples[key], value)
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	key := seriesOf(name, tags)
	m.mu.Lock()
	m.timings[key] = append(m.timings[key], duration)
	m.mu.Unlock()
}

func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[seriesOf(name, tags)]
}

func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[seriesOf(name, tags)]
}

func (m *InMemoryMetrics) GetHistogram(name string, tags ...Tag) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.samples[seriesOf(name, tags)])
}

func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.timings[seriesOf(name, tags)])
}

// Reset drops every recorded series.
func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = map[series]int64{}
	m.gauges = map[series]float64{}
	m.samples = map[series][]float64{}
	m.timings = map[series][]time.Duration{}
}

// Metric names. PrometheusMetrics exports them with dots replaced by underscores.
const (
	MetricOperationTotal    = "billora.operation.total"
	MetricOperationDuration = "billora.operation.duration"
	MetricOperationErrors   = "billora.operation.errors"

	// Renewal engine
	MetricRenewals        = "billing.renewals"
	MetricRenewalFailures = "billing.renewal_failures"
	MetricDelinquent      = "billing.delinquent"
	MetricBatchDuration   = "billing.batch_duration"
	MetricBatchSkipped    = "billing.batch_skipped"
	MetricInvoicesIssued  = "billing.invoices_issued"
	MetricInvoiceTotal    = "billing.invoice_total"

	// Outbox and bus
	MetricEventsPublished = "billora.events.published"
	MetricEventsFailed    = "billora.events.failed"
	MetricEventsDead      = "billora.events.dead"
	MetricOutboxLag       = "billora.outbox.lag_seconds"
)
