package observability

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics on a Prometheus registerer. Collectors
// are created on first use with the tag keys as label names, so a metric
// must always be recorded with the same tag keys.
type PrometheusMetrics struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics registers collectors on reg. Passing
// prometheus.DefaultRegisterer shares /metrics with promauto collectors.
func NewPrometheusMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *PrometheusMetrics {
	return &PrometheusMetrics{
		registerer: reg,
		gatherer:   gatherer,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Handler exposes the gathered metrics in the Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *PrometheusMetrics) Counter(name string, value int64, tags ...Tag) {
	keys, values := splitTags(tags)
	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = register(m.registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: promName(name),
			Help: name,
		}, keys))
		m.counters[name] = vec
	}
	m.mu.Unlock()
	if c, err := vec.GetMetricWithLabelValues(values...); err == nil {
		c.Add(float64(value))
	}
}

func (m *PrometheusMetrics) Gauge(name string, value float64, tags ...Tag) {
	keys, values := splitTags(tags)
	m.mu.Lock()
	vec, ok := m.gauges[name]
	if !ok {
		vec = register(m.registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: promName(name),
			Help: name,
		}, keys))
		m.gauges[name] = vec
	}
	m.mu.Unlock()
	if g, err := vec.GetMetricWithLabelValues(values...); err == nil {
		g.Set(value)
	}
}

func (m *PrometheusMetrics) Histogram(name string, value float64, tags ...Tag) {
	keys, values := splitTags(tags)
	m.mu.Lock()
	vec, ok := m.histograms[name]
	if !ok {
		vec = register(m.registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    promName(name),
			Help:    name,
			Buckets: prometheus.DefBuckets,
		}, keys))
		m.histograms[name] = vec
	}
	m.mu.Unlock()
	if h, err := vec.GetMetricWithLabelValues(values...); err == nil {
		h.Observe(value)
	}
}

// Timing records the duration in seconds on a histogram.
func (m *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.Histogram(name+".seconds", duration.Seconds(), tags...)
}

// register returns the already registered collector when another
// PrometheusMetrics (or a restart in tests) registered the same name.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func splitTags(tags []Tag) (keys, values []string) {
	sorted := append([]Tag(nil), tags...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	for _, t := range sorted {
		keys = append(keys, promName(t.Key))
		values = append(values, t.Value)
	}
	return keys, values
}

func promName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

var _ Metrics = (*PrometheusMetrics)(nil)
