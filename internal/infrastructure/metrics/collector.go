package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

var help = map[string]string{
	"pipegate_checks_total":                 "Total number of runnable checks by outcome and failure kind",
	"pipegate_check_duration_seconds":       "Latency of runnable checks in seconds",
	"pipegate_worker_polls_total":           "Total number of start queue polls",
	"pipegate_worker_empty_receives_total":  "Total number of start queue polls that returned nothing",
	"pipegate_worker_poll_errors_total":     "Total number of start requests that failed or named an unknown pipeline",
	"pipegate_worker_queue_depth":           "Start requests waiting in the queue",
	"pipegate_worker_in_flight":             "Start requests received but not yet acknowledged",
	"pipegate_events_published_total":       "Total number of published events by type",
	"pipegate_event_handler_failures_total": "Total number of event handler failures by event type",
}

type vec struct {
	labels    []string
	counter   *prometheus.CounterVec
	gauge     *prometheus.GaugeVec
	histogram *prometheus.HistogramVec
}

// Collector implements ports.MetricsCollector on a dedicated Prometheus
// registry. Metric vectors are created on first use; the label names seen
// first are fixed for the lifetime of the metric and later observations with
// a different label set are dropped.
type Collector struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	vecs     map[string]*vec
	logger   ports.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger reports dropped observations.
func WithLogger(logger ports.Logger) Option {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger.With("component", "metrics")
		}
	}
}

// NewCollector creates a collector backed by a fresh registry.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		vecs:     make(map[string]*vec),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RegisterProcessCollectors adds the Go runtime and process collectors.
// Long-running commands call it once at startup.
func (c *Collector) RegisterProcessCollectors() error {
	for _, collector := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := c.registry.Register(collector); err != nil {
			return fmt.Errorf("register runtime collector: %w", err)
		}
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// IncCounter implements ports.MetricsCollector.
func (c *Collector) IncCounter(ctx context.Context, name string, labels map[string]string) {
	v := c.lookup(ctx, name, labels, func(names []string) (*vec, prometheus.Collector) {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: helpFor(name)}, names)
		return &vec{labels: names, counter: cv}, cv
	})
	if v == nil || v.counter == nil {
		c.dropped(ctx, name, "counter")
		return
	}
	v.counter.With(labels).Inc()
}

// SetGauge implements ports.MetricsCollector.
func (c *Collector) SetGauge(ctx context.Context, name string, value float64, labels map[string]string) {
	v := c.lookup(ctx, name, labels, func(names []string) (*vec, prometheus.Collector) {
		gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: helpFor(name)}, names)
		return &vec{labels: names, gauge: gv}, gv
	})
	if v == nil || v.gauge == nil {
		c.dropped(ctx, name, "gauge")
		return
	}
	v.gauge.With(labels).Set(value)
}

// ObserveHistogram implements ports.MetricsCollector.
func (c *Collector) ObserveHistogram(ctx context.Context, name string, value float64, labels map[string]string) {
	v := c.lookup(ctx, name, labels, func(names []string) (*vec, prometheus.Collector) {
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    helpFor(name),
			Buckets: prometheus.DefBuckets,
		}, names)
		return &vec{labels: names, histogram: hv}, hv
	})
	if v == nil || v.histogram == nil {
		c.dropped(ctx, name, "histogram")
		return
	}
	v.histogram.With(labels).Observe(value)
}

// lookup returns the vector for name, creating and registering it on first
// use. It returns nil when the label set does not match the registered one.
func (c *Collector) lookup(ctx context.Context, name string, labels map[string]string, create func([]string) (*vec, prometheus.Collector)) *vec {
	names := labelNames(labels)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.vecs[name]; ok {
		if !sameLabels(existing.labels, names) {
			return nil
		}
		return existing
	}

	v, collector := create(names)
	if err := c.registry.Register(collector); err != nil {
		if c.logger != nil {
			c.logger.Warn(ctx, "metric registration failed", "metric", name, "error", err)
		}
		return nil
	}
	c.vecs[name] = v
	return v
}

func (c *Collector) dropped(ctx context.Context, name, kind string) {
	if c.logger != nil {
		c.logger.Debug(ctx, "metric observation dropped", "metric", name, "type", kind)
	}
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return name
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var _ ports.MetricsCollector = (*Collector)(nil)
