package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

type countingValidator struct {
	name  string
	err   error
	calls atomic.Int32
}

func (c *countingValidator) Name() string { return c.name }

func (c *countingValidator) CheckRunnable(context.Context, pipeline.Pipeline) error {
	c.calls.Add(1)
	return c.err
}

func passing(name string) *countingValidator { return &countingValidator{name: name} }

func failing(name string, kind pipeline.FailureKind) *countingValidator {
	return &countingValidator{
		name: name,
		err:  pipeline.NewValidationFailure(kind, "", name, name+" refused", nil, nil),
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	counters []metricRecord
	observed []metricRecord
}

type metricRecord struct {
	name   string
	labels map[string]string
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, metricRecord{name: name, labels: labels})
}

func (m *recordingMetrics) SetGauge(context.Context, string, float64, map[string]string) {}

func (m *recordingMetrics) ObserveHistogram(_ context.Context, name string, _ float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = append(m.observed, metricRecord{name: name, labels: labels})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.DomainEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, event ports.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingPublisher) Subscribe(string, ports.EventHandler) (ports.Subscription, error) {
	return nil, nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}
