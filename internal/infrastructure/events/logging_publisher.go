package events

import (
	"context"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

const (
	metricEventsPublished = "pipegate_events_published_total"
	metricHandlerFailures = "pipegate_event_handler_failures_total"
)

// LoggingPublisher dispatches gate and worker events synchronously and writes
// one structured log entry per event.
type LoggingPublisher struct {
	logger  ports.Logger
	metrics ports.MetricsCollector

	mu       sync.RWMutex
	handlers map[string][]handlerEntry
	nextID   uint64
}

type handlerEntry struct {
	id      uint64
	handler ports.EventHandler
}

// Option configures a LoggingPublisher.
type Option func(*LoggingPublisher)

// WithMetrics counts published events and failed handlers per event type.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(p *LoggingPublisher) { p.metrics = metrics }
}

// NewLoggingPublisher creates a publisher logging through logger, which may be nil.
func NewLoggingPublisher(logger ports.Logger, opts ...Option) *LoggingPublisher {
	p := &LoggingPublisher{handlers: make(map[string][]handlerEntry)}
	if logger != nil {
		p.logger = logger.With("component", "events")
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish logs the event, then calls handlers subscribed to its type followed
// by wildcard handlers. A failing handler is logged and never stops delivery,
// so Publish only returns nil.
func (p *LoggingPublisher) Publish(ctx context.Context, event ports.DomainEvent) error {
	if p == nil || event == nil {
		return nil
	}
	eventType := event.EventType()

	p.mu.RLock()
	targets := make([]handlerEntry, 0, len(p.handlers[eventType])+len(p.handlers[AllEvents]))
	targets = append(targets, p.handlers[eventType]...)
	if eventType != AllEvents {
		targets = append(targets, p.handlers[AllEvents]...)
	}
	p.mu.RUnlock()

	p.log(ctx, eventType, payloadFields(event.Payload()))
	p.count(ctx, metricEventsPublished, eventType)

	for _, target := range targets {
		if err := target.handler(ctx, event); err != nil {
			p.count(ctx, metricHandlerFailures, eventType)
			if p.logger != nil {
				p.logger.Warn(ctx, "event handler failed", "event_type", eventType, "error", err)
			}
		}
	}
	return nil
}

// Subscribe registers handler for eventType, or for every event when
// eventType is AllEvents. Unsubscribe may be called more than once.
func (p *LoggingPublisher) Subscribe(eventType string, handler ports.EventHandler) (ports.Subscription, error) {
	if p == nil || handler == nil {
		return unsubscribeFunc(nil), nil
	}

	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.handlers[eventType] = append(p.handlers[eventType], handlerEntry{id: id, handler: handler})
	p.mu.Unlock()

	var once sync.Once
	return unsubscribeFunc(func() {
		once.Do(func() { p.remove(eventType, id) })
	}), nil
}

func (p *LoggingPublisher) remove(eventType string, id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.handlers[eventType]
	kept := make([]handlerEntry, 0, len(current))
	for _, entry := range current {
		if entry.id != id {
			kept = append(kept, entry)
		}
	}
	if len(kept) == 0 {
		delete(p.handlers, eventType)
		return
	}
	p.handlers[eventType] = kept
}

func (p *LoggingPublisher) log(ctx context.Context, eventType string, fields []interface{}) {
	if p.logger == nil {
		return
	}
	fields = append([]interface{}{"event_type", eventType}, fields...)
	if eventType == ports.EventGateErrored {
		p.logger.Warn(ctx, "event published", fields...)
		return
	}
	p.logger.Debug(ctx, "event published", fields...)
}

func (p *LoggingPublisher) count(ctx context.Context, name, eventType string) {
	if p.metrics != nil {
		p.metrics.IncCounter(ctx, name, map[string]string{"event_type": eventType})
	}
}

// payloadFields flattens a map payload into sorted key/value pairs.
func payloadFields(payload interface{}) []interface{} {
	switch data := payload.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(data))
		for key := range data {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		fields := make([]interface{}, 0, len(keys)*2)
		for _, key := range keys {
			fields = append(fields, key, data[key])
		}
		return fields
	default:
		return []interface{}{"payload", data}
	}
}

type unsubscribeFunc func()

func (f unsubscribeFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

var _ ports.EventPublisher = (*LoggingPublisher)(nil)
