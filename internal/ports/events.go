package ports

import "context"

const (
	// EventGateAccepted is emitted when every validator accepts a pipeline.
	EventGateAccepted = "gate.accepted"
	// EventGateRejected is emitted when a validator refuses a pipeline.
	EventGateRejected = "gate.rejected"
	// EventGateErrored is emitted when a validator fails with an infrastructure error.
	EventGateErrored = "gate.errored"
	// EventExecutionStarted is emitted by the worker after an admitted start request.
	EventExecutionStarted = "execution.started"
	// EventExecutionRejected is emitted by the worker when the gate refuses a start request.
	EventExecutionRejected = "execution.rejected"
)

// DomainEvent represents a significant occurrence within the domain or
// application layer.
type DomainEvent interface {
	EventType() string
	Payload() interface{}
}

// EventPublisher distributes events to interested subscribers. Dispatch is
// synchronous: Publish blocks until all handlers run. Implementations must be
// thread-safe.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
}

// EventHandler processes an event of a specific type. Failures should be
// returned rather than panicking so publishers can keep delivering.
type EventHandler func(context.Context, DomainEvent) error

// Subscription represents a registered handler.
type Subscription interface {
	Unsubscribe()
}

// Event is a plain DomainEvent carrying a map payload.
type Event struct {
	Type string
	Data map[string]interface{}
}

// EventType implements DomainEvent.
func (e Event) EventType() string { return e.Type }

// Payload implements DomainEvent.
func (e Event) Payload() interface{} { return e.Data }
