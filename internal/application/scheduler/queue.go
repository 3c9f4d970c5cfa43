package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StartRequest asks the worker to start a pipeline.
type StartRequest struct {
	ID         string    `json:"id"`
	PipelineID string    `json:"pipeline_id"`
	Trigger    string    `json:"trigger,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Delivery is a polled request awaiting acknowledgement.
type Delivery struct {
	Request StartRequest
	Attempt int

	queue *Queue
}

// Ack removes the request from the queue. Acknowledging a delivery that has
// since been redelivered is a no-op.
func (d *Delivery) Ack() {
	if d == nil || d.queue == nil {
		return
	}
	d.queue.ack(d.Request.ID, d.Attempt)
}

type entry struct {
	request  StartRequest
	seq      uint64
	readyAt  time.Time
	deadline time.Time
	attempts int
	inFlight bool
}

// Queue is an in-memory delay queue with at-least-once delivery. Ready
// requests are delivered in push order; a delivery that is not acknowledged
// within the ack timeout becomes ready again after RedeliverExpired.
type Queue struct {
	mu         sync.Mutex
	entries    map[string]*entry
	seq        uint64
	ackTimeout time.Duration
	now        func() time.Time
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueClock overrides the time source.
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewQueue creates a queue. ackTimeout defaults to one minute.
func NewQueue(ackTimeout time.Duration, opts ...QueueOption) *Queue {
	if ackTimeout <= 0 {
		ackTimeout = time.Minute
	}
	q := &Queue{
		entries:    make(map[string]*entry),
		ackTimeout: ackTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push enqueues req to become ready after delay. An empty ID is replaced by a
// generated one; the stored request is returned.
func (q *Queue) Push(req StartRequest, delay time.Duration) (StartRequest, error) {
	if req.PipelineID == "" {
		return StartRequest{}, fmt.Errorf("start request requires a pipeline id")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.entries[req.ID]; exists {
		return StartRequest{}, fmt.Errorf("start request %s already queued", req.ID)
	}
	now := q.now()
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = now
	}
	if delay < 0 {
		delay = 0
	}
	q.seq++
	q.entries[req.ID] = &entry{request: req, seq: q.seq, readyAt: now.Add(delay)}
	return req, nil
}

// Poll returns the oldest ready request, or false when none is ready.
func (q *Queue) Poll() (*Delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var next *entry
	for _, e := range q.entries {
		if e.inFlight || e.readyAt.After(now) {
			continue
		}
		if next == nil || e.seq < next.seq {
			next = e
		}
	}
	if next == nil {
		return nil, false
	}

	next.inFlight = true
	next.attempts++
	next.deadline = now.Add(q.ackTimeout)
	return &Delivery{Request: next.request, Attempt: next.attempts, queue: q}, true
}

// RedeliverExpired makes unacknowledged deliveries past their deadline ready
// again and reports how many were released.
func (q *Queue) RedeliverExpired() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	released := 0
	for _, e := range q.entries {
		if e.inFlight && !e.deadline.After(now) {
			e.inFlight = false
			e.readyAt = now
			released++
		}
	}
	return released
}

// Len reports queued plus in-flight requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// InFlight reports deliveries awaiting acknowledgement.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range q.entries {
		if e.inFlight {
			n++
		}
	}
	return n
}

func (q *Queue) ack(id string, attempt int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.entries[id]; ok && e.inFlight && e.attempts == attempt {
		delete(q.entries, id)
	}
}
