package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

const (
	metricPolls         = "pipegate_worker_polls_total"
	metricEmptyReceives = "pipegate_worker_empty_receives_total"
	metricPollErrors    = "pipegate_worker_poll_errors_total"
	metricQueueDepth    = "pipegate_worker_queue_depth"
	metricInFlight      = "pipegate_worker_in_flight"
)

// Worker drains the start queue. Each request is loaded, checked by the gate
// and, when admitted, recorded as a running execution whose id is the request
// id. Check, MarkStarted and Consume run under a per-application lock so
// concurrent handlers cannot admit past a concurrency limit or quota.
type Worker struct {
	queue      *Queue
	pipelines  ports.PipelineRepository
	checker    ports.RunnableChecker
	executions ports.ExecutionStore
	quotas     ports.QuotaStore

	logger       ports.Logger
	metrics      ports.MetricsCollector
	events       ports.EventPublisher
	concurrency  int
	pollInterval time.Duration

	admission *keyedMutex
	enabled   atomic.Bool
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(logger ports.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger.With("component", "worker")
		}
	}
}

// WithWorkerMetrics sets the metrics collector.
func WithWorkerMetrics(metrics ports.MetricsCollector) WorkerOption {
	return func(w *Worker) { w.metrics = metrics }
}

// WithWorkerEvents sets the event publisher.
func WithWorkerEvents(events ports.EventPublisher) WorkerOption {
	return func(w *Worker) { w.events = events }
}

// WithConcurrency bounds how many requests Run handles at once.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithPollInterval sets how often Run polls the queue.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// NewWorker constructs a worker. quotas may be nil when quota is not metered.
func NewWorker(queue *Queue, pipelines ports.PipelineRepository, checker ports.RunnableChecker, executions ports.ExecutionStore, quotas ports.QuotaStore, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:        queue,
		pipelines:    pipelines,
		checker:      checker,
		executions:   executions,
		quotas:       quotas,
		concurrency:  4,
		pollInterval: 100 * time.Millisecond,
		admission:    newKeyedMutex(),
	}
	w.enabled.Store(true)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SetEnabled pauses or resumes polling. Requests already being handled
// finish; queued requests wait until the worker is enabled again.
func (w *Worker) SetEnabled(enabled bool) {
	if w.enabled.Swap(enabled) != enabled {
		w.info(context.Background(), "worker polling toggled", "enabled", enabled)
	}
}

// Enabled reports whether the worker polls the queue.
func (w *Worker) Enabled() bool {
	return w.enabled.Load()
}

// PollOnce receives at most one request and handles it synchronously. It
// reports whether a request was received. Requests that fail with an
// infrastructure error are left unacknowledged and the error is returned.
// A disabled worker receives nothing.
func (w *Worker) PollOnce(ctx context.Context) (bool, error) {
	if !w.Enabled() {
		return false, nil
	}
	delivery, ok := w.receive(ctx)
	if !ok {
		return false, nil
	}
	return true, w.handle(ctx, delivery)
}

// Run polls until ctx is done, handling requests on a bounded pool. It waits
// for in-flight handlers before returning.
func (w *Worker) Run(ctx context.Context) error {
	handlers := pool.New().WithMaxGoroutines(w.concurrency)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.info(ctx, "worker started", "concurrency", w.concurrency, "poll_interval", w.pollInterval.String())
	for {
		select {
		case <-ctx.Done():
			handlers.Wait()
			w.info(ctx, "worker stopped")
			return nil
		case <-ticker.C:
		}

		if released := w.queue.RedeliverExpired(); released > 0 {
			w.info(ctx, "redelivering unacknowledged start requests", "count", released)
		}
		for ctx.Err() == nil && w.Enabled() {
			delivery, ok := w.receive(ctx)
			if !ok {
				break
			}
			handlers.Go(func() {
				if err := w.handle(ctx, delivery); err != nil {
					w.logError(ctx, "start request will be retried", "request_id", delivery.Request.ID, "error", err)
				}
			})
		}
		if w.metrics != nil {
			w.metrics.SetGauge(ctx, metricQueueDepth, float64(w.queue.Len()), nil)
			w.metrics.SetGauge(ctx, metricInFlight, float64(w.queue.InFlight()), nil)
		}
	}
}

func (w *Worker) receive(ctx context.Context) (*Delivery, bool) {
	w.count(ctx, metricPolls)
	delivery, ok := w.queue.Poll()
	if !ok {
		w.count(ctx, metricEmptyReceives)
		return nil, false
	}
	return delivery, true
}

func (w *Worker) handle(ctx context.Context, delivery *Delivery) error {
	req := delivery.Request
	if ports.GetCorrelationID(ctx) == "" {
		ctx = ports.WithCorrelationID(ctx, req.ID)
	}

	p, err := w.pipelines.Get(ctx, req.PipelineID)
	if err != nil {
		var domainErr *pipeline.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == pipeline.ErrCodeNotFound {
			w.count(ctx, metricPollErrors)
			w.warn(ctx, "dropping start request for unknown pipeline", "request_id", req.ID, "pipeline_id", req.PipelineID)
			delivery.Ack()
			return nil
		}
		w.count(ctx, metricPollErrors)
		return fmt.Errorf("load pipeline %s: %w", req.PipelineID, err)
	}

	unlock := w.admission.Lock(p.Application)
	defer unlock()

	err = w.checker.CheckRunnable(ctx, *p)
	if failure, ok := pipeline.AsValidationFailure(err); ok {
		w.info(ctx, "start request rejected", "request_id", req.ID, "pipeline_id", p.ID, "failure_kind", string(failure.Kind), "reason", failure.Message)
		w.publish(ctx, ports.EventExecutionRejected, map[string]interface{}{
			"request_id":   req.ID,
			"pipeline_id":  p.ID,
			"application":  p.Application,
			"failure_kind": string(failure.Kind),
			"validator":    failure.Validator,
			"reason":       failure.Message,
		})
		delivery.Ack()
		return nil
	}
	if err != nil {
		w.count(ctx, metricPollErrors)
		return fmt.Errorf("check pipeline %s: %w", p.ID, err)
	}

	executionID := req.ID
	if err := w.executions.MarkStarted(ctx, p.ID, executionID); err != nil {
		w.count(ctx, metricPollErrors)
		return fmt.Errorf("record execution for pipeline %s: %w", p.ID, err)
	}
	if w.quotas != nil {
		if err := w.quotas.Consume(ctx, p.Application); err != nil {
			w.count(ctx, metricPollErrors)
			if rollbackErr := w.executions.MarkCompleted(context.WithoutCancel(ctx), p.ID, executionID); rollbackErr != nil {
				w.logError(ctx, "failed to roll back execution after quota error", "pipeline_id", p.ID, "execution_id", executionID, "error", rollbackErr)
			}
			return fmt.Errorf("consume quota for application %s: %w", p.Application, err)
		}
	}

	w.info(ctx, "execution started", "request_id", req.ID, "pipeline_id", p.ID, "execution_id", executionID, "attempt", delivery.Attempt)
	w.publish(ctx, ports.EventExecutionStarted, map[string]interface{}{
		"request_id":   req.ID,
		"pipeline_id":  p.ID,
		"application":  p.Application,
		"execution_id": executionID,
		"trigger":      req.Trigger,
	})
	delivery.Ack()
	return nil
}

func (w *Worker) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if w.events == nil {
		return
	}
	if err := w.events.Publish(ctx, ports.Event{Type: eventType, Data: data}); err != nil {
		w.warn(ctx, "failed to publish worker event", "event_type", eventType, "error", err)
	}
}

func (w *Worker) count(ctx context.Context, name string) {
	if w.metrics != nil {
		w.metrics.IncCounter(ctx, name, nil)
	}
}

func (w *Worker) info(ctx context.Context, msg string, fields ...interface{}) {
	if w.logger != nil {
		w.logger.Info(ctx, msg, fields...)
	}
}

func (w *Worker) warn(ctx context.Context, msg string, fields ...interface{}) {
	if w.logger != nil {
		w.logger.Warn(ctx, msg, fields...)
	}
}

func (w *Worker) logError(ctx context.Context, msg string, fields ...interface{}) {
	if w.logger != nil {
		w.logger.Error(ctx, msg, fields...)
	}
}
