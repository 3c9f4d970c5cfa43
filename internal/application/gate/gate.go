package gate

import (
	"context"
	"time"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

const (
	metricChecksTotal   = "pipegate_checks_total"
	metricCheckDuration = "pipegate_check_duration_seconds"

	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeError    = "error"

	unknownKind = "UNKNOWN"
)

// Gate is the entry point schedulers and API handlers call before starting a
// pipeline. It delegates to its chain and returns the chain's result
// unchanged; logging, metrics and events are observation only.
type Gate struct {
	chain   *Chain
	logger  ports.Logger
	metrics ports.MetricsCollector
	events  ports.EventPublisher
	now     func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger used for decision records.
func WithLogger(logger ports.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger.With("component", "gate")
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics ports.MetricsCollector) Option {
	return func(g *Gate) { g.metrics = metrics }
}

// WithEvents sets the event publisher.
func WithEvents(events ports.EventPublisher) Option {
	return func(g *Gate) { g.events = events }
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// New constructs a Gate around chain. A nil chain behaves as an empty one.
func New(chain *Chain, opts ...Option) *Gate {
	if chain == nil {
		chain = &Chain{}
	}
	g := &Gate{chain: chain, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckRunnable returns nil when the pipeline may start, the validator's
// *pipeline.ValidationFailure when it may not, or the infrastructure error a
// validator raised.
func (g *Gate) CheckRunnable(ctx context.Context, p pipeline.Pipeline) error {
	start := g.now()
	err := g.chain.CheckRunnable(ctx, p)
	g.observe(ctx, p, err, g.now().Sub(start))
	return err
}

// Validators returns the configured validator names in evaluation order.
func (g *Gate) Validators() []string {
	return g.chain.Names()
}

func (g *Gate) observe(ctx context.Context, p pipeline.Pipeline, err error, elapsed time.Duration) {
	outcome := outcomeAccepted
	kind := ""
	eventType := ports.EventGateAccepted
	payload := map[string]interface{}{
		"pipeline_id": p.ID,
		"application": p.Application,
		"duration_ms": elapsed.Milliseconds(),
	}

	if failure, ok := pipeline.AsValidationFailure(err); ok {
		outcome = outcomeRejected
		kind = string(failure.Kind)
		eventType = ports.EventGateRejected
		payload["failure_kind"] = kind
		if !failure.Kind.Valid() {
			// Keeps the metric label set bounded.
			if g.logger != nil {
				g.logger.Warn(ctx, "validator returned unknown failure kind", "pipeline_id", p.ID, "validator", failure.Validator, "failure_kind", kind)
			}
			kind = unknownKind
		}
		payload["validator"] = failure.Validator
		payload["reason"] = failure.Message
	} else if err != nil {
		outcome = outcomeError
		eventType = ports.EventGateErrored
		payload["error"] = err.Error()
	}

	if g.logger != nil {
		switch outcome {
		case outcomeAccepted:
			g.logger.Debug(ctx, "pipeline accepted", "pipeline_id", p.ID, "validators", g.chain.Len(), "duration_ms", elapsed.Milliseconds())
		case outcomeRejected:
			g.logger.Info(ctx, "pipeline rejected", "pipeline_id", p.ID, "failure_kind", payload["failure_kind"], "validator", payload["validator"], "reason", payload["reason"])
		default:
			g.logger.Error(ctx, "pipeline validation errored", "pipeline_id", p.ID, "error", err)
		}
	}

	if g.metrics != nil {
		g.metrics.IncCounter(ctx, metricChecksTotal, map[string]string{"outcome": outcome, "kind": kind})
		g.metrics.ObserveHistogram(ctx, metricCheckDuration, elapsed.Seconds(), map[string]string{"outcome": outcome})
	}

	if g.events != nil {
		if pubErr := g.events.Publish(ctx, ports.Event{Type: eventType, Data: payload}); pubErr != nil && g.logger != nil {
			g.logger.Warn(ctx, "failed to publish gate event", "event_type", eventType, "error", pubErr)
		}
	}
}

var _ ports.RunnableChecker = (*Gate)(nil)
