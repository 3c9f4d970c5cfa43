package ports

import "context"

// MetricsCollector records quantitative observability signals. Metric names
// used across pipegate:
//   - Counters:
//     pipegate_checks_total{outcome="accepted|rejected|error", kind="..."}
//     pipegate_worker_polls_total
//     pipegate_worker_empty_receives_total
//     pipegate_worker_poll_errors_total
//     pipegate_events_published_total{event_type="..."}
//     pipegate_event_handler_failures_total{event_type="..."}
//   - Gauges:
//     pipegate_worker_queue_depth
//     pipegate_worker_in_flight
//   - Histograms:
//     pipegate_check_duration_seconds{outcome="..."}
type MetricsCollector interface {
	IncCounter(ctx context.Context, name string, labels map[string]string)
	SetGauge(ctx context.Context, name string, value float64, labels map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, labels map[string]string)
}
