package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/pipegate/internal/application/gate"
	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/infrastructure/store/memory"
	"github.com/alexisbeaulieu97/pipegate/internal/infrastructure/validators"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event ports.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(ports.Event))
	return nil
}

func (p *recordingPublisher) Subscribe(string, ports.EventHandler) (ports.Subscription, error) {
	return nil, errors.New("not supported")
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type countingMetrics struct {
	mu       sync.Mutex
	counters map[string]int
}

func (m *countingMetrics) IncCounter(_ context.Context, name string, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int)
	}
	m.counters[name]++
}

func (m *countingMetrics) SetGauge(context.Context, string, float64, map[string]string)         {}
func (m *countingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *countingMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

type failingChecker struct {
	err error
}

func (c failingChecker) CheckRunnable(context.Context, pipeline.Pipeline) error { return c.err }

type harness struct {
	queue      *Queue
	clock      *fakeClock
	executions *memory.ExecutionStore
	quotas     *memory.QuotaStore
	events     *recordingPublisher
	metrics    *countingMetrics
	worker     *Worker
}

func newHarness(t *testing.T, checker ports.RunnableChecker) *harness {
	t.Helper()

	queue, clock := newTestQueue(time.Minute)
	repo := memory.NewPipelineRepository(
		pipeline.Pipeline{ID: "p1", Name: "deploy", Application: "shop"},
		pipeline.Pipeline{ID: "p2", Name: "legacy", Application: "shop", Disabled: true},
	)
	h := &harness{
		queue:      queue,
		clock:      clock,
		executions: memory.NewExecutionStore(),
		quotas:     memory.NewQuotaStore(memory.QuotaPolicy{PerMinute: 60, Burst: 10}),
		events:     &recordingPublisher{},
		metrics:    &countingMetrics{},
	}
	if checker == nil {
		chain, err := gate.NewChain(gate.ValidatorFunc("disabled", func(_ context.Context, p pipeline.Pipeline) error {
			if p.Disabled {
				return pipeline.NewValidationFailure(pipeline.FailureDisabled, p.ID, "disabled", "pipeline is disabled", nil, nil)
			}
			return nil
		}))
		require.NoError(t, err)
		checker = gate.New(chain)
	}

	h.worker = NewWorker(queue, repo, checker, h.executions, h.quotas,
		WithWorkerEvents(h.events),
		WithWorkerMetrics(h.metrics),
	)
	return h
}

func (h *harness) push(t *testing.T, pipelineID string) StartRequest {
	t.Helper()
	req, err := h.queue.Push(StartRequest{PipelineID: pipelineID, Trigger: "test"}, 0)
	require.NoError(t, err)
	return req
}

func TestWorkerStartsAdmittedPipeline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, nil)
	req := h.push(t, "p1")

	received, err := h.worker.PollOnce(ctx)
	require.NoError(t, err)
	require.True(t, received)

	running, err := h.executions.CountRunning(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, running)

	remaining, err := h.quotas.Remaining(ctx, "shop")
	require.NoError(t, err)
	assert.Less(t, remaining, 10.0, "admission consumes quota")

	assert.Equal(t, []string{ports.EventExecutionStarted}, h.events.types())
	assert.Equal(t, req.ID, h.events.events[0].Data["execution_id"], "the request id names the execution")
	require.NoError(t, h.executions.MarkCompleted(ctx, "p1", req.ID))
	assert.Zero(t, h.queue.Len(), "admitted requests are acknowledged")
}

func TestWorkerAcknowledgesRejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, nil)
	h.push(t, "p2")

	received, err := h.worker.PollOnce(ctx)
	require.NoError(t, err)
	require.True(t, received)

	running, err := h.executions.CountRunning(ctx, "p2")
	require.NoError(t, err)
	assert.Zero(t, running)

	assert.Equal(t, []string{ports.EventExecutionRejected}, h.events.types())
	assert.Equal(t, string(pipeline.FailureDisabled), h.events.events[0].Data["failure_kind"])
	assert.Zero(t, h.queue.Len(), "rejections are not retried")
}

func TestWorkerLeavesInfrastructureErrorsForRedelivery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storeDown := errors.New("execution store unreachable")
	h := newHarness(t, failingChecker{err: storeDown})
	h.push(t, "p1")

	received, err := h.worker.PollOnce(ctx)
	require.True(t, received)
	require.ErrorIs(t, err, storeDown)
	assert.Equal(t, 1, h.queue.Len())
	assert.Equal(t, 1, h.metrics.count(metricPollErrors))
	assert.Empty(t, h.events.types())

	h.clock.Advance(time.Minute)
	require.Equal(t, 1, h.queue.RedeliverExpired())
	d, ok := h.queue.Poll()
	require.True(t, ok)
	assert.Equal(t, 2, d.Attempt)
}

func TestWorkerDropsUnknownPipelines(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, nil)
	h.push(t, "ghost")

	received, err := h.worker.PollOnce(ctx)
	require.NoError(t, err)
	require.True(t, received)
	assert.Zero(t, h.queue.Len())
	assert.Equal(t, 1, h.metrics.count(metricPollErrors), "unknown pipelines count as poll errors")
}

func TestWorkerCountsEmptyReceives(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	received, err := h.worker.PollOnce(context.Background())
	require.NoError(t, err)
	require.False(t, received)
	assert.Equal(t, 1, h.metrics.count(metricPolls))
	assert.Equal(t, 1, h.metrics.count(metricEmptyReceives))
}

func TestWorkerRunDrainsQueueUntilCancelled(t *testing.T) {
	t.Parallel()

	queue := NewQueue(time.Minute)
	executions := memory.NewExecutionStore()
	repo := memory.NewPipelineRepository(
		pipeline.Pipeline{ID: "a", Name: "a", Application: "shop"},
		pipeline.Pipeline{ID: "b", Name: "b", Application: "shop"},
		pipeline.Pipeline{ID: "c", Name: "c", Application: "shop"},
	)
	worker := NewWorker(queue, repo, gate.New(nil), executions, nil,
		WithConcurrency(2),
		WithPollInterval(5*time.Millisecond),
	)

	for _, id := range []string{"a", "b", "c"} {
		_, err := queue.Push(StartRequest{PipelineID: id}, 0)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool { return queue.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}

	for _, id := range []string{"a", "b", "c"} {
		running, err := executions.CountRunning(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 1, running, id)
	}
}

type brokenQuotas struct {
	err error
}

func (q brokenQuotas) Remaining(context.Context, string) (float64, error) { return 1, nil }

func (q brokenQuotas) Consume(context.Context, string) error { return q.err }

// slowRead widens the window between the limit check and MarkStarted.
func slowRead(d time.Duration) ports.PipelineValidator {
	return gate.ValidatorFunc("slow-read", func(ctx context.Context, _ pipeline.Pipeline) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func runUntilDrained(t *testing.T, worker *Worker, queue *Queue) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool { return queue.Len() == 0 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorkerRunRespectsConcurrencyLimitAcrossHandlers(t *testing.T) {
	t.Parallel()

	const requests = 3
	queue := NewQueue(time.Minute)
	executions := memory.NewExecutionStore()
	repo := memory.NewPipelineRepository(pipeline.Pipeline{
		ID: "p1", Name: "deploy", Application: "shop", LimitConcurrent: true, MaxConcurrentExecutions: 1,
	})
	chain, err := gate.NewChain(validators.NewConcurrencyLimit(executions, 1, false), slowRead(20*time.Millisecond))
	require.NoError(t, err)

	events := &recordingPublisher{}
	worker := NewWorker(queue, repo, gate.New(chain), executions, nil,
		WithConcurrency(requests+1),
		WithPollInterval(5*time.Millisecond),
		WithWorkerEvents(events),
	)
	for i := 0; i < requests; i++ {
		_, err := queue.Push(StartRequest{PipelineID: "p1"}, 0)
		require.NoError(t, err)
	}

	runUntilDrained(t, worker, queue)

	running, err := executions.CountRunning(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, running)

	started, rejected := 0, 0
	for _, eventType := range events.types() {
		switch eventType {
		case ports.EventExecutionStarted:
			started++
		case ports.EventExecutionRejected:
			rejected++
		}
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, requests-1, rejected)
	assert.Zero(t, worker.admission.size(), "admission locks are released")
}

func TestWorkerRunRespectsQuotaAcrossHandlers(t *testing.T) {
	t.Parallel()

	queue := NewQueue(time.Minute)
	executions := memory.NewExecutionStore()
	quotas := memory.NewQuotaStore(memory.QuotaPolicy{PerMinute: 0.0001, Burst: 1})
	repo := memory.NewPipelineRepository(
		pipeline.Pipeline{ID: "a", Name: "a", Application: "shop"},
		pipeline.Pipeline{ID: "b", Name: "b", Application: "shop"},
		pipeline.Pipeline{ID: "c", Name: "c", Application: "shop"},
	)
	chain, err := gate.NewChain(validators.NewQuota(quotas, false), slowRead(20*time.Millisecond))
	require.NoError(t, err)

	worker := NewWorker(queue, repo, gate.New(chain), executions, quotas,
		WithConcurrency(4),
		WithPollInterval(5*time.Millisecond),
	)
	for _, id := range []string{"a", "b", "c"} {
		_, err := queue.Push(StartRequest{PipelineID: id}, 0)
		require.NoError(t, err)
	}

	runUntilDrained(t, worker, queue)

	total := 0
	for _, id := range []string{"a", "b", "c"} {
		running, err := executions.CountRunning(context.Background(), id)
		require.NoError(t, err)
		total += running
	}
	assert.Equal(t, 1, total, "a single quota token admits a single start")
}

func TestWorkerRollsBackWhenQuotaConsumeFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue, _ := newTestQueue(time.Minute)
	executions := memory.NewExecutionStore()
	repo := memory.NewPipelineRepository(pipeline.Pipeline{ID: "p1", Name: "deploy", Application: "shop"})
	metrics := &countingMetrics{}
	consumeErr := errors.New("quota backend unreachable")

	worker := NewWorker(queue, repo, gate.New(nil), executions, brokenQuotas{err: consumeErr},
		WithWorkerMetrics(metrics),
	)
	_, err := queue.Push(StartRequest{PipelineID: "p1"}, 0)
	require.NoError(t, err)

	received, err := worker.PollOnce(ctx)
	require.True(t, received)
	require.ErrorIs(t, err, consumeErr)

	running, err := executions.CountRunning(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, running, "the execution is rolled back")
	assert.Equal(t, 1, queue.InFlight(), "the request stays unacknowledged")
	assert.Equal(t, 1, metrics.count(metricPollErrors))
}

func TestWorkerPausedDoesNotPoll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, nil)
	h.push(t, "p1")

	h.worker.SetEnabled(false)
	require.False(t, h.worker.Enabled())
	received, err := h.worker.PollOnce(ctx)
	require.NoError(t, err)
	require.False(t, received)
	assert.Zero(t, h.metrics.count(metricPolls))
	assert.Equal(t, 1, h.queue.Len())

	h.worker.SetEnabled(true)
	received, err = h.worker.PollOnce(ctx)
	require.NoError(t, err)
	require.True(t, received)
	assert.Zero(t, h.queue.Len())
}
