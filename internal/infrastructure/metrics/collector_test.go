package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCollector()

	c.IncCounter(ctx, "pipegate_checks_total", map[string]string{"outcome": "accepted", "kind": ""})
	c.IncCounter(ctx, "pipegate_checks_total", map[string]string{"outcome": "rejected", "kind": "PIPELINE_DISABLED"})
	c.IncCounter(ctx, "pipegate_checks_total", map[string]string{"outcome": "rejected", "kind": "PIPELINE_DISABLED"})

	expected := `
# HELP pipegate_checks_total Total number of runnable checks by outcome and failure kind
# TYPE pipegate_checks_total counter
pipegate_checks_total{kind="",outcome="accepted"} 1
pipegate_checks_total{kind="PIPELINE_DISABLED",outcome="rejected"} 2
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "pipegate_checks_total"))
}

func TestCollectorDropsMismatchedLabels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCollector()

	c.IncCounter(ctx, "pipegate_worker_polls_total", nil)
	c.IncCounter(ctx, "pipegate_worker_polls_total", map[string]string{"unexpected": "x"})
	c.SetGauge(ctx, "pipegate_worker_polls_total", 3, nil)

	count, err := testutil.GatherAndCount(c.Registry(), "pipegate_worker_polls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollectorGaugesAndHistograms(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := NewCollector()

	c.SetGauge(ctx, "pipegate_worker_queue_depth", 4, nil)
	c.SetGauge(ctx, "pipegate_worker_queue_depth", 2, nil)
	c.ObserveHistogram(ctx, "pipegate_check_duration_seconds", 0.02, map[string]string{"outcome": "accepted"})
	c.ObserveHistogram(ctx, "pipegate_check_duration_seconds", 0.5, map[string]string{"outcome": "accepted"})

	expected := `
# HELP pipegate_worker_queue_depth Start requests waiting in the queue
# TYPE pipegate_worker_queue_depth gauge
pipegate_worker_queue_depth 2
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "pipegate_worker_queue_depth"))

	count, err := testutil.GatherAndCount(c.Registry(), "pipegate_check_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollectorHandler(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	require.NoError(t, c.RegisterProcessCollectors())
	require.Error(t, c.RegisterProcessCollectors(), "runtime collectors register once")
	c.IncCounter(context.Background(), "custom_total", nil)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "custom_total 1")
	assert.Contains(t, string(body), "# HELP custom_total custom_total")
	assert.Contains(t, string(body), "go_goroutines")
}
