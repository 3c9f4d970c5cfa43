package validators

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

func requireFailure(t *testing.T, err error, kind pipeline.FailureKind, validator string) *pipeline.ValidationFailure {
	t.Helper()
	failure, ok := pipeline.AsValidationFailure(err)
	require.True(t, ok, "expected validation failure, got %v", err)
	require.Equal(t, kind, failure.Kind)
	require.Equal(t, validator, failure.Validator)
	require.Equal(t, "p1", failure.PipelineID)
	return failure
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	v := NewDisabled()
	require.Equal(t, NameDisabled, v.Name())

	require.NoError(t, v.CheckRunnable(ctx, pipeline.Pipeline{ID: "p1", Disabled: false}))

	failure := requireFailure(t, v.CheckRunnable(ctx, pipeline.Pipeline{ID: "p1", Disabled: true}), pipeline.FailureDisabled, NameDisabled)
	assert.Contains(t, failure.Message, "p1")
	assert.Contains(t, failure.Message, "disabled")
}

func TestStageGraph(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	require.NoError(t, NewStageGraph(false).CheckRunnable(ctx, testPipeline()))
	require.NoError(t, NewStageGraph(false).CheckRunnable(ctx, pipeline.Pipeline{ID: "p1"}))

	failure := requireFailure(t, NewStageGraph(true).CheckRunnable(ctx, pipeline.Pipeline{ID: "p1"}), pipeline.FailureMalformed, NameStageGraph)
	assert.Equal(t, 0, failure.Context["stage_count"])

	cyclic := testPipeline()
	cyclic.Stages[0].RequisiteStageRefIDs = []string{"2"}
	failure = requireFailure(t, NewStageGraph(false).CheckRunnable(ctx, cyclic), pipeline.FailureMalformed, NameStageGraph)
	assert.Equal(t, string(pipeline.ErrCodeCycle), failure.Context["code"])
	assert.NotNil(t, failure.Context["path"])

	var domainErr *pipeline.DomainError
	assert.ErrorAs(t, failure, &domainErr, "the graph error stays reachable as the cause")
}

func TestLockout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	require.NoError(t, NewLockout(&stubLocks{}, false).CheckRunnable(ctx, testPipeline()))

	locks := &stubLocks{lock: &ports.Lock{
		Scope:      ports.LockScopeApplication,
		Target:     "shop",
		Owner:      "release-freeze",
		Reason:     "holiday",
		AcquiredAt: time.Now(),
	}}
	failure := requireFailure(t, NewLockout(locks, false).CheckRunnable(ctx, testPipeline()), pipeline.FailureLocked, NameLockout)
	assert.Equal(t, "release-freeze", failure.Context["lock_owner"])
	assert.Equal(t, "application", failure.Context["lock_scope"])
	assert.Contains(t, failure.Message, "application shop")
}

func TestConcurrencyLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name         string
		limit        bool
		max          int
		defaultLimit int
		running      int
		wantLimit    int
		rejected     bool
	}{
		{name: "not limited", limit: false, running: 10},
		{name: "below pipeline max", limit: true, max: 3, running: 2},
		{name: "at pipeline max", limit: true, max: 3, running: 3, rejected: true, wantLimit: 3},
		{name: "default limit of one", limit: true, running: 1, rejected: true, wantLimit: 1},
		{name: "configured default", limit: true, defaultLimit: 2, running: 1},
		{name: "configured default reached", limit: true, defaultLimit: 2, running: 2, rejected: true, wantLimit: 2},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &stubExecutions{running: tt.running}
			p := testPipeline()
			p.LimitConcurrent = tt.limit
			p.MaxConcurrentExecutions = tt.max

			err := NewConcurrencyLimit(store, tt.defaultLimit, false).CheckRunnable(ctx, p)
			if !tt.rejected {
				require.NoError(t, err)
				if !tt.limit {
					require.Zero(t, store.calls, "unlimited pipelines skip the store")
				}
				return
			}
			failure := requireFailure(t, err, pipeline.FailureConcurrencyLimit, NameConcurrencyLimit)
			assert.Equal(t, tt.running, failure.Context["running"])
			assert.Equal(t, tt.wantLimit, failure.Context["limit"])
		})
	}
}

func TestQuota(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store := &stubQuotas{remaining: 1}
	require.NoError(t, NewQuota(store, false).CheckRunnable(ctx, testPipeline()))
	require.Zero(t, store.consumed, "checking must not consume quota")

	failure := requireFailure(t, NewQuota(&stubQuotas{remaining: 0.4}, false).CheckRunnable(ctx, testPipeline()), pipeline.FailureQuotaExceeded, NameQuota)
	assert.Equal(t, "shop", failure.Context["application"])
}

func TestStoreErrorsPropagateUnlessFailClosed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limited := testPipeline()
	limited.LimitConcurrent = true

	open := []ports.PipelineValidator{
		NewLockout(&stubLocks{err: errStoreDown}, false),
		NewConcurrencyLimit(&stubExecutions{err: errStoreDown}, 1, false),
		NewQuota(&stubQuotas{err: errStoreDown}, false),
	}
	for _, v := range open {
		err := v.CheckRunnable(ctx, limited)
		require.ErrorIs(t, err, errStoreDown, v.Name())
		require.False(t, pipeline.IsValidationFailure(err), "%s must not reclassify store errors", v.Name())
	}

	closed := []ports.PipelineValidator{
		NewLockout(&stubLocks{err: errStoreDown}, true),
		NewConcurrencyLimit(&stubExecutions{err: errStoreDown}, 1, true),
		NewQuota(&stubQuotas{err: errStoreDown}, true),
	}
	for _, v := range closed {
		err := v.CheckRunnable(ctx, limited)
		failure := requireFailure(t, err, pipeline.FailureCheckUnavailable, v.Name())
		require.ErrorIs(t, failure, errStoreDown)
	}
}

func TestFailClosedDoesNotTranslateCancellation(t *testing.T) {
	t.Parallel()

	err := NewQuota(&stubQuotas{err: fmt.Errorf("lookup: %w", context.Canceled)}, true).CheckRunnable(context.Background(), testPipeline())
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, pipeline.IsValidationFailure(err))
}
