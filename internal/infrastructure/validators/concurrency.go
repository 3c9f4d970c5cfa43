package validators

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// NameConcurrencyLimit is the registry name of the concurrent execution check.
const NameConcurrencyLimit = "concurrent-execution-limit"

// ConcurrencyLimit rejects pipelines that limit concurrency and already have
// as many executions running as they allow.
type ConcurrencyLimit struct {
	executions   ports.ExecutionStore
	defaultLimit int
	failClosed   bool
}

// NewConcurrencyLimit returns the concurrency validator. defaultLimit applies
// to pipelines that set LimitConcurrent without a maximum; values below one
// mean one.
func NewConcurrencyLimit(executions ports.ExecutionStore, defaultLimit int, failClosed bool) *ConcurrencyLimit {
	if defaultLimit < 1 {
		defaultLimit = 1
	}
	return &ConcurrencyLimit{executions: executions, defaultLimit: defaultLimit, failClosed: failClosed}
}

// Name implements ports.PipelineValidator.
func (*ConcurrencyLimit) Name() string { return NameConcurrencyLimit }

// CheckRunnable implements ports.PipelineValidator.
func (v *ConcurrencyLimit) CheckRunnable(ctx context.Context, p pipeline.Pipeline) error {
	if !p.LimitConcurrent {
		return nil
	}

	limit := p.MaxConcurrentExecutions
	if limit <= 0 {
		limit = v.defaultLimit
	}

	running, err := v.executions.CountRunning(ctx, p.ID)
	if err != nil {
		return storeFault(v.failClosed, NameConcurrencyLimit, p, "running execution count", err)
	}
	if running < limit {
		return nil
	}

	return pipeline.NewValidationFailure(
		pipeline.FailureConcurrencyLimit,
		p.ID,
		NameConcurrencyLimit,
		fmt.Sprintf("pipeline %s already has %d of %d allowed executions running", p.ID, running, limit),
		nil,
		map[string]interface{}{"running": running, "limit": limit},
	)
}

var _ ports.PipelineValidator = (*ConcurrencyLimit)(nil)
