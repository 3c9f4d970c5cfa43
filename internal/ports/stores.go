package ports

import (
	"context"
	"errors"
	"time"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
)

// ExecutionStore tracks running executions per pipeline. Implementations must
// be safe for concurrent use.
type ExecutionStore interface {
	CountRunning(ctx context.Context, pipelineID string) (int, error)
	MarkStarted(ctx context.Context, pipelineID, executionID string) error
	MarkCompleted(ctx context.Context, pipelineID, executionID string) error
}

// QuotaStore meters how many executions an application may start.
// Remaining must not consume quota; Consume is called once an execution has
// been admitted.
type QuotaStore interface {
	Remaining(ctx context.Context, application string) (float64, error)
	Consume(ctx context.Context, application string) error
}

// LockScope identifies what a lock applies to.
type LockScope string

const (
	LockScopeApplication LockScope = "application"
	LockScopePipeline    LockScope = "pipeline"
)

// Lock is an external-system lockout preventing new executions.
type Lock struct {
	Scope      LockScope
	Target     string
	Owner      string
	Reason     string
	AcquiredAt time.Time
}

// ErrLockConflict is wrapped by Acquire when another owner holds the target.
var ErrLockConflict = errors.New("lock held by another owner")

// LockStore exposes external lockouts. ActiveLock returns nil when neither
// the pipeline nor its application is locked.
type LockStore interface {
	ActiveLock(ctx context.Context, application, pipelineID string) (*Lock, error)
	Acquire(ctx context.Context, lock Lock) error
	Release(ctx context.Context, scope LockScope, target string) error
}

// PipelineRepository provides pipeline definitions by id. Missing pipelines
// are reported with pipeline.ErrCodeNotFound.
type PipelineRepository interface {
	Get(ctx context.Context, id string) (*pipeline.Pipeline, error)
	List(ctx context.Context) ([]pipeline.Pipeline, error)
	Put(ctx context.Context, p pipeline.Pipeline) error
}
