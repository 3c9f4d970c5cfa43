package ports

import (
	"context"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
)

// PipelineValidator is a single precondition check applied to a pipeline
// before it may start.
//
// CheckRunnable returns nil when the check passes, a *pipeline.ValidationFailure
// when the pipeline must not start, or any other error when the check itself
// could not run (for example a store was unreachable). Implementations may
// read external state but must never mutate the pipeline or execution state,
// and must be safe for concurrent use.
type PipelineValidator interface {
	Name() string
	CheckRunnable(ctx context.Context, p pipeline.Pipeline) error
}

// RunnableChecker is the single seam schedulers and API handlers depend on.
type RunnableChecker interface {
	CheckRunnable(ctx context.Context, p pipeline.Pipeline) error
}
