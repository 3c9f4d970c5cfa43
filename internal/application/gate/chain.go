package gate

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// Chain is an ordered, immutable sequence of validators evaluated fail-fast:
// validators run in registration order and the first error ends the call.
// A Chain is safe for concurrent use once constructed.
type Chain struct {
	validators []ports.PipelineValidator
}

// NewChain builds a chain from the given validators in order. The slice is
// copied so later changes by the caller have no effect.
func NewChain(validators ...ports.PipelineValidator) (*Chain, error) {
	copied := make([]ports.PipelineValidator, 0, len(validators))
	for i, v := range validators {
		if v == nil {
			return nil, fmt.Errorf("validator at position %d is nil", i)
		}
		copied = append(copied, v)
	}
	return &Chain{validators: copied}, nil
}

// CheckRunnable runs each validator against the same pipeline snapshot and
// returns the first error unchanged. An empty chain always succeeds.
func (c *Chain) CheckRunnable(ctx context.Context, p pipeline.Pipeline) error {
	if c == nil {
		return nil
	}
	for _, v := range c.validators {
		if err := ctx.Err(); err != nil {
			return pipeline.NewCancelledError(err).WithContext(map[string]interface{}{
				"pipeline_id": p.ID,
				"validator":   v.Name(),
			})
		}
		if err := v.CheckRunnable(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of validators.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.validators)
}

// Names returns validator names in evaluation order.
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.validators))
	for i, v := range c.validators {
		names[i] = v.Name()
	}
	return names
}

// ValidatorFunc adapts a function into a named validator.
func ValidatorFunc(name string, fn func(context.Context, pipeline.Pipeline) error) ports.PipelineValidator {
	return funcValidator{name: name, fn: fn}
}

type funcValidator struct {
	name string
	fn   func(context.Context, pipeline.Pipeline) error
}

func (f funcValidator) Name() string { return f.name }

func (f funcValidator) CheckRunnable(ctx context.Context, p pipeline.Pipeline) error {
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, p)
}

var _ ports.RunnableChecker = (*Chain)(nil)
