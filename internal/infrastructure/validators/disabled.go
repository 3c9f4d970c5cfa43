package validators

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// NameDisabled is the registry name of the disabled-pipeline check.
const NameDisabled = "disabled"

// Disabled rejects pipelines whose definition is switched off.
type Disabled struct{}

// NewDisabled returns the disabled-pipeline validator.
func NewDisabled() *Disabled {
	return &Disabled{}
}

// Name implements ports.PipelineValidator.
func (Disabled) Name() string { return NameDisabled }

// CheckRunnable implements ports.PipelineValidator.
func (Disabled) CheckRunnable(_ context.Context, p pipeline.Pipeline) error {
	if !p.Disabled {
		return nil
	}
	return pipeline.NewValidationFailure(
		pipeline.FailureDisabled,
		p.ID,
		NameDisabled,
		fmt.Sprintf("pipeline %s is disabled", p.ID),
		nil,
		map[string]interface{}{"application": p.Application},
	)
}

var _ ports.PipelineValidator = Disabled{}
