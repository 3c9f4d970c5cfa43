package config

import (
	"fmt"

	pipegateerrors "github.com/alexisbeaulieu97/pipegate/pkg/errors"
)

// ValidateGateConfig performs structural and cross-field validation on a gate configuration.
func ValidateGateConfig(cfg *GateConfig) error {
	if cfg == nil {
		return pipegateerrors.NewValidationError("config", "configuration is nil", nil)
	}

	if err := validatorInstance().Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	seen := make(map[string]int, len(cfg.Validators))
	for i, v := range cfg.Validators {
		if first, exists := seen[v.Name]; exists {
			return pipegateerrors.NewValidationError(fieldForValidator(i, "name"),
				fmt.Sprintf("validator %q already configured at validators[%d]", v.Name, first), nil)
		}
		seen[v.Name] = i
	}

	return nil
}

// ValidatePipelinesFile validates pipeline definitions and the seeded state.
func ValidatePipelinesFile(file *PipelinesFile) error {
	if file == nil {
		return pipegateerrors.NewValidationError("pipelines", "pipelines file is nil", nil)
	}

	if err := validatorInstance().Struct(file); err != nil {
		return convertValidationError(err)
	}

	ids := make(map[string]struct{}, len(file.Pipelines))
	for i, p := range file.Pipelines {
		if _, exists := ids[p.ID]; exists {
			return pipegateerrors.NewValidationError(fieldForPipeline(i, "id"), fmt.Sprintf("duplicate pipeline id %q", p.ID), nil)
		}
		ids[p.ID] = struct{}{}
	}

	for id := range file.State.Running {
		if _, ok := ids[id]; !ok {
			return pipegateerrors.NewValidationError("state.running", fmt.Sprintf("references unknown pipeline %q", id), nil)
		}
	}
	for i, lock := range file.State.Locks {
		if lock.Scope != "pipeline" {
			continue
		}
		if _, ok := ids[lock.Target]; !ok {
			return pipegateerrors.NewValidationError(fmt.Sprintf("state.locks[%d].target", i),
				fmt.Sprintf("references unknown pipeline %q", lock.Target), nil)
		}
	}

	return nil
}

// ValidatePipeline validates a single pipeline definition, for example one
// received over HTTP.
func ValidatePipeline(p *PipelineConfig) error {
	if p == nil {
		return pipegateerrors.NewValidationError("pipeline", "pipeline is nil", nil)
	}
	if err := validatorInstance().Struct(p); err != nil {
		return convertValidationError(err)
	}
	return nil
}
