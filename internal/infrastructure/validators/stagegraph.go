package validators

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// NameStageGraph is the registry name of the stage graph check.
const NameStageGraph = "stage-graph"

// StageGraph rejects pipelines whose stages do not form a valid DAG.
type StageGraph struct {
	requireStages bool
}

// NewStageGraph returns the stage graph validator. With requireStages set,
// a pipeline without stages is also rejected.
func NewStageGraph(requireStages bool) *StageGraph {
	return &StageGraph{requireStages: requireStages}
}

// Name implements ports.PipelineValidator.
func (*StageGraph) Name() string { return NameStageGraph }

// CheckRunnable implements ports.PipelineValidator.
func (v *StageGraph) CheckRunnable(_ context.Context, p pipeline.Pipeline) error {
	if v.requireStages && len(p.Stages) == 0 {
		return pipeline.NewValidationFailure(
			pipeline.FailureMalformed,
			p.ID,
			NameStageGraph,
			fmt.Sprintf("pipeline %s has no stages", p.ID),
			nil,
			map[string]interface{}{"stage_count": 0},
		)
	}

	err := p.ValidateStageGraph()
	if err == nil {
		return nil
	}

	details := map[string]interface{}{"stage_count": len(p.Stages)}
	var domainErr *pipeline.DomainError
	if errors.As(err, &domainErr) {
		for key, value := range domainErr.Context {
			details[key] = value
		}
		details["code"] = string(domainErr.Code)
	}
	return pipeline.NewValidationFailure(
		pipeline.FailureMalformed,
		p.ID,
		NameStageGraph,
		fmt.Sprintf("pipeline %s has an invalid stage graph", p.ID),
		err,
		details,
	)
}

var _ ports.PipelineValidator = (*StageGraph)(nil)
