package config

import (
	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
)

// ToDomain converts a pipeline definition into the domain model.
func ToDomain(p PipelineConfig) pipeline.Pipeline {
	out := pipeline.Pipeline{
		ID:                      p.ID,
		Name:                    p.Name,
		Application:             p.Application,
		Disabled:                p.Disabled,
		LimitConcurrent:         p.LimitConcurrent,
		MaxConcurrentExecutions: p.MaxConcurrentExecutions,
	}
	if len(p.Stages) > 0 {
		out.Stages = make([]pipeline.Stage, len(p.Stages))
		for i, s := range p.Stages {
			out.Stages[i] = pipeline.Stage{
				RefID:                s.RefID,
				Name:                 s.Name,
				Type:                 s.Type,
				RequisiteStageRefIDs: append([]string(nil), s.RequisiteStageRefIDs...),
				Context:              s.Context,
			}
		}
	}
	return out.Clone()
}

// DomainPipelines converts every definition in the file, preserving order.
func (f *PipelinesFile) DomainPipelines() []pipeline.Pipeline {
	out := make([]pipeline.Pipeline, len(f.Pipelines))
	for i, p := range f.Pipelines {
		out[i] = ToDomain(p)
	}
	return out
}

// Find returns the definition with the given id.
func (f *PipelinesFile) Find(id string) (PipelineConfig, bool) {
	for _, p := range f.Pipelines {
		if p.ID == id {
			return p, true
		}
	}
	return PipelineConfig{}, false
}
