package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// PipelineRepository stores pipeline definitions by id. Values are cloned on
// the way in and out so callers never share stage slices with the store.
type PipelineRepository struct {
	mu        sync.RWMutex
	pipelines map[string]pipeline.Pipeline
}

// NewPipelineRepository creates a repository seeded with pipelines.
func NewPipelineRepository(pipelines ...pipeline.Pipeline) *PipelineRepository {
	r := &PipelineRepository{pipelines: make(map[string]pipeline.Pipeline, len(pipelines))}
	for _, p := range pipelines {
		r.pipelines[p.ID] = p.Clone()
	}
	return r
}

// Get implements ports.PipelineRepository.
func (r *PipelineRepository) Get(ctx context.Context, id string) (*pipeline.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pipelines[id]
	if !ok {
		return nil, pipeline.NewNotFoundError("pipeline", id)
	}
	clone := p.Clone()
	return &clone, nil
}

// List returns all pipelines ordered by id.
func (r *PipelineRepository) List(ctx context.Context) ([]pipeline.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]pipeline.Pipeline, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put stores or replaces a pipeline after checking its identity.
func (r *PipelineRepository) Put(ctx context.Context, p pipeline.Pipeline) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[p.ID] = p.Clone()
	return nil
}

var _ ports.PipelineRepository = (*PipelineRepository)(nil)
