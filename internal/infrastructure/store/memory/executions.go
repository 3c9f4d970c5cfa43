package memory

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// ExecutionStore tracks running execution ids per pipeline.
type ExecutionStore struct {
	mu      sync.RWMutex
	running map[string]map[string]struct{}
}

// NewExecutionStore creates an empty store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{running: make(map[string]map[string]struct{})}
}

// CountRunning implements ports.ExecutionStore.
func (s *ExecutionStore) CountRunning(ctx context.Context, pipelineID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.running[pipelineID]), nil
}

// MarkStarted records a running execution. Marking the same id twice is a no-op.
func (s *ExecutionStore) MarkStarted(ctx context.Context, pipelineID, executionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	executions, ok := s.running[pipelineID]
	if !ok {
		executions = make(map[string]struct{})
		s.running[pipelineID] = executions
	}
	executions[executionID] = struct{}{}
	return nil
}

// MarkCompleted removes a running execution.
func (s *ExecutionStore) MarkCompleted(ctx context.Context, pipelineID, executionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	executions := s.running[pipelineID]
	if _, ok := executions[executionID]; !ok {
		return pipeline.NewNotFoundError("execution", executionID).WithContext(map[string]interface{}{
			"pipeline_id": pipelineID,
		})
	}
	delete(executions, executionID)
	if len(executions) == 0 {
		delete(s.running, pipelineID)
	}
	return nil
}

var _ ports.ExecutionStore = (*ExecutionStore)(nil)
