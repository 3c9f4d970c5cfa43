package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

type lockKey struct {
	scope  ports.LockScope
	target string
}

// LockStore keeps external lockouts keyed by scope and target.
type LockStore struct {
	mu    sync.RWMutex
	locks map[lockKey]ports.Lock
	now   func() time.Time
}

// NewLockStore creates an empty lock store.
func NewLockStore() *LockStore {
	return &LockStore{locks: make(map[lockKey]ports.Lock), now: time.Now}
}

// ActiveLock returns the pipeline lock if present, otherwise the application
// lock, otherwise nil.
func (s *LockStore) ActiveLock(ctx context.Context, application, pipelineID string) (*ports.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if lock, ok := s.locks[lockKey{scope: ports.LockScopePipeline, target: pipelineID}]; ok && pipelineID != "" {
		return &lock, nil
	}
	if lock, ok := s.locks[lockKey{scope: ports.LockScopeApplication, target: application}]; ok && application != "" {
		return &lock, nil
	}
	return nil, nil
}

// Acquire records a lock. Acquiring a target already locked by another owner fails.
func (s *LockStore) Acquire(ctx context.Context, lock ports.Lock) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if lock.Scope != ports.LockScopeApplication && lock.Scope != ports.LockScopePipeline {
		return fmt.Errorf("unknown lock scope %q", lock.Scope)
	}
	if lock.Target == "" {
		return fmt.Errorf("lock target is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := lockKey{scope: lock.Scope, target: lock.Target}
	if existing, ok := s.locks[key]; ok && existing.Owner != lock.Owner {
		return fmt.Errorf("%s %s already locked by %s: %w", lock.Scope, lock.Target, existing.Owner, ports.ErrLockConflict)
	}
	if lock.AcquiredAt.IsZero() {
		lock.AcquiredAt = s.now()
	}
	s.locks[key] = lock
	return nil
}

// Release removes a lock.
func (s *LockStore) Release(ctx context.Context, scope ports.LockScope, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := lockKey{scope: scope, target: target}
	if _, ok := s.locks[key]; !ok {
		return pipeline.NewNotFoundError("lock", target).WithContext(map[string]interface{}{"scope": string(scope)})
	}
	delete(s.locks, key)
	return nil
}

var _ ports.LockStore = (*LockStore)(nil)
