package validators

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// NameLockout is the registry name of the external lockout check.
const NameLockout = "lockout"

// Lockout rejects pipelines while an external system holds a lock on the
// pipeline or its application.
type Lockout struct {
	locks      ports.LockStore
	failClosed bool
}

// NewLockout returns the lockout validator.
func NewLockout(locks ports.LockStore, failClosed bool) *Lockout {
	return &Lockout{locks: locks, failClosed: failClosed}
}

// Name implements ports.PipelineValidator.
func (*Lockout) Name() string { return NameLockout }

// CheckRunnable implements ports.PipelineValidator.
func (v *Lockout) CheckRunnable(ctx context.Context, p pipeline.Pipeline) error {
	lock, err := v.locks.ActiveLock(ctx, p.Application, p.ID)
	if err != nil {
		return storeFault(v.failClosed, NameLockout, p, "lock lookup", err)
	}
	if lock == nil {
		return nil
	}

	message := fmt.Sprintf("pipeline %s is locked by %s", p.ID, lock.Owner)
	if lock.Scope == ports.LockScopeApplication {
		message = fmt.Sprintf("application %s of pipeline %s is locked by %s", p.Application, p.ID, lock.Owner)
	}
	return pipeline.NewValidationFailure(
		pipeline.FailureLocked,
		p.ID,
		NameLockout,
		message,
		nil,
		map[string]interface{}{
			"lock_scope":  string(lock.Scope),
			"lock_target": lock.Target,
			"lock_owner":  lock.Owner,
			"lock_reason": lock.Reason,
		},
	)
}

var _ ports.PipelineValidator = (*Lockout)(nil)
