package validators

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
	"github.com/alexisbeaulieu97/pipegate/internal/ports"
)

// NameQuota is the registry name of the application quota check.
const NameQuota = "quota"

// Quota rejects pipelines whose application has no execution quota left.
// It only reads the remaining quota; consuming it is the caller's job once
// the execution has started.
type Quota struct {
	quotas     ports.QuotaStore
	failClosed bool
}

// NewQuota returns the quota validator.
func NewQuota(quotas ports.QuotaStore, failClosed bool) *Quota {
	return &Quota{quotas: quotas, failClosed: failClosed}
}

// Name implements ports.PipelineValidator.
func (*Quota) Name() string { return NameQuota }

// CheckRunnable implements ports.PipelineValidator.
func (v *Quota) CheckRunnable(ctx context.Context, p pipeline.Pipeline) error {
	remaining, err := v.quotas.Remaining(ctx, p.Application)
	if err != nil {
		return storeFault(v.failClosed, NameQuota, p, "quota lookup", err)
	}
	if remaining >= 1 {
		return nil
	}

	return pipeline.NewValidationFailure(
		pipeline.FailureQuotaExceeded,
		p.ID,
		NameQuota,
		fmt.Sprintf("application %s has exhausted its execution quota", p.Application),
		nil,
		map[string]interface{}{"application": p.Application, "remaining": remaining},
	)
}

var _ ports.PipelineValidator = (*Quota)(nil)
