package validators

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
)

// storeFault reports a store error either as an infrastructure error or, when
// failClosed is set, as a CHECK_UNAVAILABLE rejection. Context cancellation is
// never translated.
func storeFault(failClosed bool, validator string, p pipeline.Pipeline, operation string, err error) error {
	if failClosed && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return pipeline.NewValidationFailure(
			pipeline.FailureCheckUnavailable,
			p.ID,
			validator,
			fmt.Sprintf("%s unavailable, refusing pipeline %s", operation, p.ID),
			err,
			map[string]interface{}{"application": p.Application, "operation": operation},
		)
	}
	return fmt.Errorf("%s: %s for pipeline %s: %w", validator, operation, p.ID, err)
}
