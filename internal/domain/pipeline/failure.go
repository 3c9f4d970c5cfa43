package pipeline

import (
	"errors"
	"fmt"
)

// FailureKind is the closed set of reasons a pipeline can be refused.
type FailureKind string

const (
	FailureDisabled         FailureKind = "PIPELINE_DISABLED"
	FailureConcurrencyLimit FailureKind = "CONCURRENT_EXECUTION_LIMIT"
	FailureQuotaExceeded    FailureKind = "QUOTA_EXCEEDED"
	FailureMalformed        FailureKind = "MALFORMED_PIPELINE"
	FailureLocked           FailureKind = "PIPELINE_LOCKED"
	// FailureCheckUnavailable marks a lower-level fault that a validator chose
	// to report as a rejection because it could not complete its check.
	FailureCheckUnavailable FailureKind = "CHECK_UNAVAILABLE"
)

var failureKinds = []FailureKind{
	FailureDisabled,
	FailureConcurrencyLimit,
	FailureQuotaExceeded,
	FailureMalformed,
	FailureLocked,
	FailureCheckUnavailable,
}

// FailureKinds returns every known failure kind.
func FailureKinds() []FailureKind {
	return append([]FailureKind(nil), failureKinds...)
}

// Valid reports whether k is one of the known kinds.
func (k FailureKind) Valid() bool {
	for _, candidate := range failureKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ValidationFailure is raised by a validator when a pipeline cannot start.
// It is the routine rejection outcome and is distinct from infrastructure
// errors, which are never represented by this type.
type ValidationFailure struct {
	Kind       FailureKind
	PipelineID string
	Validator  string
	Message    string
	Cause      error
	Context    map[string]interface{}
}

// NewValidationFailure constructs a failure for the given pipeline.
func NewValidationFailure(kind FailureKind, pipelineID, validator, message string, cause error, context map[string]interface{}) *ValidationFailure {
	return &ValidationFailure{
		Kind:       kind,
		PipelineID: pipelineID,
		Validator:  validator,
		Message:    message,
		Cause:      cause,
		Context:    context,
	}
}

// Error implements the error interface.
func (f *ValidationFailure) Error() string {
	if f == nil {
		return "<nil>"
	}
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap exposes the translated cause, if any.
func (f *ValidationFailure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Cause
}

// Is matches another failure of the same kind. A target with a message only
// matches failures carrying that exact message.
func (f *ValidationFailure) Is(target error) bool {
	var other *ValidationFailure
	if f == nil || !errors.As(target, &other) || other == nil {
		return false
	}
	if f.Kind != other.Kind {
		return false
	}
	return other.Message == "" || other.Message == f.Message
}

// WithContext clones the failure with additional contextual metadata.
func (f *ValidationFailure) WithContext(ctx map[string]interface{}) *ValidationFailure {
	if f == nil {
		return nil
	}
	clone := *f
	clone.Context = mergeContext(f.Context, ctx)
	return &clone
}

// AsValidationFailure extracts a failure from an error chain.
func AsValidationFailure(err error) (*ValidationFailure, bool) {
	var failure *ValidationFailure
	if errors.As(err, &failure) && failure != nil {
		return failure, true
	}
	return nil, false
}

// IsValidationFailure reports whether err is a rejection rather than a fault.
func IsValidationFailure(err error) bool {
	_, ok := AsValidationFailure(err)
	return ok
}

// FailureKindOf returns the kind of a rejection, or "" for any other error.
func FailureKindOf(err error) FailureKind {
	if failure, ok := AsValidationFailure(err); ok {
		return failure.Kind
	}
	return ""
}
