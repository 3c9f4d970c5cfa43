package pipeline

import (
	"errors"
	"fmt"
)

// ErrorCode identifies domain error categories that are not admission
// rejections: malformed definitions at load time, lookups, cancellation.
type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeDuplicate  ErrorCode = "DUPLICATE_ID"
	ErrCodeDependency ErrorCode = "DEPENDENCY_ERROR"
	ErrCodeCycle      ErrorCode = "CIRCULAR_DEPENDENCY"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeMissing    ErrorCode = "MISSING_REQUIRED"
	ErrCodeCancelled  ErrorCode = "CANCELLED"
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a typed error enriched with contextual data while
// remaining free from infrastructure dependencies.
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As usage.
func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is allows errors.Is comparisons against other DomainError values.
func (e *DomainError) Is(target error) bool {
	var domainErr *DomainError
	if !errors.As(target, &domainErr) {
		return false
	}
	return e.Code == domainErr.Code && e.Message == domainErr.Message
}

// WithContext clones the error with additional contextual metadata.
func (e *DomainError) WithContext(ctx map[string]interface{}) *DomainError {
	if e == nil {
		return nil
	}
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Context: mergeContext(e.Context, ctx),
	}
}

// NewNotFoundError reports a missing pipeline or stage.
func NewNotFoundError(kind, id string) *DomainError {
	return newDomainError(ErrCodeNotFound, kind+" not found", nil, map[string]interface{}{
		"id": id,
	})
}

// NewCancelledError wraps a context error raised before validation completed.
func NewCancelledError(cause error) *DomainError {
	return newDomainError(ErrCodeCancelled, "validation cancelled", cause, nil)
}

func newDomainError(code ErrorCode, message string, cause error, context map[string]interface{}) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

func newValidationError(message string, context map[string]interface{}) *DomainError {
	return newDomainError(ErrCodeValidation, message, nil, context)
}

func newDuplicateError(identifier string) *DomainError {
	return newDomainError(ErrCodeDuplicate, "duplicate stage ref id", nil, map[string]interface{}{
		"ref_id": identifier,
	})
}

func newDependencyError(message string, context map[string]interface{}) *DomainError {
	return newDomainError(ErrCodeDependency, message, nil, context)
}

func newCycleError(path []string) *DomainError {
	return newDomainError(ErrCodeCycle, "circular stage dependency detected", nil, map[string]interface{}{
		"path": path,
	})
}

func newMissingFieldError(field string) *DomainError {
	return newDomainError(ErrCodeMissing, "missing required field", nil, map[string]interface{}{
		"field": field,
	})
}

func mergeContext(base, extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
