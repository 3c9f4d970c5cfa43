// Package errors holds the configuration error types pipegate reports with
// exit code 2. Rejections and infrastructure faults live elsewhere.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ConfigError is implemented by every error raised while reading or
// validating a configuration document or request body.
type ConfigError interface {
	error
	// Source names the file, field or body the error refers to.
	Source() string
}

// ParseError reports a document that could not be decoded. Line is zero when
// the decoder gave no position.
type ParseError struct {
	Path string
	Line int
	Err  error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	return &ParseError{Path: path, Line: line, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	location := e.Path
	if e.Line > 0 {
		location = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Err == nil {
		return "parse error: " + location
	}
	return fmt.Sprintf("parse error: %s: %v", location, e.Err)
}

// Source implements ConfigError.
func (e *ParseError) Source() string { return e.Path }

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError reports a decoded document whose values break a rule.
// Field uses yaml paths such as validators[1].name.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Field == "":
		return "validation error: " + e.Message
	default:
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
}

// Source implements ConfigError.
func (e *ValidationError) Source() string { return e.Field }

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var configErr ConfigError
	return stdErrors.As(err, &configErr)
}

var (
	_ ConfigError = (*ParseError)(nil)
	_ ConfigError = (*ValidationError)(nil)
)
