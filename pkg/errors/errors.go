// Package errors provides standardized error types for relay.
package errors

import (
	"errors"
	"fmt"
)

// Error codes
const (
	CodeAmbiguousBackend      = "AMBIGUOUS_BACKEND"
	CodeNoBackend             = "NO_BACKEND_AVAILABLE"
	CodeUnsupportedExpression = "UNSUPPORTED_EXPRESSION"
	CodeExecutionFailed       = "EXECUTION_FAILED"
	CodeCoercionFailed        = "COERCION_FAILED"
	CodeUnsupportedType       = "UNSUPPORTED_TYPE"
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeNotFound              = "NOT_FOUND"
	CodeConnectionFailed      = "CONNECTION_FAILED"
	CodeInternal              = "INTERNAL_ERROR"
)

// RelayError represents a relay error with code, message, and optional details.
type RelayError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *RelayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *RelayError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a RelayError with the same code.
func (e *RelayError) Is(target error) bool {
	t, ok := target.(*RelayError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails adds details to the error.
func (e *RelayError) WithDetails(details map[string]interface{}) *RelayError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *RelayError) WithDetail(key string, value interface{}) *RelayError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Sentinels for errors.Is comparisons. They are matched by code, so callers
// build fresh errors with New or Wrap instead of decorating these.
var (
	ErrAmbiguousBackend      = &RelayError{Code: CodeAmbiguousBackend, Message: "multiple backends found in one expression"}
	ErrNoBackend             = &RelayError{Code: CodeNoBackend, Message: "expression depends on no backends and no default is configured"}
	ErrUnsupportedExpression = &RelayError{Code: CodeUnsupportedExpression, Message: "expression cannot be compiled by this backend"}
	ErrExecutionFailed       = &RelayError{Code: CodeExecutionFailed, Message: "statement execution failed"}
	ErrCoercionFailed        = &RelayError{Code: CodeCoercionFailed, Message: "column coercion failed"}
	ErrUnsupportedType       = &RelayError{Code: CodeUnsupportedType, Message: "unsupported backend type"}
	ErrTableNotFound         = &RelayError{Code: CodeNotFound, Message: "table not found"}
	ErrMultiQuery            = &RelayError{Code: CodeInvalidRequest, Message: "multi-query expression"}
	ErrUnboundParameter      = &RelayError{Code: CodeInvalidRequest, Message: "unbound parameter"}
)

// New creates a new RelayError with the given code and message.
func New(code, message string) *RelayError {
	return &RelayError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new RelayError with a formatted message.
func Newf(code, format string, args ...interface{}) *RelayError {
	return &RelayError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a RelayError.
func Wrap(err error, code, message string) *RelayError {
	if err == nil {
		return nil
	}
	return &RelayError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *RelayError {
	if err == nil {
		return nil
	}
	return &RelayError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// HasCode reports whether any RelayError in err's chain carries code.
func HasCode(err error, code string) bool {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.Code == code
	}
	return false
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsInvalidRequest checks if an error is an invalid request error.
func IsInvalidRequest(err error) bool {
	return HasCode(err, CodeInvalidRequest)
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.Message
	}
	return err.Error()
}

// As returns the first RelayError in err's chain.
func As(err error) (*RelayError, bool) {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr, true
	}
	return nil, false
}
