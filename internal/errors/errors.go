// Package errors provides structured error types for scanbench.
// Every error carries a category and a code so callers can classify
// failures without matching on message text.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by component.
type ErrorCategory string

const (
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryStorage  ErrorCategory = "STORAGE"
	ErrCategoryEngine   ErrorCategory = "ENGINE"
	ErrCategoryDevice   ErrorCategory = "DEVICE"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeInvalidValue   = "INVALID_VALUE"
	CodeDirectoryOpen  = "DIRECTORY_OPEN"
	CodeUnsupportedFmt = "UNSUPPORTED_FORMAT"

	// Storage codes
	CodeOpenFailed = "OPEN_FAILED"
	CodeReadFailed = "READ_FAILED"
	CodeNotFound   = "NOT_FOUND"

	// Engine codes
	CodeStageFailed = "STAGE_FAILED"
	CodeQueryFailed = "QUERY_FAILED"
	CodeFetchFailed = "FETCH_FAILED"

	// Device codes
	CodeMalformedCounters = "MALFORMED_COUNTERS"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// ScanError is the structured error type used throughout the harness.
type ScanError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *ScanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *ScanError) Is(target error) bool {
	var t *ScanError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new ScanError.
func New(category ErrorCategory, code, message string) *ScanError {
	return &ScanError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new ScanError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *ScanError {
	return &ScanError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *ScanError) WithDetails(details map[string]interface{}) *ScanError {
	cp := *e
	cp.Details = details
	return &cp
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a ScanError.
func GetCategory(err error) ErrorCategory {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a ScanError.
func GetCode(err error) string {
	var se *ScanError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// Convenience constructors for common errors.

func NewConfigError(code, message string) *ScanError {
	return New(ErrCategoryConfig, code, message)
}

func NewStorageError(code, message string, cause error) *ScanError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewEngineError(code, message string, cause error) *ScanError {
	return Wrap(ErrCategoryEngine, code, message, cause)
}

func NewDeviceError(code, message string, cause error) *ScanError {
	return Wrap(ErrCategoryDevice, code, message, cause)
}

func NewInternalError(message string, cause error) *ScanError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
