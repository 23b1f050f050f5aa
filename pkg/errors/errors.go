// Package errors provides the structured error system for SwiftFS with
// error codes, categories, and request context.
package errors

import (
	stderr "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a class of SwiftFS failure.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIG"

	// Authentication errors
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeCredentialsMissing   ErrorCode = "CREDENTIALS_MISSING"

	// Object store errors
	ErrCodeObjectNotFound  ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeInvalidResponse ErrorCode = "INVALID_RESPONSE"
	ErrCodeRangeInvalid    ErrorCode = "RANGE_INVALID"

	// Connection errors
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeConnectionTimeout ErrorCode = "CONNECTION_TIMEOUT"

	// Filesystem-emulation errors
	ErrCodeOperationFailed ErrorCode = "OPERATION_FAILED"
	ErrCodePathInvalid     ErrorCode = "PATH_INVALID"

	// State errors
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	ErrCodeStreamClosed ErrorCode = "STREAM_CLOSED"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryAuth          ErrorCategory = "auth"
	CategoryStorage       ErrorCategory = "storage"
	CategoryConnection    ErrorCategory = "connection"
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryState         ErrorCategory = "state"
)

// Error is a structured SwiftFS error. The HTTP fields are populated by
// the REST layer so that a propagated failure retains enough context
// (verb, URL, status) to diagnose without re-running at higher verbosity.
type Error struct {
	Code     ErrorCode     `json:"code"`
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	Verb       string `json:"verb,omitempty"`
	URL        string `json:"url,omitempty"`
	Status     int    `json:"status,omitempty"`
	StatusLine string `json:"status_line,omitempty"`

	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`

	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Component != "" {
		if e.Operation != "" {
			fmt.Fprintf(&b, "[%s:%s] ", e.Component, e.Operation)
		} else {
			fmt.Fprintf(&b, "[%s] ", e.Component)
		}
	}
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Verb != "" {
		fmt.Fprintf(&b, " (%s %s", e.Verb, e.URL)
		if e.Status != 0 {
			fmt.Fprintf(&b, " => %d %s", e.Status, e.StatusLine)
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two structured errors by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a structured error with category and retryability derived
// from the code.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Retryable: IsRetryableByDefault(code),
		Timestamp: time.Now(),
	}
}

// Newf creates a structured error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category for an error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeInvalidConfig, ErrCodeMissingConfig:
		return CategoryConfiguration
	case ErrCodeAuthenticationFailed, ErrCodeCredentialsMissing:
		return CategoryAuth
	case ErrCodeObjectNotFound, ErrCodeBadRequest, ErrCodeInvalidResponse, ErrCodeRangeInvalid:
		return CategoryStorage
	case ErrCodeConnectionFailed, ErrCodeConnectionTimeout:
		return CategoryConnection
	case ErrCodeOperationFailed, ErrCodePathInvalid:
		return CategoryFilesystem
	default:
		return CategoryState
	}
}

// IsRetryableByDefault reports whether a code marks a transient failure.
// Only transport-level failures are retried; everything else propagates
// immediately.
func IsRetryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeConnectionFailed, ErrCodeConnectionTimeout:
		return true
	}
	return false
}

// WithComponent sets the component for an error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCause attaches the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRequest records the HTTP verb and URL the error arose from.
func (e *Error) WithRequest(verb, url string) *Error {
	e.Verb = verb
	e.URL = url
	return e
}

// WithStatus records the HTTP status code and status line.
func (e *Error) WithStatus(status int, statusLine string) *Error {
	e.Status = status
	e.StatusLine = statusLine
	return e
}

// HasCode reports whether err is a structured error carrying code.
func HasCode(err error, code ErrorCode) bool {
	var se *Error
	if stderr.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsNotFound reports whether err represents the absence of an object or
// container. Absence is a normal outcome for get/head/list/delete and is
// never logged as a fault.
func IsNotFound(err error) bool {
	return HasCode(err, ErrCodeObjectNotFound)
}

// IsBadRequest reports whether the store rejected an illegal name or path.
func IsBadRequest(err error) bool {
	return HasCode(err, ErrCodeBadRequest)
}

// IsAuthFailure reports whether err is a fatal credential failure.
func IsAuthFailure(err error) bool {
	return HasCode(err, ErrCodeAuthenticationFailed)
}

// IsRetryable reports whether err may be retried. Structured errors carry
// an explicit flag; anything else is assumed non-retryable.
func IsRetryable(err error) bool {
	var se *Error
	if stderr.As(err, &se) {
		return se.Retryable
	}
	return false
}
