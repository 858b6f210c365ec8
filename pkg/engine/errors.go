// Package engine finds compositions of typed functions that connect a source
// type to a goal type, and defines the classified errors shared by the
// parser, unit augmenter and executor.
package engine

import (
	"errors"
	"fmt"
)

// ErrorClass determines how a caller should react to an error.
type ErrorClass string

const (
	// ErrorClassPermanent marks a structural failure that aborts the operation.
	// Examples: malformed declarations, incompatible unit dimensions.
	ErrorClassPermanent ErrorClass = "permanent"

	// ErrorClassDegraded marks a failure that was recovered with a fallback value.
	// It is only ever recorded in step metadata, never returned from execution.
	ErrorClassDegraded ErrorClass = "degraded"

	// ErrorClassTransient marks an external failure that may succeed on another attempt.
	ErrorClassTransient ErrorClass = "transient"
)

// Error is a classified error with context.
type Error struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code identifies the error for programmatic handling.
	Code string `json:"code,omitempty"`

	// Subject is the declaration, function or unit the error concerns.
	Subject string `json:"subject,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying cause.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Subject != "" {
		msg += fmt.Sprintf(" (subject=%s)", e.Subject)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same class and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *Error {
	return &Error{Class: ErrorClassPermanent, Message: message, Err: err}
}

// NewDegradedError creates an error describing a recovered failure.
func NewDegradedError(message string, err error) *Error {
	return &Error{Class: ErrorClassDegraded, Message: message, Err: err}
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *Error {
	return &Error{Class: ErrorClassTransient, Message: message, Err: err}
}

// WithSubject records the declaration or function the error concerns.
func (e *Error) WithSubject(subject string) *Error {
	e.Subject = subject
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Error codes.
const (
	ErrCodeParse             = "PARSE_ERROR"
	ErrCodeDimensionMismatch = "DIMENSION_MISMATCH"
	ErrCodeUnknownUnit       = "UNKNOWN_UNIT"
	ErrCodeArgument          = "ARGUMENT_ERROR"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodePolicyDenied      = "POLICY_DENIED"
	ErrCodeExternal          = "EXTERNAL_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// Sentinels for errors.Is comparisons.
var (
	ErrParse             = &Error{Class: ErrorClassPermanent, Code: ErrCodeParse}
	ErrDimensionMismatch = &Error{Class: ErrorClassPermanent, Code: ErrCodeDimensionMismatch}
	ErrArgument          = &Error{Class: ErrorClassPermanent, Code: ErrCodeArgument}
	ErrNotFound          = &Error{Class: ErrorClassPermanent, Code: ErrCodeNotFound}
)

// NewParseError reports a malformed declaration.
func NewParseError(declaration, message string, err error) *Error {
	return NewPermanentError(message, err).WithCode(ErrCodeParse).WithSubject(declaration)
}

// NewArgumentError reports a built-in invoked with the wrong number of inputs.
func NewArgumentError(builtin string, want, got int) *Error {
	return NewPermanentError(
		fmt.Sprintf("%s requires exactly %d input, got %d", builtin, want, got), nil,
	).WithCode(ErrCodeArgument).WithSubject(builtin).
		WithDetail("want", want).WithDetail("got", got)
}

// NewNotFoundError reports a missing record or declaration.
func NewNotFoundError(kind, id string) *Error {
	return NewPermanentError(kind+" not found", nil).WithCode(ErrCodeNotFound).WithSubject(id)
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// CodeOf returns the code of a classified error, or "" for other errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
