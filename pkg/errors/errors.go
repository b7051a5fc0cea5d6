// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling for the fleetsense analysis core.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies fleetsense errors for logging and recovery decisions.
type Code string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal Code = "INTERNAL"

	// CodeInvalidInput indicates malformed caller input.
	CodeInvalidInput Code = "INVALID_INPUT"

	// CodeSchema indicates required fields are missing from the input dataset.
	// This is the only code that crosses the public analysis boundary.
	CodeSchema Code = "SCHEMA_ERROR"

	// CodeTransport indicates a network failure talking to a hosted endpoint.
	// Recovered by advancing the provider chain.
	CodeTransport Code = "TRANSPORT_ERROR"

	// CodeRuntimeUnavailable indicates the local inference runtime is missing
	// or failed to load its model. Recovered by advancing the provider chain.
	CodeRuntimeUnavailable Code = "RUNTIME_UNAVAILABLE"

	// CodeUnacceptableResponse indicates a provider returned text that fails
	// the usability predicate. Treated like a transport failure.
	CodeUnacceptableResponse Code = "UNACCEPTABLE_RESPONSE"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout Code = "TIMEOUT"
)

// Error is a typed error with context for structured logging.
// It implements the error interface and supports errors.As traversal.
type Error struct {
	Code        Code
	Message     string
	Err         error
	Context     map[string]any
	Recoverable bool
}

// New creates a new Error with the given code, message, and cause.
func New(code Code, msg string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		Err:     cause,
		Context: make(map[string]any),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from by
// advancing the provider chain. Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var fe *Error
	if stderrors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// AsError converts err to an *Error, wrapping unknown errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if stderrors.As(err, &fe) {
		return fe
	}
	return New(CodeInternal, "wrapped error", err)
}

// IsRecoverable reports whether err should be retried or the chain advanced.
// Unknown error types default to recoverable, matching the provider-chain
// policy of never surfacing inference failures to the caller.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var fe *Error
	if stderrors.As(err, &fe) {
		return fe.Recoverable
	}
	return true
}
