// internal/apperr/apperr.go
//
// Package apperr is the shared error vocabulary of the daemon. Every failure
// crossing a package boundary is an *Error with a stable code; raw transport
// errors never leave the layer that produced them.

package apperr

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Error is the standardized failure shape returned at every boundary.
type Error struct {
	Code          Code           `json:"code"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlationId,omitempty"`

	// Err is the wrapped cause, kept for logs only. Never serialized.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two taxonomy errors by code, so errors.Is(err, apperr.New(code))
// works without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New builds an error with the code's message template, formatted with args.
func New(code Code, args ...any) *Error {
	return &Error{
		Code:      code,
		Message:   Message(code, args...),
		Timestamp: time.Now().UTC(),
	}
}

// Wrap attaches a cause to a coded error.
func Wrap(code Code, err error, args ...any) *Error {
	e := New(code, args...)
	e.Err = err
	return e
}

// WithDetail adds one key to Details and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// System wraps an unexpected internal failure. The caller-visible message is
// generic; the cause stays behind the correlation id for logs.
func System(err error) *Error {
	e := New(CodeSystemError)
	e.Err = err
	e.CorrelationID = uuid.NewString()
	return e
}

// AsError extracts a taxonomy error, or wraps err as a system error when it
// carries no code.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return System(err)
}
