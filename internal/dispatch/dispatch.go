// internal/dispatch/dispatch.go
//
// Package dispatch routes request envelopes to operation handlers. Every
// handler is wrapped with its validator at construction time; Register only
// accepts wrapped handlers, so no operation is reachable without passing the
// validation gate.

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"quantumxfer/internal/apperr"
	"quantumxfer/internal/models"
	"quantumxfer/internal/validate"
)

// Envelope is the uniform request shape carried by every transport.
type Envelope struct {
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Response is the uniform result shape: exactly one of Data / Error is set.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the caller-visible projection of a taxonomy error.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Wrapped is a handler that has passed through Wrap. It is only
// constructible inside this package, which is what enforces the no-bypass
// invariant at compile time.
type Wrapped struct {
	fn func(ctx context.Context, payload json.RawMessage) (any, error)
}

// Wrap fuses a validator and a handler for one payload type. The handler is
// invoked only with the validator's sanitized output; invalid payloads
// short-circuit into a VALIDATION_ERROR carrying every violated constraint.
func Wrap[T any](op models.Operation, logger *slog.Logger,
	validator func(T) (T, validate.Result),
	handler func(context.Context, T) (any, error),
) Wrapped {
	return Wrapped{fn: func(ctx context.Context, payload json.RawMessage) (out any, err error) {
		defer func() {
			if r := recover(); r != nil {
				sysErr := apperr.System(fmt.Errorf("panic in %s handler: %v", op, r))
				logger.Error("handler panic",
					"operation", string(op),
					"correlation_id", sysErr.CorrelationID,
					"stack", string(debug.Stack()))
				out, err = nil, sysErr
			}
		}()

		var raw T
		if len(payload) > 0 {
			if jsonErr := json.Unmarshal(payload, &raw); jsonErr != nil {
				return nil, apperr.Wrap(apperr.CodeValidationError, jsonErr).
					WithDetail("reason", "payload is not valid JSON for this operation")
			}
		}

		sanitized, res := validator(raw)
		if !res.Valid() {
			logger.Warn("validation failed",
				"operation", string(op),
				"violations", len(res.Errors),
				"fields", fieldNames(res.Errors))
			return nil, apperr.New(apperr.CodeValidationError).
				WithDetail("errors", res.Errors)
		}

		out, err = handler(ctx, sanitized)
		if err != nil {
			return nil, apperr.AsError(err)
		}
		return out, nil
	}}
}

func fieldNames(details []validate.ErrorDetail) []string {
	names := make([]string, 0, len(details))
	for _, d := range details {
		names = append(names, d.Field)
	}
	return names
}
