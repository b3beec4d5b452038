// internal/dispatch/registry.go

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"quantumxfer/internal/apperr"
	"quantumxfer/internal/models"
)

// Registry maps the closed operation set to wrapped handlers.
type Registry struct {
	logger   *slog.Logger
	handlers map[models.Operation]Wrapped
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		handlers: map[models.Operation]Wrapped{},
	}
}

// Register binds one operation to a wrapped handler. Duplicate registration
// is a wiring bug and fails.
func (r *Registry) Register(op models.Operation, w Wrapped) error {
	if w.fn == nil {
		return fmt.Errorf("handler for %s was not built with Wrap", op)
	}
	if _, exists := r.handlers[op]; exists {
		return fmt.Errorf("operation %s registered twice", op)
	}
	r.handlers[op] = w
	return nil
}

// CheckComplete fails fast at startup when any catalogue operation lacks a
// handler, so a missing registration can never silently skip validation.
func (r *Registry) CheckComplete() error {
	var missing []string
	for _, op := range models.Catalogue() {
		if _, ok := r.handlers[op]; !ok {
			missing = append(missing, string(op))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("operations without handlers: %v", missing)
	}
	return nil
}

// Operations lists the registered operation names.
func (r *Registry) Operations() []string {
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)
	return ops
}

// Dispatch resolves and runs the handler for one envelope, turning any
// failure into the standardized error body.
func (r *Registry) Dispatch(ctx context.Context, env Envelope) Response {
	w, ok := r.handlers[models.Operation(env.Operation)]
	if !ok {
		return errResponse(apperr.New(apperr.CodeValidationError).
			WithDetail("operation", env.Operation).
			WithDetail("reason", "unknown operation"))
	}

	data, err := w.fn(ctx, env.Payload)
	if err != nil {
		e := apperr.AsError(err)
		if e.Code == apperr.CodeSystemError {
			r.logger.Error("operation failed",
				"operation", env.Operation,
				"category", string(apperr.CategoryOf(e.Code)),
				"correlation_id", e.CorrelationID,
				"err", e.Err)
		} else {
			r.logger.Warn("operation failed",
				"operation", env.Operation,
				"code", string(e.Code),
				"category", string(apperr.CategoryOf(e.Code)),
				"err", e.Error())
		}
		return errResponse(e)
	}
	return Response{Success: true, Data: data}
}

// errResponse projects a taxonomy error into the envelope error body. The
// category rides in details so callers can build retry policy on it without
// enumerating codes.
func errResponse(e *apperr.Error) Response {
	details := make(map[string]any, len(e.Details)+2)
	for k, v := range e.Details {
		details[k] = v
	}
	details["category"] = string(apperr.CategoryOf(e.Code))
	if e.CorrelationID != "" {
		details["correlationId"] = e.CorrelationID
	}
	return Response{
		Success: false,
		Error: &ErrorBody{
			Code:    string(e.Code),
			Message: e.Message,
			Details: details,
		},
	}
}
