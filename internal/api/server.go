// internal/api/server.go
//
// Package api exposes the operation catalogue over HTTP. Every operation
// travels in the same request envelope regardless of transport, so the
// surface is a single POST endpoint plus health.

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quantumxfer/internal/apperr"
	"quantumxfer/internal/dispatch"
	"quantumxfer/internal/log"
)

type Server struct {
	registry    *dispatch.Registry
	logger      *slog.Logger
	maxEnvelope int64
	router      chi.Router
}

func NewServer(registry *dispatch.Registry, logger *slog.Logger, maxEnvelope int64) *Server {
	s := &Server{
		registry:    registry,
		logger:      logger,
		maxEnvelope: maxEnvelope,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/v1/health", s.handleHealth)
	r.Post("/v1/call", s.handleCall)
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"operations": s.registry.Operations(),
	})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxEnvelope)

	var env dispatch.Envelope
	dec := json.NewDecoder(body)
	if err := dec.Decode(&env); err != nil {
		var maxErr *http.MaxBytesError
		detail := "request body is not a valid envelope"
		if errors.As(err, &maxErr) {
			detail = "request body exceeds size limit"
		}
		resp := envelopeError(detail)
		writeJSON(w, apperr.HTTPStatus(apperr.CodeValidationError), resp)
		return
	}

	if s.logger.Enabled(r.Context(), slog.LevelDebug) {
		var payload map[string]any
		_ = json.Unmarshal(env.Payload, &payload)
		s.logger.Debug("envelope received",
			"operation", env.Operation,
			"remote", r.RemoteAddr,
			"payload", log.Redact(payload))
	}

	resp := s.registry.Dispatch(r.Context(), env)
	status := http.StatusOK
	if !resp.Success {
		status = apperr.HTTPStatus(apperr.Code(resp.Error.Code))
	}
	writeJSON(w, status, resp)
}

func envelopeError(reason string) dispatch.Response {
	e := apperr.New(apperr.CodeValidationError).WithDetail("reason", reason)
	return dispatch.Response{
		Success: false,
		Error: &dispatch.ErrorBody{
			Code:    string(e.Code),
			Message: e.Message,
			Details: e.Details,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
