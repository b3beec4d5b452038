// internal/log/log.go

// Package log provides the structured logger factory and the payload
// redaction helper used before any request context reaches a log line.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// New creates a [slog.Logger] writing to stdout at the given level (one of
// "debug", "info", "warn", "error"; defaults to info).
func New(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
}

// sensitiveKeys are payload fields that must never appear in logs.
var sensitiveKeys = map[string]struct{}{
	"password":   {},
	"privatekey": {},
	"credential": {},
	"secret":     {},
	"token":      {},
}

// Redact returns a copy of a payload map safe for logging: sensitive fields
// are replaced, nested maps and arrays are redacted recursively.
func Redact(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if _, bad := sensitiveKeys[strings.ToLower(k)]; bad {
			out[k] = "[redacted]"
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Redact(t)
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = redactValue(elem)
		}
		return out
	default:
		return v
	}
}
