// internal/validate/validate.go
//
// Package validate checks raw request payloads against the declared shape and
// bounds of each operation. Validators are pure: they return a sanitized copy
// plus a Result listing every violated constraint, and never touch shared
// state, so concurrent use needs no locking.

package validate

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"quantumxfer/internal/models"
	"quantumxfer/internal/sanitize"
)

// Boundary limits. Payloads above these are refused before any handler runs.
const (
	MaxHostLen     = 255
	MaxUsernameLen = 32
	MaxPasswordLen = 500
	MaxCommandLen  = 10000
	MaxPathLen     = 4096
	MaxNameLen     = 128
	MaxTimeoutMS   = 10 * 60 * 1000

	MaxProfileConnections = 1000
	MaxHistoryEntries     = 500
	MaxListEntries        = 10000
	MaxListDepth          = 32

	MinPort = 1
	MaxPort = 65535
)

// ErrorDetail names one violated constraint so a front end can highlight the
// exact field.
type ErrorDetail struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// Result is the outcome of one validation pass. All violations are collected,
// not just the first.
type Result struct {
	Errors []ErrorDetail
}

func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

func (r *Result) fail(field, constraint, format string, args ...any) {
	r.Errors = append(r.Errors, ErrorDetail{
		Field:      field,
		Constraint: constraint,
		Message:    fmt.Sprintf(format, args...),
	})
}

var (
	hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,62}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,62}[a-zA-Z0-9])?)*$`)
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)
)

// sensitivePrefixes are absolute path prefixes no request path may target.
var sensitivePrefixes = []string{
	"/etc", "/sys", "/proc", "/boot", "/dev",
	`C:\Windows`, `C:\Program Files`,
}

func hasSensitivePrefix(p string) (string, bool) {
	lower := strings.ToLower(p)
	for _, prefix := range sensitivePrefixes {
		pl := strings.ToLower(prefix)
		if lower == pl || strings.HasPrefix(lower, pl+"/") || strings.HasPrefix(lower, pl+`\`) {
			return prefix, true
		}
	}
	return "", false
}

// Connect validates a connection config. Exactly one of password/privateKey
// must be present.
func Connect(cfg models.ConnectConfig) (models.ConnectConfig, Result) {
	var res Result

	cfg.Host = strings.TrimSpace(sanitize.StripNullBytes(cfg.Host))
	cfg.Username = strings.TrimSpace(sanitize.StripNullBytes(cfg.Username))

	switch {
	case cfg.Host == "":
		res.fail("host", "required", "host is required")
	case len(cfg.Host) > MaxHostLen:
		res.fail("host", "max_length", "host exceeds %d characters", MaxHostLen)
	case net.ParseIP(cfg.Host) == nil && !hostnameRe.MatchString(cfg.Host):
		res.fail("host", "format", "host is not a valid hostname or IP address")
	}

	if cfg.Port < MinPort || cfg.Port > MaxPort {
		res.fail("port", "range", "port must be between %d and %d", MinPort, MaxPort)
	}

	switch {
	case cfg.Username == "":
		res.fail("username", "required", "username is required")
	case len(cfg.Username) > MaxUsernameLen:
		res.fail("username", "max_length", "username exceeds %d characters", MaxUsernameLen)
	case !usernameRe.MatchString(cfg.Username):
		res.fail("username", "charset", "username contains disallowed characters")
	}

	hasPassword := cfg.Password != ""
	hasKey := cfg.PrivateKey != ""
	switch {
	case !hasPassword && !hasKey:
		res.fail("password", "required", "one of password or privateKey is required")
	case hasPassword && hasKey:
		res.fail("password", "exclusive", "password and privateKey are mutually exclusive")
	}
	if hasPassword {
		if len(cfg.Password) > MaxPasswordLen {
			res.fail("password", "max_length", "password exceeds %d characters", MaxPasswordLen)
		}
		if sanitize.HasNullBytes(cfg.Password) {
			res.fail("password", "charset", "password contains null bytes")
		}
	}
	if hasKey && sanitize.HasNullBytes(cfg.PrivateKey) {
		res.fail("privateKey", "charset", "privateKey contains null bytes")
	}

	return cfg, res
}

// Path validates a remote or local filesystem path. Traversal segments and
// sensitive system prefixes are rejected, never cleaned.
func Path(field, p string) (string, Result) {
	var res Result

	if sanitize.HasNullBytes(p) {
		res.fail(field, "charset", "path contains null bytes")
		p = sanitize.StripNullBytes(p)
	}
	p = strings.TrimSpace(p)

	switch {
	case p == "":
		res.fail(field, "required", "path is required")
	case len(p) > MaxPathLen:
		res.fail(field, "max_length", "path exceeds %d characters", MaxPathLen)
	case sanitize.HasTraversal(p):
		res.fail(field, "traversal", "path contains parent-directory traversal")
	default:
		if prefix, bad := hasSensitivePrefix(sanitize.NormalizeRemotePath(p)); bad {
			res.fail(field, "denied_prefix", "path targets protected location %s", prefix)
		}
	}

	return p, res
}
