// internal/apperr/apperr_test.go

package apperr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"
)

func TestMessageTemplates(t *testing.T) {
	got := Message(CodeNotFoundConnection, "abc123")
	if got != `no active session with id abc123` {
		t.Errorf("Message = %q", got)
	}
	if Message(CodeSystemError) != "internal error" {
		t.Errorf("Message(system) = %q", Message(CodeSystemError))
	}
	if Message(Code("BOGUS")) != "BOGUS" {
		t.Errorf("unknown code not passed through")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeValidationError, 400},
		{CodeAuthFailed, 401},
		{CodeNotFoundConnection, 404},
		{CodeConflict, 409},
		{CodeFileSizeExceedsLimit, 413},
		{CodeCommandTimeout, 504},
		{CodeSystemError, 500},
		{Code("BOGUS"), 500},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.code); got != tc.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestCategoryOf(t *testing.T) {
	cases := []struct {
		code Code
		want Category
	}{
		{CodeValidationError, CategoryValidation},
		{CodeAuthFailed, CategoryAuthentication},
		{CodeNotFoundFile, CategoryNotFound},
		{CodeCommandTimeout, CategoryTimeout},
		{CodeNetworkError, CategoryNetwork},
		{CodePermissionDenied, CategoryFilesystem},
		{CodeResourceExhausted, CategorySystem},
		{Code("BOGUS"), CategorySystem},
	}
	for _, tc := range cases {
		if got := CategoryOf(tc.code); got != tc.want {
			t.Errorf("CategoryOf(%s) = %s, want %s", tc.code, got, tc.want)
		}
	}
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeAuthFailed, "ops", "h1:22"))
	if !errors.Is(err, New(CodeAuthFailed)) {
		t.Fatal("errors.Is should match by code")
	}
	if errors.Is(err, New(CodeConflict)) {
		t.Fatal("errors.Is matched a different code")
	}
}

func TestSystemErrorHidesCause(t *testing.T) {
	cause := errors.New("pointer corruption in table")
	e := System(cause)
	if e.CorrelationID == "" {
		t.Fatal("missing correlation id")
	}
	if e.Message != "internal error" {
		t.Fatalf("caller-visible message leaks detail: %q", e.Message)
	}
	if !errors.Is(e, cause) {
		t.Fatal("cause not wrapped for logs")
	}
}

func TestAsError(t *testing.T) {
	coded := New(CodeConflict, "bookmark", "db1")
	if got := AsError(fmt.Errorf("wrap: %w", coded)); got.Code != CodeConflict {
		t.Fatalf("AsError lost code: %s", got.Code)
	}
	if got := AsError(errors.New("plain")); got.Code != CodeSystemError {
		t.Fatalf("uncoded error should become system: %s", got.Code)
	}
}

func TestMapDialError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"timeout", context.DeadlineExceeded, CodeConnectionTimeout},
		{"auth", errors.New("ssh: unable to authenticate, attempted methods [password]"), CodeAuthFailed},
		{"host key", errors.New("knownhosts: key is unknown"), CodeKnownHostMismatch},
		{"refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), CodeConnectionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MapDialError(tc.err, "h1:22"); got.Code != tc.want {
				t.Fatalf("code = %s, want %s", got.Code, tc.want)
			}
		})
	}
}

func TestMapTransportError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"not found", fs.ErrNotExist, CodeNotFoundFile},
		{"permission", fs.ErrPermission, CodePermissionDenied},
		{"reset", syscall.ECONNRESET, CodeNetworkError},
		{"deadline", context.DeadlineExceeded, CodeCommandTimeout},
		{"other", errors.New("channel open failed"), CodeTransportError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MapTransportError(tc.err, "/srv/f"); got.Code != tc.want {
				t.Fatalf("code = %s, want %s", got.Code, tc.want)
			}
		})
	}
}

func TestWithDetail(t *testing.T) {
	e := New(CodeValidationError).WithDetail("field", "host")
	if e.Details["field"] != "host" {
		t.Fatalf("detail not set: %+v", e.Details)
	}
}
