// internal/apperr/codes.go

package apperr

import "fmt"

// Code is a stable machine-readable error kind.
type Code string

const (
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeAuthFailed        Code = "AUTH_FAILED"
	CodeKnownHostMismatch Code = "KNOWN_HOST_MISMATCH"

	CodeNotFoundConnection Code = "NOT_FOUND_CONNECTION"
	CodeNotFoundFile       Code = "NOT_FOUND_FILE"
	CodeNotFoundResource   Code = "NOT_FOUND_RESOURCE"

	CodeConflict Code = "CONFLICT"

	CodeConnectionTimeout Code = "CONNECTION_TIMEOUT"
	CodeCommandTimeout    Code = "COMMAND_TIMEOUT"

	CodeConnectionFailed Code = "CONNECTION_FAILED"
	CodeNetworkError     Code = "NETWORK_ERROR"
	CodeTransportError   Code = "TRANSPORT_ERROR"

	CodeCommandExecutionFailed Code = "COMMAND_EXECUTION_FAILED"

	CodePermissionDenied     Code = "PERMISSION_DENIED"
	CodeFileWriteError       Code = "FILE_WRITE_ERROR"
	CodeFileSizeExceedsLimit Code = "FILE_SIZE_EXCEEDS_LIMIT"

	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"
	CodeSystemError       Code = "SYSTEM_ERROR"
)

// Category groups codes for retry-policy decisions at the caller.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryAuthentication Category = "authentication"
	CategoryNotFound       Category = "not_found"
	CategoryConflict       Category = "conflict"
	CategoryTimeout        Category = "timeout"
	CategoryNetwork        Category = "network"
	CategoryTransport      Category = "transport"
	CategoryFilesystem     Category = "filesystem"
	CategorySystem         Category = "system"
)

type codeInfo struct {
	category Category
	status   int
	template string
}

var codes = map[Code]codeInfo{
	CodeValidationError:    {CategoryValidation, 400, "request validation failed"},
	CodeAuthFailed:         {CategoryAuthentication, 401, "authentication failed for %s@%s"},
	CodeKnownHostMismatch:  {CategoryAuthentication, 401, "host key for %s is not trusted"},
	CodeNotFoundConnection: {CategoryNotFound, 404, "no active session with id %s"},
	CodeNotFoundFile:       {CategoryNotFound, 404, "remote file not found: %s"},
	CodeNotFoundResource:   {CategoryNotFound, 404, "%s not found: %s"},
	CodeConflict:           {CategoryConflict, 409, "%s already exists: %s"},
	CodeConnectionTimeout:  {CategoryTimeout, 504, "connection to %s timed out"},
	CodeCommandTimeout:     {CategoryTimeout, 504, "command did not complete within %s"},
	CodeConnectionFailed:   {CategoryNetwork, 502, "could not connect to %s"},
	CodeNetworkError:       {CategoryNetwork, 502, "network failure: %s"},
	CodeTransportError:     {CategoryTransport, 502, "transport failure: %s"},

	CodeCommandExecutionFailed: {CategoryTransport, 502, "command execution failed"},

	CodePermissionDenied:     {CategoryFilesystem, 403, "permission denied: %s"},
	CodeFileWriteError:       {CategoryFilesystem, 500, "file write failed: %s"},
	CodeFileSizeExceedsLimit: {CategoryFilesystem, 413, "file size %d exceeds limit of %d bytes"},

	CodeResourceExhausted: {CategorySystem, 429, "resource limit reached: %s"},
	CodeSystemError:       {CategorySystem, 500, "internal error"},
}

// CategoryOf reports the retry category for a code. Unknown codes are system.
func CategoryOf(code Code) Category {
	if info, ok := codes[code]; ok {
		return info.category
	}
	return CategorySystem
}

// HTTPStatus maps a code to its HTTP-equivalent status, for parity across
// transports carrying the envelope.
func HTTPStatus(code Code) int {
	if info, ok := codes[code]; ok {
		return info.status
	}
	return 500
}

// Message renders the code's message template. Without args the raw template
// is returned with its verbs stripped of substitution.
func Message(code Code, args ...any) string {
	info, ok := codes[code]
	if !ok {
		return string(code)
	}
	if len(args) == 0 {
		return info.template
	}
	return fmt.Sprintf(info.template, args...)
}
