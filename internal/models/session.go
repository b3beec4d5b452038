// internal/models/session.go

package models

import "time"

// SessionState tracks the lifecycle of one remote connection.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateConnected
	StateExecuting
	StateDisconnecting
	StateClosed
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateExecuting:
		return "executing"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthKey      AuthMethod = "key"
)

// ConnectConfig is the validated input for opening a session. Exactly one of
// Password / PrivateKey is set.
type ConnectConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password,omitempty"`
	PrivateKey   string `json:"privateKey,omitempty"`
	TrustHostKey bool   `json:"trustHostKey,omitempty"`
}

func (c ConnectConfig) Method() AuthMethod {
	if c.PrivateKey != "" {
		return AuthKey
	}
	return AuthPassword
}

// SessionSummary is the credential-free view of a session handed to callers.
type SessionSummary struct {
	ID             string     `json:"sessionId"`
	Host           string     `json:"host"`
	Port           int        `json:"port"`
	Username       string     `json:"username"`
	AuthMethod     AuthMethod `json:"authMethod"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
}

// FileEntry describes one remote directory entry.
type FileEntry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	Mode    string    `json:"mode"`
	IsDir   bool      `json:"isDir"`
	ModTime time.Time `json:"modTime"`
}

// ExecResult is the outcome of one remote command run to completion.
type ExecResult struct {
	Output   string        `json:"output"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"durationNs"`
}

// ListResult carries a bounded directory listing. Truncated is set when a
// depth or entry bound cut the walk short.
type ListResult struct {
	Entries   []FileEntry `json:"entries"`
	Truncated bool        `json:"truncated"`
}

// TransferResult summarizes a completed file transfer.
type TransferResult struct {
	BytesTransferred int64         `json:"bytesTransferred"`
	Duration         time.Duration `json:"durationNs"`
}
