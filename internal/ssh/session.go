// internal/ssh/session.go

package ssh

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"quantumxfer/internal/models"
)

// Session is one live remote connection owned by the Manager. Callers only
// ever hold its id; the transport handle never crosses the boundary.
type Session struct {
	id         string
	host       string
	port       int
	username   string
	authMethod models.AuthMethod
	createdAt  time.Time

	conn Conn

	// opMu is the serialization lane: command execution and SFTP operations
	// on one session take it in turn, because the underlying multiplexer is
	// not safe for concurrent use by independent callers.
	opMu sync.Mutex

	stateMu      sync.RWMutex
	state        models.SessionState
	lastActivity time.Time

	stopChan chan struct{}
	stopOnce sync.Once
}

func newSession(cfg models.ConnectConfig) *Session {
	now := time.Now().UTC()
	return &Session{
		id:           uuid.NewString(),
		host:         cfg.Host,
		port:         cfg.Port,
		username:     cfg.Username,
		authMethod:   cfg.Method(),
		createdAt:    now,
		state:        models.StateConnecting,
		lastActivity: now,
		stopChan:     make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() models.SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(state models.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	// Terminal states are final; a keepalive failure must not be overwritten
	// by an operation epilogue restoring Connected.
	if s.state.Terminal() {
		return
	}
	s.state = state
}

func (s *Session) touch() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.lastActivity = time.Now().UTC()
}

func (s *Session) lastActivityAt() time.Time {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastActivity
}

// close tears down the transport. Safe to call more than once.
func (s *Session) close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Summary returns the credential-free view of the session.
func (s *Session) Summary() models.SessionSummary {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return models.SessionSummary{
		ID:             s.id,
		Host:           s.host,
		Port:           s.port,
		Username:       s.username,
		AuthMethod:     s.authMethod,
		State:          s.state.String(),
		CreatedAt:      s.createdAt,
		LastActivityAt: s.lastActivity,
	}
}
