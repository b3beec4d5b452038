// internal/ssh/manager.go
//
// The Manager owns the table of live sessions. All access to a session's
// transport goes through it: callers hold opaque ids, operations on one
// session are serialized on that session's lane, and independent sessions
// run fully in parallel.

package ssh

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"quantumxfer/internal/apperr"
	"quantumxfer/internal/models"
	"quantumxfer/internal/sanitize"
)

// Options bound the Manager's resource use and timing.
type Options struct {
	DialTimeout        time.Duration
	DefaultExecTimeout time.Duration
	KeepaliveInterval  time.Duration
	IdleThreshold      time.Duration
	SweepInterval      time.Duration
	MaxSessions        int
	MaxUploadBytes     int64
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	dialer Dialer
	logger *slog.Logger
	opts   Options
}

func NewManager(dialer Dialer, logger *slog.Logger, opts Options) *Manager {
	return &Manager{
		sessions: map[string]*Session{},
		dialer:   dialer,
		logger:   logger,
		opts:     opts,
	}
}

// Connect establishes and registers a new session. On any failure nothing is
// registered; a session id is never reused.
func (m *Manager) Connect(ctx context.Context, cfg models.ConnectConfig) (models.SessionSummary, error) {
	m.mu.RLock()
	active := len(m.sessions)
	m.mu.RUnlock()
	if active >= m.opts.MaxSessions {
		return models.SessionSummary{}, apperr.New(apperr.CodeResourceExhausted, "active sessions")
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	sess := newSession(cfg)

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	defer cancel()

	conn, err := m.dialer.Dial(dialCtx, cfg)
	if err != nil {
		return models.SessionSummary{}, apperr.MapDialError(err, addr)
	}
	sess.conn = conn
	sess.setState(models.StateConnected)

	m.mu.Lock()
	if len(m.sessions) >= m.opts.MaxSessions {
		m.mu.Unlock()
		conn.Close()
		return models.SessionSummary{}, apperr.New(apperr.CodeResourceExhausted, "active sessions")
	}
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	if m.opts.KeepaliveInterval > 0 {
		go m.keepaliveLoop(sess)
	}

	m.logger.Info("session connected",
		"session_id", sess.id, "addr", addr, "user", cfg.Username, "auth", string(cfg.Method()))
	return sess.Summary(), nil
}

// Execute runs one command on the session, serialized against other
// operations on the same session. Timeout zero means the daemon default; on
// timeout the remote channel is closed and the session stays usable.
func (m *Manager) Execute(ctx context.Context, sessionID, command string, timeout time.Duration) (models.ExecResult, error) {
	sess, err := m.get(sessionID)
	if err != nil {
		return models.ExecResult{}, err
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()
	if sess.State().Terminal() {
		return models.ExecResult{}, apperr.New(apperr.CodeNotFoundConnection, sessionID)
	}
	sess.setState(models.StateExecuting)
	defer func() {
		sess.setState(models.StateConnected)
		sess.touch()
	}()

	if timeout <= 0 {
		timeout = m.opts.DefaultExecTimeout
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	output, exitCode, err := sess.conn.Exec(opCtx, command)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.ExecResult{}, apperr.Wrap(apperr.CodeCommandTimeout, err, timeout)
		}
		return models.ExecResult{}, apperr.Wrap(apperr.CodeCommandExecutionFailed, err)
	}

	return models.ExecResult{
		Output:   output,
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}

// ListDirectory lists a remote directory, optionally recursing with depth and
// entry bounds. Exceeding a bound truncates the result instead of failing.
func (m *Manager) ListDirectory(ctx context.Context, p models.ListDirectoryPayload) (models.ListResult, error) {
	sess, err := m.get(p.SessionID)
	if err != nil {
		return models.ListResult{}, err
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()
	if sess.State().Terminal() {
		return models.ListResult{}, apperr.New(apperr.CodeNotFoundConnection, p.SessionID)
	}
	sess.setState(models.StateExecuting)
	defer func() {
		sess.setState(models.StateConnected)
		sess.touch()
	}()

	var result models.ListResult

	type dirLevel struct {
		path  string
		depth int
	}
	queue := []dirLevel{{path: p.Path, depth: 0}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return models.ListResult{}, apperr.MapTransportError(err, p.Path)
		}
		dir := queue[0]
		queue = queue[1:]

		infos, err := sess.conn.ReadDir(dir.path)
		if err != nil {
			// Permission failures below the root only prune that subtree.
			if dir.depth > 0 && errors.Is(err, fs.ErrPermission) {
				continue
			}
			return models.ListResult{}, apperr.MapTransportError(err, dir.path)
		}

		for _, info := range infos {
			if len(result.Entries) >= p.MaxEntries {
				result.Truncated = true
				return result, nil
			}
			// Entry names come from the remote side; a ".." name would escape
			// the listing root once joined.
			name := sanitize.RemoveTraversal(info.Name())
			if name == "" || name == "." {
				continue
			}
			full := path.Join(dir.path, name)
			result.Entries = append(result.Entries, models.FileEntry{
				Name:    name,
				Path:    full,
				Size:    info.Size(),
				Mode:    info.Mode().String(),
				IsDir:   info.IsDir(),
				ModTime: info.ModTime().UTC(),
			})
			if p.Recursive && info.IsDir() {
				if dir.depth+1 >= p.MaxDepth {
					result.Truncated = true
					continue
				}
				queue = append(queue, dirLevel{path: full, depth: dir.depth + 1})
			}
		}
	}

	return result, nil
}

// Download copies a remote file to a local path. The remote file is stat'ed
// first so a missing file fails before any local file is created.
func (m *Manager) Download(ctx context.Context, p models.DownloadPayload) (models.TransferResult, error) {
	sess, err := m.get(p.SessionID)
	if err != nil {
		return models.TransferResult{}, err
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()
	if sess.State().Terminal() {
		return models.TransferResult{}, apperr.New(apperr.CodeNotFoundConnection, p.SessionID)
	}
	sess.setState(models.StateExecuting)
	defer func() {
		sess.setState(models.StateConnected)
		sess.touch()
	}()

	if _, err := sess.conn.Stat(p.RemotePath); err != nil {
		return models.TransferResult{}, apperr.MapTransportError(err, p.RemotePath)
	}

	if err := os.MkdirAll(filepath.Dir(p.LocalPath), 0o755); err != nil {
		return models.TransferResult{}, apperr.MapLocalFileError(err, p.LocalPath)
	}
	dst, err := os.Create(p.LocalPath)
	if err != nil {
		return models.TransferResult{}, apperr.MapLocalFileError(err, p.LocalPath)
	}
	defer dst.Close()

	start := time.Now()
	written, err := sess.conn.Download(ctx, p.RemotePath, dst)
	if err != nil {
		return models.TransferResult{}, apperr.MapTransportError(err, p.RemotePath)
	}
	if err := dst.Sync(); err != nil {
		return models.TransferResult{}, apperr.MapLocalFileError(err, p.LocalPath)
	}

	return models.TransferResult{
		BytesTransferred: written,
		Duration:         time.Since(start),
	}, nil
}

// Upload copies a local file to a remote path. The size limit is enforced
// from local metadata before any remote write stream is opened.
func (m *Manager) Upload(ctx context.Context, p models.UploadPayload) (models.TransferResult, error) {
	sess, err := m.get(p.SessionID)
	if err != nil {
		return models.TransferResult{}, err
	}

	limit := m.opts.MaxUploadBytes
	if p.MaxSizeBytes > 0 && p.MaxSizeBytes < limit {
		limit = p.MaxSizeBytes
	}

	info, err := os.Stat(p.LocalPath)
	if err != nil {
		return models.TransferResult{}, apperr.MapLocalFileError(err, p.LocalPath)
	}
	if info.IsDir() {
		return models.TransferResult{}, apperr.New(apperr.CodeFileWriteError, p.LocalPath).
			WithDetail("reason", "path is a directory")
	}
	if info.Size() > limit {
		return models.TransferResult{}, apperr.New(apperr.CodeFileSizeExceedsLimit, info.Size(), limit)
	}

	sess.opMu.Lock()
	defer sess.opMu.Unlock()
	if sess.State().Terminal() {
		return models.TransferResult{}, apperr.New(apperr.CodeNotFoundConnection, p.SessionID)
	}
	sess.setState(models.StateExecuting)
	defer func() {
		sess.setState(models.StateConnected)
		sess.touch()
	}()

	src, err := os.Open(p.LocalPath)
	if err != nil {
		return models.TransferResult{}, apperr.MapLocalFileError(err, p.LocalPath)
	}
	defer src.Close()

	if dir := path.Dir(p.RemotePath); dir != "." && dir != "/" {
		if err := sess.conn.MkdirAll(dir); err != nil {
			return models.TransferResult{}, apperr.MapTransportError(err, dir)
		}
	}

	start := time.Now()
	written, err := sess.conn.Upload(ctx, src, info.Size(), p.RemotePath)
	if err != nil {
		return models.TransferResult{}, apperr.MapTransportError(err, p.RemotePath)
	}

	return models.TransferResult{
		BytesTransferred: written,
		Duration:         time.Since(start),
	}, nil
}

// Disconnect tears down a session. Idempotent: unknown or already-closed ids
// succeed silently so cleanup paths stay simple.
func (m *Manager) Disconnect(sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	// Same lane as any operation, so teardown never races a command.
	sess.opMu.Lock()
	defer sess.opMu.Unlock()
	sess.setState(models.StateDisconnecting)
	if err := sess.close(); err != nil {
		m.logger.Warn("session close", "session_id", sessionID, "err", err)
	}
	sess.setState(models.StateClosed)
	m.logger.Info("session disconnected", "session_id", sessionID)
}

// Sessions returns credential-free summaries of all live sessions.
func (m *Manager) Sessions() []models.SessionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.SessionSummary, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Info returns the summary of one session.
func (m *Manager) Info(sessionID string) (models.SessionSummary, error) {
	sess, err := m.get(sessionID)
	if err != nil {
		return models.SessionSummary{}, err
	}
	return sess.Summary(), nil
}

// Close disconnects every live session.
func (m *Manager) Close() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.Disconnect(id)
	}
}

func (m *Manager) get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFoundConnection, sessionID)
	}
	return sess, nil
}

func (m *Manager) keepaliveLoop(sess *Session) {
	ticker := time.NewTicker(m.opts.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sess.conn.Keepalive(); err != nil {
				m.fail(sess, err)
				return
			}
		case <-sess.stopChan:
			return
		}
	}
}

// fail removes a session whose transport died underneath it.
func (m *Manager) fail(sess *Session, cause error) {
	m.mu.Lock()
	delete(m.sessions, sess.id)
	m.mu.Unlock()

	sess.setState(models.StateFailed)
	sess.close()
	m.logger.Warn("session failed", "session_id", sess.id, "err", cause)
}
