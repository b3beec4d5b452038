// internal/ssh/manager_test.go

package ssh

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quantumxfer/internal/apperr"
	"quantumxfer/internal/models"
)

type fakeConn struct {
	execFn  func(ctx context.Context, command string) (string, int, error)
	dirs    map[string][]os.FileInfo
	dirErrs map[string]error
	statErr error

	uploadCalls atomic.Int32
	closed      atomic.Bool
}

func (c *fakeConn) Exec(ctx context.Context, command string) (string, int, error) {
	if c.execFn != nil {
		return c.execFn(ctx, command)
	}
	return "ok\n", 0, nil
}

func (c *fakeConn) ReadDir(p string) ([]os.FileInfo, error) {
	if err, ok := c.dirErrs[p]; ok {
		return nil, err
	}
	infos, ok := c.dirs[p]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return infos, nil
}

func (c *fakeConn) Stat(p string) (os.FileInfo, error) {
	if c.statErr != nil {
		return nil, c.statErr
	}
	return fileInfo{name: filepath.Base(p)}, nil
}

func (c *fakeConn) MkdirAll(p string) error { return nil }

func (c *fakeConn) Download(ctx context.Context, remotePath string, dst io.Writer) (int64, error) {
	n, err := dst.Write([]byte("remote-content"))
	return int64(n), err
}

func (c *fakeConn) Upload(ctx context.Context, src io.Reader, size int64, remotePath string) (int64, error) {
	c.uploadCalls.Add(1)
	return io.Copy(io.Discard, src)
}

func (c *fakeConn) Keepalive() error { return nil }

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

type fileInfo struct {
	name  string
	size  int64
	isDir bool
}

func (f fileInfo) Name() string       { return f.name }
func (f fileInfo) Size() int64        { return f.size }
func (f fileInfo) Mode() os.FileMode  { return 0o644 }
func (f fileInfo) ModTime() time.Time { return time.Unix(1700000000, 0) }
func (f fileInfo) IsDir() bool        { return f.isDir }
func (f fileInfo) Sys() any           { return nil }

type fakeDialer struct {
	conn    *fakeConn
	dialErr error
	dials   atomic.Int32
}

func (d *fakeDialer) Dial(ctx context.Context, cfg models.ConnectConfig) (Conn, error) {
	d.dials.Add(1)
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	if d.conn != nil {
		return d.conn, nil
	}
	return &fakeConn{}, nil
}

func testOptions() Options {
	return Options{
		DialTimeout:        time.Second,
		DefaultExecTimeout: time.Second,
		IdleThreshold:      15 * time.Minute,
		SweepInterval:      time.Minute,
		MaxSessions:        4,
		MaxUploadBytes:     1 << 20,
	}
}

func newTestManager(t *testing.T, dialer *fakeDialer, opts Options) *Manager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(dialer, logger, opts)
	t.Cleanup(m.Close)
	return m
}

func testConfig() models.ConnectConfig {
	return models.ConnectConfig{
		Host:     "example.com",
		Port:     22,
		Username: "deploy",
		Password: "secret",
	}
}

func mustConnect(t *testing.T, m *Manager) models.SessionSummary {
	t.Helper()
	sum, err := m.Connect(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return sum
}

func TestConnectRegistersSession(t *testing.T) {
	m := newTestManager(t, &fakeDialer{}, testOptions())

	sum := mustConnect(t, m)
	if sum.ID == "" {
		t.Fatal("empty session id")
	}
	if sum.State != models.StateConnected.String() {
		t.Fatalf("state = %s", sum.State)
	}

	sessions := m.Sessions()
	if len(sessions) != 1 || sessions[0].ID != sum.ID {
		t.Fatalf("sessions = %+v", sessions)
	}
}

func TestConnectFailureRegistersNothing(t *testing.T) {
	dialer := &fakeDialer{dialErr: errors.New("ssh: unable to authenticate, attempted methods [none password]")}
	m := newTestManager(t, dialer, testOptions())

	_, err := m.Connect(context.Background(), testConfig())
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.AsError(err).Code != apperr.CodeAuthFailed {
		t.Fatalf("code = %s", apperr.AsError(err).Code)
	}
	if len(m.Sessions()) != 0 {
		t.Fatal("failed connect left a session behind")
	}
}

func TestConnectEnforcesSessionCap(t *testing.T) {
	opts := testOptions()
	opts.MaxSessions = 2
	m := newTestManager(t, &fakeDialer{}, opts)

	mustConnect(t, m)
	mustConnect(t, m)

	_, err := m.Connect(context.Background(), testConfig())
	if apperr.AsError(err).Code != apperr.CodeResourceExhausted {
		t.Fatalf("err = %v", err)
	}
}

func TestExecuteNonzeroExitIsNotAnError(t *testing.T) {
	conn := &fakeConn{execFn: func(ctx context.Context, command string) (string, int, error) {
		return "grep: no match\n", 1, nil
	}}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	sum := mustConnect(t, m)

	res, err := m.Execute(context.Background(), sum.ID, "grep needle haystack", 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 1 || res.Output != "grep: no match\n" {
		t.Fatalf("res = %+v", res)
	}
}

func TestExecuteUnknownSession(t *testing.T) {
	m := newTestManager(t, &fakeDialer{}, testOptions())

	_, err := m.Execute(context.Background(), "no-such-id", "true", 0)
	if apperr.AsError(err).Code != apperr.CodeNotFoundConnection {
		t.Fatalf("err = %v", err)
	}
}

func TestExecuteTimeoutLeavesSessionUsable(t *testing.T) {
	conn := &fakeConn{execFn: func(ctx context.Context, command string) (string, int, error) {
		if command == "sleep 60" {
			<-ctx.Done()
			return "", 0, ctx.Err()
		}
		return "alive\n", 0, nil
	}}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	sum := mustConnect(t, m)

	_, err := m.Execute(context.Background(), sum.ID, "sleep 60", 20*time.Millisecond)
	if apperr.AsError(err).Code != apperr.CodeCommandTimeout {
		t.Fatalf("err = %v", err)
	}

	res, err := m.Execute(context.Background(), sum.ID, "echo alive", 0)
	if err != nil || res.Output != "alive\n" {
		t.Fatalf("session unusable after timeout: res=%+v err=%v", res, err)
	}
}

func TestExecuteSerializesPerSession(t *testing.T) {
	var active, maxActive atomic.Int32
	conn := &fakeConn{execFn: func(ctx context.Context, command string) (string, int, error) {
		cur := active.Add(1)
		for {
			prev := maxActive.Load()
			if cur <= prev || maxActive.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return "", 0, nil
	}}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	sum := mustConnect(t, m)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Execute(context.Background(), sum.ID, "true", 0); err != nil {
				t.Errorf("Execute: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := maxActive.Load(); got != 1 {
		t.Fatalf("concurrent commands on one session: max in flight = %d", got)
	}
}

func TestIndependentSessionsRunInParallel(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	m := newTestManager(t, &fakeDialer{conn: &fakeConn{
		execFn: func(ctx context.Context, command string) (string, int, error) {
			started <- struct{}{}
			<-release
			return "", 0, nil
		},
	}}, testOptions())

	a := mustConnect(t, m)
	b := mustConnect(t, m)

	for _, id := range []string{a.ID, b.ID} {
		go m.Execute(context.Background(), id, "true", 0)
	}

	// Both commands must enter Exec without waiting on each other.
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			close(release)
			t.Fatal("sessions serialized against each other")
		}
	}
	close(release)
}

func TestListDirectoryTruncatesAtEntryBound(t *testing.T) {
	infos := make([]os.FileInfo, 10)
	for i := range infos {
		infos[i] = fileInfo{name: string(rune('a' + i)), size: int64(i)}
	}
	conn := &fakeConn{dirs: map[string][]os.FileInfo{"/data": infos}}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	sum := mustConnect(t, m)

	res, err := m.ListDirectory(context.Background(), models.ListDirectoryPayload{
		SessionID:  sum.ID,
		Path:       "/data",
		MaxEntries: 3,
		MaxDepth:   1,
	})
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(res.Entries) != 3 || !res.Truncated {
		t.Fatalf("entries=%d truncated=%v", len(res.Entries), res.Truncated)
	}
}

func TestListDirectoryRecursionBounds(t *testing.T) {
	conn := &fakeConn{dirs: map[string][]os.FileInfo{
		"/root":     {fileInfo{name: "lvl1", isDir: true}},
		"/root/lvl1": {fileInfo{name: "lvl2", isDir: true}},
		// lvl2 is never read: depth cap stops the walk before it.
	}}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	sum := mustConnect(t, m)

	res, err := m.ListDirectory(context.Background(), models.ListDirectoryPayload{
		SessionID:  sum.ID,
		Path:       "/root",
		Recursive:  true,
		MaxDepth:   2,
		MaxEntries: 100,
	})
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %+v", res.Entries)
	}
	if !res.Truncated {
		t.Fatal("depth-capped walk not flagged as truncated")
	}
}

func TestListDirectoryPrunesForbiddenSubtrees(t *testing.T) {
	conn := &fakeConn{
		dirs: map[string][]os.FileInfo{
			"/root": {
				fileInfo{name: "open", isDir: true},
				fileInfo{name: "locked", isDir: true},
			},
			"/root/open": {fileInfo{name: "file.txt", size: 12}},
		},
		dirErrs: map[string]error{"/root/locked": fs.ErrPermission},
	}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	sum := mustConnect(t, m)

	res, err := m.ListDirectory(context.Background(), models.ListDirectoryPayload{
		SessionID:  sum.ID,
		Path:       "/root",
		Recursive:  true,
		MaxDepth:   5,
		MaxEntries: 100,
	})
	if err != nil {
		t.Fatalf("permission failure below root should prune, got %v", err)
	}
	if len(res.Entries) != 3 {
		t.Fatalf("entries = %+v", res.Entries)
	}
}

func TestListDirectorySkipsTraversalEntryNames(t *testing.T) {
	conn := &fakeConn{dirs: map[string][]os.FileInfo{
		"/data": {
			fileInfo{name: "..", isDir: true},
			fileInfo{name: ".", isDir: true},
			fileInfo{name: "ok.txt", size: 4},
		},
	}}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	sum := mustConnect(t, m)

	res, err := m.ListDirectory(context.Background(), models.ListDirectoryPayload{
		SessionID: sum.ID, Path: "/data", Recursive: true, MaxDepth: 5, MaxEntries: 10,
	})
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Path != "/data/ok.txt" {
		t.Fatalf("entries = %+v", res.Entries)
	}
}

func TestListDirectoryRootPermissionFails(t *testing.T) {
	conn := &fakeConn{dirErrs: map[string]error{"/root": fs.ErrPermission}}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	sum := mustConnect(t, m)

	_, err := m.ListDirectory(context.Background(), models.ListDirectoryPayload{
		SessionID: sum.ID, Path: "/root", MaxDepth: 1, MaxEntries: 10,
	})
	if apperr.AsError(err).Code != apperr.CodePermissionDenied {
		t.Fatalf("err = %v", err)
	}
}

func TestDownloadMissingRemoteFile(t *testing.T) {
	conn := &fakeConn{statErr: fs.ErrNotExist}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	sum := mustConnect(t, m)

	local := filepath.Join(t.TempDir(), "out.bin")
	_, err := m.Download(context.Background(), models.DownloadPayload{
		SessionID:  sum.ID,
		RemotePath: "/missing",
		LocalPath:  local,
	})
	if apperr.AsError(err).Code != apperr.CodeNotFoundFile {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := os.Stat(local); !errors.Is(statErr, fs.ErrNotExist) {
		t.Fatal("local file created despite missing remote")
	}
}

func TestDownloadWritesLocalFile(t *testing.T) {
	m := newTestManager(t, &fakeDialer{conn: &fakeConn{}}, testOptions())
	sum := mustConnect(t, m)

	local := filepath.Join(t.TempDir(), "nested", "out.bin")
	res, err := m.Download(context.Background(), models.DownloadPayload{
		SessionID:  sum.ID,
		RemotePath: "/etc-free/file",
		LocalPath:  local,
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("local file missing: %v", err)
	}
	if string(data) != "remote-content" || res.BytesTransferred != int64(len(data)) {
		t.Fatalf("data=%q res=%+v", data, res)
	}
}

func TestUploadRejectsOversizeBeforeTransfer(t *testing.T) {
	conn := &fakeConn{}
	opts := testOptions()
	opts.MaxUploadBytes = 16
	m := newTestManager(t, &fakeDialer{conn: conn}, opts)
	sum := mustConnect(t, m)

	local := filepath.Join(t.TempDir(), "big.bin")
	if err := os.WriteFile(local, make([]byte, 64), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := m.Upload(context.Background(), models.UploadPayload{
		SessionID:  sum.ID,
		LocalPath:  local,
		RemotePath: "/tmp/big.bin",
	})
	if apperr.AsError(err).Code != apperr.CodeFileSizeExceedsLimit {
		t.Fatalf("err = %v", err)
	}
	if conn.uploadCalls.Load() != 0 {
		t.Fatal("oversize file reached the transport")
	}
}

func TestUploadHonorsCallerLimitBelowDaemonCap(t *testing.T) {
	conn := &fakeConn{}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	sum := mustConnect(t, m)

	local := filepath.Join(t.TempDir(), "f.bin")
	if err := os.WriteFile(local, make([]byte, 100), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := m.Upload(context.Background(), models.UploadPayload{
		SessionID:    sum.ID,
		LocalPath:    local,
		RemotePath:   "/tmp/f.bin",
		MaxSizeBytes: 50,
	})
	if apperr.AsError(err).Code != apperr.CodeFileSizeExceedsLimit {
		t.Fatalf("err = %v", err)
	}

	res, err := m.Upload(context.Background(), models.UploadPayload{
		SessionID:    sum.ID,
		LocalPath:    local,
		RemotePath:   "/tmp/f.bin",
		MaxSizeBytes: 200,
	})
	if err != nil || res.BytesTransferred != 100 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	conn := &fakeConn{}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	sum := mustConnect(t, m)

	m.Disconnect(sum.ID)
	if !conn.closed.Load() {
		t.Fatal("transport not closed")
	}
	if len(m.Sessions()) != 0 {
		t.Fatal("session still listed")
	}

	// Second disconnect and unknown ids are no-ops.
	m.Disconnect(sum.ID)
	m.Disconnect("never-existed")
}

func TestSweepReclaimsIdleSessions(t *testing.T) {
	conn := &fakeConn{}
	m := newTestManager(t, &fakeDialer{conn: conn}, testOptions())
	idle := mustConnect(t, m)
	fresh := mustConnect(t, m)

	sess, err := m.get(idle.ID)
	if err != nil {
		t.Fatal(err)
	}
	sess.stateMu.Lock()
	sess.lastActivity = time.Now().UTC().Add(-time.Hour)
	sess.stateMu.Unlock()

	m.sweepIdle()

	sessions := m.Sessions()
	if len(sessions) != 1 || sessions[0].ID != fresh.ID {
		t.Fatalf("sessions = %+v", sessions)
	}
	if !conn.closed.Load() {
		t.Fatal("idle transport not closed")
	}
}

func TestSweepSkipsBusySessions(t *testing.T) {
	m := newTestManager(t, &fakeDialer{conn: &fakeConn{}}, testOptions())
	sum := mustConnect(t, m)

	sess, err := m.get(sum.ID)
	if err != nil {
		t.Fatal(err)
	}
	sess.stateMu.Lock()
	sess.lastActivity = time.Now().UTC().Add(-time.Hour)
	sess.stateMu.Unlock()

	// An in-flight operation holds the lane; the sweeper must not touch it.
	sess.opMu.Lock()
	m.sweepIdle()
	sess.opMu.Unlock()

	if len(m.Sessions()) != 1 {
		t.Fatal("busy session reclaimed")
	}
}
