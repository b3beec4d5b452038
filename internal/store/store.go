// internal/store/store.go
//
// Package store persists bookmarks and profiles in SQLite. Credential fields
// inside profiles are sealed with the daemon cipher before they touch disk
// and are never returned to callers.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"quantumxfer/internal/crypto"
	"quantumxfer/internal/models"
)

var (
	ErrDuplicate = errors.New("duplicate")
	ErrNotFound  = errors.New("not found")
)

type Store struct {
	db     *sql.DB
	cipher *crypto.Cipher
}

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	host       TEXT NOT NULL,
	port       INTEGER NOT NULL,
	username   TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS profiles (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	connections TEXT NOT NULL,
	settings    TEXT NOT NULL,
	history     TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
`

// Open creates the database file and schema if needed.
func Open(ctx context.Context, path string, cipher *crypto.Cipher) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		db.Close()
		return nil, fmt.Errorf("chmod db path: %w", err)
	}
	return &Store{db: db, cipher: cipher}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddBookmark inserts a bookmark, assigning its id. A duplicate name returns
// ErrDuplicate.
func (s *Store) AddBookmark(ctx context.Context, b models.Bookmark) (models.Bookmark, error) {
	b.ID = uuid.NewString()
	b.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO bookmarks(id, name, host, port, username, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, b.ID, b.Name, b.Host, b.Port, b.Username, ts(b.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Bookmark{}, fmt.Errorf("bookmark %q: %w", b.Name, ErrDuplicate)
		}
		return models.Bookmark{}, fmt.Errorf("insert bookmark: %w", err)
	}
	return b, nil
}

// RemoveBookmark deletes a bookmark by id. Unknown ids return ErrNotFound.
func (s *Store) RemoveBookmark(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bookmark %q: %w", id, ErrNotFound)
	}
	return nil
}

// ListBookmarks returns all bookmarks ordered by name.
func (s *Store) ListBookmarks(ctx context.Context) ([]models.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, host, port, username, created_at FROM bookmarks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	out := []models.Bookmark{}
	for rows.Next() {
		var b models.Bookmark
		var createdAt string
		if err := rows.Scan(&b.ID, &b.Name, &b.Host, &b.Port, &b.Username, &createdAt); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		b.CreatedAt = parseTS(createdAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveProfile upserts a profile by name, sealing credentials before they are
// written. The returned profile has credential fields blanked.
func (s *Store) SaveProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	sealed := make([]models.ProfileConnection, len(p.Connections))
	for i, pc := range p.Connections {
		out := pc
		var err error
		if pc.Password != "" {
			if out.Password, err = s.cipher.Encrypt(pc.Password); err != nil {
				return models.Profile{}, fmt.Errorf("seal password: %w", err)
			}
		}
		if pc.PrivateKey != "" {
			if out.PrivateKey, err = s.cipher.Encrypt(pc.PrivateKey); err != nil {
				return models.Profile{}, fmt.Errorf("seal private key: %w", err)
			}
		}
		sealed[i] = out
	}

	connJSON, err := json.Marshal(sealed)
	if err != nil {
		return models.Profile{}, fmt.Errorf("marshal connections: %w", err)
	}
	settingsJSON, err := json.Marshal(orEmptyMap(p.Settings))
	if err != nil {
		return models.Profile{}, fmt.Errorf("marshal settings: %w", err)
	}
	historyJSON, err := json.Marshal(orEmptySlice(p.History))
	if err != nil {
		return models.Profile{}, fmt.Errorf("marshal history: %w", err)
	}

	p.ID = uuid.NewString()
	p.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO profiles(id, name, connections, settings, history, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	connections=excluded.connections,
	settings=excluded.settings,
	history=excluded.history,
	updated_at=excluded.updated_at
`, p.ID, p.Name, string(connJSON), string(settingsJSON), string(historyJSON), ts(p.UpdatedAt))
	if err != nil {
		return models.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}

	return s.LoadProfile(ctx, p.Name)
}

// LoadProfile fetches a profile by name with credential fields blanked.
func (s *Store) LoadProfile(ctx context.Context, name string) (models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, connections, settings, history, updated_at FROM profiles WHERE name = ?`, name)

	var p models.Profile
	var connJSON, settingsJSON, historyJSON, updatedAt string
	err := row.Scan(&p.ID, &p.Name, &connJSON, &settingsJSON, &historyJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, fmt.Errorf("profile %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("load profile: %w", err)
	}

	if err := json.Unmarshal([]byte(connJSON), &p.Connections); err != nil {
		return models.Profile{}, fmt.Errorf("unmarshal connections: %w", err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &p.Settings); err != nil {
		return models.Profile{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &p.History); err != nil {
		return models.Profile{}, fmt.Errorf("unmarshal history: %w", err)
	}
	p.UpdatedAt = parseTS(updatedAt)

	// Credentials are write-only across the boundary.
	for i := range p.Connections {
		p.Connections[i].Password = ""
		p.Connections[i].PrivateKey = ""
	}
	return p, nil
}

// ProfileCredentials opens the sealed credentials of one profile connection
// for in-process use (connecting from a preset). Never exposed to callers.
func (s *Store) ProfileCredentials(ctx context.Context, name string, index int) (password, privateKey string, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT connections FROM profiles WHERE name = ?`, name)
	var connJSON string
	if err := row.Scan(&connJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", fmt.Errorf("profile %q: %w", name, ErrNotFound)
		}
		return "", "", fmt.Errorf("load profile: %w", err)
	}
	var conns []models.ProfileConnection
	if err := json.Unmarshal([]byte(connJSON), &conns); err != nil {
		return "", "", fmt.Errorf("unmarshal connections: %w", err)
	}
	if index < 0 || index >= len(conns) {
		return "", "", fmt.Errorf("connection %d: %w", index, ErrNotFound)
	}
	pc := conns[index]
	if pc.Password != "" {
		if password, err = s.cipher.Decrypt(pc.Password); err != nil {
			return "", "", fmt.Errorf("open password: %w", err)
		}
	}
	if pc.PrivateKey != "" {
		if privateKey, err = s.cipher.Decrypt(pc.PrivateKey); err != nil {
			return "", "", fmt.Errorf("open private key: %w", err)
		}
	}
	return password, privateKey, nil
}

// ListProfiles returns name and timestamp of every profile.
func (s *Store) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, updated_at FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := []models.Profile{}
	for rows.Next() {
		var p models.Profile
		var updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.UpdatedAt = parseTS(updatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
