// internal/config/config.go

package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DefaultConfigDir   = ".config/quantumxfer"
	DefaultDBFileName  = "quantumxfer.db"
	DefaultSecretFile  = "secret"
	KnownHostsFileName = "known_hosts"
	DefaultFilePerms   = 0o600
)

const (
	defaultDialTimeout     = 10 * time.Second
	defaultExecTimeout     = 30 * time.Second
	defaultKeepalive       = 30 * time.Second
	defaultIdleThreshold   = 15 * time.Minute
	defaultSweepInterval   = time.Minute
	defaultMaxUploadBytes  = int64(2) << 30 // 2 GiB
	defaultMaxSessions     = 32
	defaultMaxEnvelopeSize = int64(1) << 20
)

// Settings is the daemon configuration, loaded from the environment with the
// QUANTUMXFER prefix. Flag overrides are applied by the entrypoint.
type Settings struct {
	ListenAddr     string        `envconfig:"LISTEN_ADDR" default:"127.0.0.1:9022"`
	DBPath         string        `envconfig:"DB_PATH" default:""`
	KnownHostsPath string        `envconfig:"KNOWN_HOSTS_PATH" default:""`
	SecretPath     string        `envconfig:"SECRET_PATH" default:""`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	DialTimeout    time.Duration `envconfig:"DIAL_TIMEOUT" default:"10s"`
	ExecTimeout    time.Duration `envconfig:"EXEC_TIMEOUT" default:"30s"`
	Keepalive      time.Duration `envconfig:"KEEPALIVE" default:"30s"`
	IdleThreshold  time.Duration `envconfig:"IDLE_THRESHOLD" default:"15m"`
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	MaxUploadBytes int64         `envconfig:"MAX_UPLOAD_BYTES" default:"2147483648"`
	MaxSessions    int           `envconfig:"MAX_SESSIONS" default:"32"`
	MaxEnvelope    int64         `envconfig:"MAX_ENVELOPE_BYTES" default:"1048576"`
	CommandDeny    []string      `envconfig:"COMMAND_DENY"`
}

// Load reads settings from the environment and fills path defaults under the
// user config directory.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process("QUANTUMXFER", &s); err != nil {
		return s, fmt.Errorf("failed to load settings: %w", err)
	}

	dir, err := EnsureConfigDir()
	if err != nil {
		return s, err
	}
	if s.DBPath == "" {
		s.DBPath = filepath.Join(dir, DefaultDBFileName)
	}
	if s.KnownHostsPath == "" {
		s.KnownHostsPath = filepath.Join(dir, "ssh", KnownHostsFileName)
	}
	if s.SecretPath == "" {
		s.SecretPath = filepath.Join(dir, DefaultSecretFile)
	}

	return s, s.Validate()
}

// Validate rejects settings no component can run with.
func (s Settings) Validate() error {
	if s.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if s.DialTimeout <= 0 || s.ExecTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if s.IdleThreshold <= 0 || s.SweepInterval <= 0 {
		return errors.New("idle threshold and sweep interval must be positive")
	}
	if s.MaxUploadBytes <= 0 || s.MaxUploadBytes > defaultMaxUploadBytes {
		return fmt.Errorf("max upload bytes must be in (0, %d]", defaultMaxUploadBytes)
	}
	if s.MaxSessions <= 0 {
		return errors.New("max sessions must be positive")
	}
	return nil
}

// EnsureConfigDir creates and returns the daemon config directory.
func EnsureConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get home directory: %w", err)
	}
	dir := filepath.Join(homeDir, DefaultConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}
	return dir, nil
}

// EnsureSecret loads the credential-cipher secret, generating and persisting
// one on first run.
func EnsureSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := hex.EncodeToString(raw)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create secret directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret), DefaultFilePerms); err != nil {
		return "", fmt.Errorf("failed to write secret file: %w", err)
	}
	return secret, nil
}
