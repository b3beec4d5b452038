// internal/ssh/dialer.go

package ssh

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"quantumxfer/internal/models"
)

// Dialer opens transport connections. The Manager holds one; tests inject a
// fake so no network is involved.
type Dialer interface {
	Dial(ctx context.Context, cfg models.ConnectConfig) (Conn, error)
}

// NetDialer dials real SSH servers, verifying host keys against an app-owned
// known_hosts file.
type NetDialer struct {
	KnownHostsPath string
	Timeout        time.Duration
}

func (d *NetDialer) Dial(ctx context.Context, cfg models.ConnectConfig) (Conn, error) {
	auth, err := authMethod(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	if cfg.TrustHostKey {
		if err := d.fetchAndSaveHostKey(addr, cfg.Username); err != nil {
			return nil, fmt.Errorf("failed to fetch and save host key: %w", err)
		}
	}

	hostKeyCallback, err := d.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.Timeout,
	}

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	resChan := make(chan dialResult, 1)

	go func() {
		client, err := ssh.Dial("tcp", addr, clientCfg)
		resChan <- dialResult{client: client, err: err}
	}()

	select {
	case res := <-resChan:
		if res.err != nil {
			return nil, res.err
		}
		return newSSHConn(res.client), nil
	case <-ctx.Done():
		// The dial goroutine will close any late connection itself.
		go func() {
			if res := <-resChan; res.client != nil {
				res.client.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func authMethod(cfg models.ConnectConfig) (ssh.AuthMethod, error) {
	if cfg.Method() == models.AuthKey {
		signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}
		return ssh.PublicKeys(signer), nil
	}
	return ssh.Password(cfg.Password), nil
}

func (d *NetDialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if err := d.ensureKnownHostsFile(); err != nil {
		return nil, err
	}
	callback, err := knownhosts.New(d.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create hostKeyCallback: %w", err)
	}
	return callback, nil
}

func (d *NetDialer) ensureKnownHostsFile() error {
	if _, err := os.Stat(d.KnownHostsPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.KnownHostsPath), 0o700); err != nil {
		return fmt.Errorf("failed to create known_hosts directory: %w", err)
	}
	if err := os.WriteFile(d.KnownHostsPath, nil, 0o600); err != nil {
		return fmt.Errorf("failed to create known_hosts file: %w", err)
	}
	return nil
}

// fetchAndSaveHostKey connects once with no auth methods just to capture the
// server's host key, then pins it, replacing any previous entry for the same
// address.
func (d *NetDialer) fetchAndSaveHostKey(addr, user string) error {
	if err := d.ensureKnownHostsFile(); err != nil {
		return err
	}

	hostKeyChan := make(chan ssh.PublicKey, 1)
	probeCfg := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{},
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			select {
			case hostKeyChan <- key:
			default:
			}
			return nil
		},
		Timeout: d.Timeout,
	}

	// Auth is expected to fail; the key is captured during the handshake.
	if client, err := ssh.Dial("tcp", addr, probeCfg); err == nil {
		client.Close()
	}

	var hostKey ssh.PublicKey
	select {
	case hostKey = <-hostKeyChan:
	default:
		return fmt.Errorf("could not retrieve host key from %s", addr)
	}

	normalized := knownhosts.Normalize(addr)
	newLine := knownhosts.Line([]string{addr}, hostKey)

	var kept []string
	if content, err := os.ReadFile(d.KnownHostsPath); err == nil {
		scanner := bufio.NewScanner(strings.NewReader(string(content)))
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if !strings.HasPrefix(line, normalized+" ") {
				kept = append(kept, line)
			}
		}
	}
	kept = append(kept, newLine)

	content := strings.Join(kept, "\n") + "\n"
	if err := os.WriteFile(d.KnownHostsPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write known_hosts file: %w", err)
	}
	return nil
}
