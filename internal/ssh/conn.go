// internal/ssh/conn.go

package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	scp "github.com/bramvdbogaerde/go-scp"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Conn is one established transport. The Manager serializes all calls on a
// single Conn; implementations do not need to be safe for concurrent use.
type Conn interface {
	Exec(ctx context.Context, command string) (output string, exitCode int, err error)
	ReadDir(path string) ([]os.FileInfo, error)
	Stat(path string) (os.FileInfo, error)
	MkdirAll(path string) error
	Download(ctx context.Context, remotePath string, dst io.Writer) (int64, error)
	Upload(ctx context.Context, src io.Reader, size int64, remotePath string) (int64, error)
	Keepalive() error
	Close() error
}

// copyBufSize is the transfer buffer size.
const copyBufSize = 128 * 1024

// sshConn runs commands over an *ssh.Client and file operations over its
// SFTP sub-channel. When the server offers no SFTP subsystem, transfers fall
// back to SCP over fresh exec channels; listing has no such fallback.
type sshConn struct {
	client  *ssh.Client
	sftp    *sftp.Client
	sftpErr error
}

func newSSHConn(client *ssh.Client) *sshConn {
	c := &sshConn{client: client}
	c.sftp, c.sftpErr = sftp.NewClient(client)
	return c
}

// Exec runs one command to completion or context cancellation. A nonzero
// remote exit code is not an error; channel-level failures are.
func (c *sshConn) Exec(ctx context.Context, command string) (string, int, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type execResult struct {
		output []byte
		err    error
	}
	resChan := make(chan execResult, 1)

	go func() {
		output, err := session.CombinedOutput(command)
		resChan <- execResult{output: output, err: err}
	}()

	select {
	case res := <-resChan:
		if res.err != nil {
			var exitErr *ssh.ExitError
			if errors.As(res.err, &exitErr) {
				return string(res.output), exitErr.ExitStatus(), nil
			}
			return "", 0, res.err
		}
		return string(res.output), 0, nil
	case <-ctx.Done():
		// Closing the session tears down the remote channel so the command
		// does not keep running against a caller that already gave up.
		session.Close()
		return "", 0, ctx.Err()
	}
}

func (c *sshConn) ReadDir(p string) ([]os.FileInfo, error) {
	if c.sftp == nil {
		return nil, fmt.Errorf("sftp subsystem unavailable: %w", c.sftpErr)
	}
	return c.sftp.ReadDir(p)
}

func (c *sshConn) Stat(p string) (os.FileInfo, error) {
	if c.sftp == nil {
		return nil, fmt.Errorf("sftp subsystem unavailable: %w", c.sftpErr)
	}
	return c.sftp.Stat(p)
}

func (c *sshConn) MkdirAll(p string) error {
	if c.sftp == nil {
		// Best effort over the exec channel when only SCP is available.
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_, _, err := c.Exec(ctx, "mkdir -p "+shellQuote(p))
		return err
	}
	return c.sftp.MkdirAll(p)
}

func (c *sshConn) Download(ctx context.Context, remotePath string, dst io.Writer) (int64, error) {
	if c.sftp == nil {
		return c.scpDownload(ctx, remotePath, dst)
	}

	srcFile, err := c.sftp.Open(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open remote file: %w", err)
	}
	defer srcFile.Close()

	return copyWithContext(ctx, dst, srcFile)
}

func (c *sshConn) Upload(ctx context.Context, src io.Reader, size int64, remotePath string) (int64, error) {
	if c.sftp == nil {
		return c.scpUpload(ctx, src, size, remotePath)
	}

	dstFile, err := c.sftp.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create remote file: %w", err)
	}
	defer dstFile.Close()

	written, err := copyWithContext(ctx, dstFile, src)
	if err != nil {
		return written, err
	}
	if err := dstFile.Sync(); err != nil {
		return written, fmt.Errorf("failed to sync remote file: %w", err)
	}
	return written, nil
}

func (c *sshConn) scpDownload(ctx context.Context, remotePath string, dst io.Writer) (int64, error) {
	client, err := scp.NewClientBySSH(c.client)
	if err != nil {
		return 0, fmt.Errorf("failed to create scp client: %w", err)
	}
	defer client.Close()

	cw := &countingWriter{w: dst}
	if err := client.CopyFromRemotePassThru(ctx, cw, remotePath, nil); err != nil {
		return cw.n, fmt.Errorf("scp download failed: %w", err)
	}
	return cw.n, nil
}

func (c *sshConn) scpUpload(ctx context.Context, src io.Reader, size int64, remotePath string) (int64, error) {
	client, err := scp.NewClientBySSH(c.client)
	if err != nil {
		return 0, fmt.Errorf("failed to create scp client: %w", err)
	}
	defer client.Close()

	if err := client.Copy(ctx, src, remotePath, "0644", size); err != nil {
		return 0, fmt.Errorf("scp upload failed: %w", err)
	}
	return size, nil
}

func (c *sshConn) Keepalive() error {
	_, _, err := c.client.SendRequest("keepalive@openssh.com", true, nil)
	return err
}

func (c *sshConn) Close() error {
	var errs []error
	if c.sftp != nil {
		if err := c.sftp.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sftp close error: %w", err))
		}
		c.sftp = nil
	}
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("client close error: %w", err))
		}
		c.client = nil
	}
	return errors.Join(errs...)
}

// copyWithContext copies in bounded chunks, checking for cancellation between
// chunks so a dead transfer does not hold the session lane forever.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyBufSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			written, writeErr := dst.Write(buf[:n])
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
			if written != n {
				return total, io.ErrShortWrite
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func shellQuote(p string) string {
	return "'" + strings.ReplaceAll(path.Clean(p), "'", `'\''`) + "'"
}
