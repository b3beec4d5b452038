// internal/apperr/map.go

package apperr

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"strings"
	"syscall"
)

// MapDialError normalizes a failed connection attempt. addr is host:port for
// the message.
func MapDialError(err error, addr string) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) || isTimeout(err):
		return Wrap(CodeConnectionTimeout, err, addr)
	case isAuthFailure(err):
		return Wrap(CodeAuthFailed, err, "user", addr)
	case isHostKeyFailure(err):
		return Wrap(CodeKnownHostMismatch, err, addr)
	default:
		return Wrap(CodeConnectionFailed, err, addr)
	}
}

// MapTransportError normalizes errors from an established session: command
// channels, SFTP calls, keepalives.
func MapTransportError(err error, path string) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return Wrap(CodeCommandTimeout, err, "deadline")
	case errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist):
		return Wrap(CodeNotFoundFile, err, path)
	case errors.Is(err, fs.ErrPermission) || errors.Is(err, os.ErrPermission):
		return Wrap(CodePermissionDenied, err, path)
	case isConnReset(err):
		return Wrap(CodeNetworkError, err, err.Error())
	default:
		return Wrap(CodeTransportError, err, err.Error())
	}
}

// MapLocalFileError normalizes local filesystem failures during transfers.
func MapLocalFileError(err error, path string) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return Wrap(CodeNotFoundFile, err, path)
	case errors.Is(err, fs.ErrPermission):
		return Wrap(CodePermissionDenied, err, path)
	default:
		return Wrap(CodeFileWriteError, err, path)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) ||
		strings.Contains(err.Error(), "i/o timeout")
}

func isConnReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed)
}

// x/crypto/ssh reports auth and host key failures as opaque handshake errors,
// so the classification is textual.
func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") ||
		strings.Contains(msg, "password rejected")
}

func isHostKeyFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "knownhosts:") ||
		strings.Contains(msg, "host key") ||
		strings.Contains(msg, "key is unknown")
}
