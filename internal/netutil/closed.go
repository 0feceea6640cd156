// Package netutil holds connection helpers shared by the IPC server and the
// gossip transport.
package netutil

import (
	"errors"
	"io"
	"io/fs"
	"net"
	"syscall"
)

// IsExpectedCloseError reports whether err is a normal end of a connection:
// EOF, a locally closed connection, a broken pipe, or a reset from the peer.
// Such errors end a connection handler quietly instead of being logged.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}

// IsUnavailable reports whether a dial error means nothing is listening:
// the socket file is missing or the connection was refused.
func IsUnavailable(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
