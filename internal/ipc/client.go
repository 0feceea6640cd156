package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"a2a/internal/netutil"
)

const (
	dialTimeout  = 2 * time.Second
	writeTimeout = 5 * time.Second
)

// Send writes message and a line terminator to the daemon socket at path and
// returns once the bytes are flushed. It does not wait for the broadcast.
// Embedded newlines split the message into several requests.
func Send(ctx context.Context, path, message string) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		if netutil.IsUnavailable(err) {
			return fmt.Errorf("%w: %s", ErrDaemonNotRunning, path)
		}
		return fmt.Errorf("%w: dial %s: %v", ErrConnection, path, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(message); err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnection, err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnection, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrConnection, err)
	}
	return nil
}

// Probe reports whether something accepts connections at path.
func Probe(ctx context.Context, path string) bool {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
