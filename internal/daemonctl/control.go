package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"a2a/internal/identity"
	"a2a/internal/ipc"
)

// sendTimeout caps a whole send, dial through flush.
const sendTimeout = 5 * time.Second

// LockPath is the single-instance lock for the daemon running as name. The
// name is normalized the way the daemon normalizes it; an invalid name is
// used as given.
func LockPath(dataDir, name string) string {
	if normalized, err := identity.NormalizeName(name); err == nil {
		name = normalized
	}
	return filepath.Join(dataDir, "daemon-"+name+".lock")
}

// Send hands message to a running daemon. With an empty name the first
// daemon socket found in dataDir is used.
func Send(ctx context.Context, dataDir, name, message string) error {
	socket, name, err := resolveSocket(ctx, dataDir, name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := ipc.Send(ctx, socket, message); err != nil {
		return withRemediation(err, name)
	}
	return nil
}

// resolveSocket returns the socket to dial and the normalized identity name.
// Names are folded like the daemon folds them, so "Calm-Heron" reaches the
// daemon started as "calm-heron".
func resolveSocket(ctx context.Context, dataDir, name string) (string, string, error) {
	if strings.TrimSpace(name) != "" {
		normalized, err := identity.NormalizeName(name)
		if err != nil {
			return "", "", err
		}
		return ipc.SocketPath(dataDir, normalized), normalized, nil
	}
	socket, err := ipc.Discover(ctx, dataDir)
	if err != nil {
		return "", "", withRemediation(err, "")
	}
	return socket, "", nil
}

func withRemediation(err error, name string) error {
	if !errors.Is(err, ipc.ErrDaemonNotRunning) {
		return err
	}
	if name != "" {
		return fmt.Errorf("no daemon running as %q; start one with `a2a daemon --identity %s`: %w", name, name, err)
	}
	return fmt.Errorf("no daemon running; start one with `a2a daemon`: %w", err)
}

// IsRunning reports whether a daemon holds the lock for name or is accepting
// connections on its socket. An invalid name is never running.
func IsRunning(ctx context.Context, dataDir, name string) bool {
	name, err := identity.NormalizeName(name)
	if err != nil {
		return false
	}
	lockPath := LockPath(dataDir, name)
	if _, err := os.Stat(lockPath); err == nil {
		lock := flock.New(lockPath)
		locked, err := lock.TryLock()
		if err == nil && !locked {
			return true
		}
		if locked {
			_ = lock.Unlock()
		}
	}
	return ipc.Probe(ctx, ipc.SocketPath(dataDir, name))
}
