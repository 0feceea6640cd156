package ipc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	socketPrefix = "daemon-"
	socketSuffix = ".sock"
)

// SocketPath is the rendezvous socket for the daemon running as name.
func SocketPath(dataDir, name string) string {
	return filepath.Join(dataDir, socketPrefix+name+socketSuffix)
}

// NameFromSocket returns the identity name encoded in a socket path.
func NameFromSocket(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, socketPrefix) || !strings.HasSuffix(base, socketSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(base, socketPrefix), socketSuffix)
	return name, name != ""
}

// Sockets lists daemon sockets in dataDir in lexical order.
func Sockets(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan %s: %w", dataDir, err)
	}
	var sockets []string
	for _, entry := range entries {
		if entry.Type()&os.ModeSocket == 0 {
			continue
		}
		if _, ok := NameFromSocket(entry.Name()); ok {
			sockets = append(sockets, filepath.Join(dataDir, entry.Name()))
		}
	}
	sort.Strings(sockets)
	return sockets, nil
}

// Discover returns the first daemon socket in dataDir that accepts a
// connection. Sockets left behind by a killed daemon are skipped.
func Discover(ctx context.Context, dataDir string) (string, error) {
	sockets, err := Sockets(dataDir)
	if err != nil {
		return "", err
	}
	if len(sockets) == 0 {
		return "", fmt.Errorf("%w: no sockets in %s", ErrDaemonNotRunning, dataDir)
	}
	for _, socket := range sockets {
		if Probe(ctx, socket) {
			return socket, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: only stale sockets in %s", ErrDaemonNotRunning, dataDir)
}
