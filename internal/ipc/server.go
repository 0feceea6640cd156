package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"a2a/internal/logging"
	"a2a/internal/netutil"
)

// DefaultMaxLineBytes bounds a single request line.
const DefaultMaxLineBytes = 64 * 1024

// Handler receives each trimmed, non-empty line. Calls for one connection are
// sequential; calls for different connections run concurrently.
type Handler interface {
	HandleLine(ctx context.Context, line string) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, line string) error

// HandleLine calls f.
func (f HandlerFunc) HandleLine(ctx context.Context, line string) error {
	return f(ctx, line)
}

// Options tunes a Server.
type Options struct {
	MaxLineBytes int
	Logger       *slog.Logger
}

// Server accepts line-delimited requests on a unix socket.
type Server struct {
	path     string
	handler  Handler
	logger   *slog.Logger
	listener net.Listener
	maxLine  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	conns     map[net.Conn]struct{}
	nextID    atomic.Uint64
	closeOnce sync.Once
}

// NewServer binds the socket at path, replacing any stale socket left by a
// previous run.
func NewServer(ctx context.Context, path string, handler Handler, opts Options) (*Server, error) {
	if handler == nil {
		return nil, errors.New("ipc server requires a handler")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	maxLine := opts.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:     path,
		handler:  handler,
		logger:   logging.NewComponentLogger(logger, "ipc"),
		listener: listener,
		maxLine:  maxLine,
		ctx:      serverCtx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Serve starts accepting connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "a local client could not connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			if !s.track(conn) {
				_ = conn.Close()
				return
			}
			id := s.nextID.Add(1)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.untrack(conn)
				s.serveConn(conn, id)
			}()
		}
	}()
}

func (s *Server) serveConn(conn net.Conn, id uint64) {
	ctx := logging.WithConnID(s.ctx, id)
	logger := logging.WithContext(ctx, s.logger)
	if pid, uid, ok := peerCredentials(conn); ok {
		logger.Debug("client connected", logging.Int64("pid", int64(pid)), logging.Int64("uid", int64(uid)))
	} else {
		logger.Debug("client connected")
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(4096, s.maxLine)), s.maxLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := s.handler.HandleLine(ctx, line); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			logger.Warn("send request failed",
				logging.Error(fmt.Errorf("%w: %w", ErrConnection, err)),
				logging.String(logging.FieldEventType, "ipc_request_failed"),
				logging.String(logging.FieldImpact, "this line was not broadcast; other clients are unaffected"),
				logging.String(logging.FieldErrorHint, "retry the send once the room is reachable"))
		}
	}
	err := scanner.Err()
	switch {
	case err == nil, s.ctx.Err() != nil, netutil.IsExpectedCloseError(err):
		logger.Debug("client disconnected")
	case errors.Is(err, bufio.ErrTooLong):
		logging.WarnWithContext(logger, "request line too long; closing connection", "ipc_line_too_long",
			logging.Error(fmt.Errorf("%w: %w", ErrConnection, err)),
			logging.Int("max_line_bytes", s.maxLine),
			logging.String(logging.FieldImpact, "remaining input on this connection was discarded"),
			logging.String(logging.FieldErrorHint, "raise ipc.max_line_bytes or send shorter messages"))
	default:
		logging.WarnWithContext(logger, "read failed", "ipc_read_failed",
			logging.Error(fmt.Errorf("%w: %w", ErrConnection, err)),
			logging.String(logging.FieldImpact, "this connection was closed"))
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	if s.conns != nil {
		delete(s.conns, conn)
	}
	s.mu.Unlock()
	_ = conn.Close()
}

// Close stops accepting, closes live connections, waits for their handlers,
// and removes the socket file. It is safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.listener.Close()

		s.mu.Lock()
		conns := s.conns
		s.conns = nil
		s.mu.Unlock()
		for conn := range conns {
			_ = conn.Close()
		}

		s.wg.Wait()
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
				logging.String("socket", s.path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "clients may see a stale socket until the next daemon start"),
				logging.String(logging.FieldErrorHint, "remove the socket file manually"))
		}
	})
}
