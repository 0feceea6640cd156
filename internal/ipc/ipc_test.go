package ipc_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"a2a/internal/ipc"
	"a2a/internal/logging"
	"a2a/internal/testsupport"
)

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) HandleLine(_ context.Context, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func startServer(t *testing.T, handler ipc.Handler, opts ipc.Options) (*ipc.Server, string) {
	t.Helper()

	dir := testsupport.ShortSocketDir(t)
	socket := ipc.SocketPath(dir, "test")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	srv, err := ipc.NewServer(ctx, socket, handler, opts)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)
	return srv, socket
}

func TestSendDeliversLine(t *testing.T) {
	rec := &recorder{}
	_, socket := startServer(t, rec, ipc.Options{})

	if err := ipc.Send(context.Background(), socket, "  hello world  "); err != nil {
		t.Fatalf("Send: %v", err)
	}
	testsupport.WaitFor(t, 2*time.Second, "line delivery", func() bool {
		return len(rec.snapshot()) == 1
	})
	if got := rec.snapshot()[0]; got != "hello world" {
		t.Fatalf("expected trimmed line, got %q", got)
	}
}

func TestServerPreservesPerConnectionOrder(t *testing.T) {
	rec := &recorder{}
	_, socket := startServer(t, rec, ipc.Options{})

	const clients = 4
	const perClient = 25

	var wg sync.WaitGroup
	for c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("unix", socket)
			if err != nil {
				t.Errorf("dial: %v", err)
				return
			}
			defer conn.Close()
			for i := range perClient {
				if _, err := fmt.Fprintf(conn, "c%d-%03d\n", c, i); err != nil {
					t.Errorf("write: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	testsupport.WaitFor(t, 3*time.Second, "all lines", func() bool {
		return len(rec.snapshot()) == clients*perClient
	})

	last := make(map[string]string)
	for _, line := range rec.snapshot() {
		prefix := line[:strings.Index(line, "-")]
		if prev, ok := last[prefix]; ok && prev >= line {
			t.Fatalf("lines out of order for %s: %q after %q", prefix, line, prev)
		}
		last[prefix] = line
	}
	if len(last) != clients {
		t.Fatalf("expected %d clients, saw %d", clients, len(last))
	}
}

func TestServerSkipsBlankLinesAndAcceptsUnterminatedTail(t *testing.T) {
	rec := &recorder{}
	_, socket := startServer(t, rec, ipc.Options{})

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte("first\n\n   \nsecond")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.Close()

	testsupport.WaitFor(t, 2*time.Second, "two lines", func() bool {
		return len(rec.snapshot()) == 2
	})
	got := rec.snapshot()
	if got[0] != "first" || got[1] != "second" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestServerDropsConnectionOnOversizedLine(t *testing.T) {
	rec := &recorder{}
	_, socket := startServer(t, rec, ipc.Options{MaxLineBytes: 64})

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_, _ = conn.Write([]byte(strings.Repeat("x", 256) + "\n"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected server to close the connection")
	}

	if err := ipc.Send(context.Background(), socket, "short"); err != nil {
		t.Fatalf("Send after rejection: %v", err)
	}
	testsupport.WaitFor(t, 2*time.Second, "short line", func() bool {
		return len(rec.snapshot()) == 1
	})
}

func TestHandlerErrorKeepsConnectionOpen(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	handler := ipc.HandlerFunc(func(_ context.Context, line string) error {
		mu.Lock()
		seen = append(seen, line)
		mu.Unlock()
		if line == "bad" {
			return errors.New("broadcast failed")
		}
		return nil
	})
	_, socket := startServer(t, handler, ipc.Options{})

	if err := ipc.Send(context.Background(), socket, "bad\ngood"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	testsupport.WaitFor(t, 2*time.Second, "both lines", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	})
}

func TestSendWithoutDaemon(t *testing.T) {
	dir := testsupport.ShortSocketDir(t)
	socket := ipc.SocketPath(dir, "missing")

	start := time.Now()
	err := ipc.Send(context.Background(), socket, "hello")
	if !errors.Is(err, ipc.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("Send without daemon took %s", time.Since(start))
	}
	if ipc.Probe(context.Background(), socket) {
		t.Fatal("expected probe to fail")
	}
}

func TestSendToStaleSocketFile(t *testing.T) {
	dir := testsupport.ShortSocketDir(t)
	socket := ipc.SocketPath(dir, "stale")
	listener, err := net.Listen("unix", socket)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	// Leave the file behind without a listener.
	if ul, ok := listener.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(false)
	}
	_ = listener.Close()

	if err := ipc.Send(context.Background(), socket, "hello"); !errors.Is(err, ipc.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestCloseRemovesSocket(t *testing.T) {
	rec := &recorder{}
	srv, socket := startServer(t, rec, ipc.Options{})

	if _, err := os.Stat(socket); err != nil {
		t.Fatalf("socket missing while serving: %v", err)
	}
	srv.Close()
	srv.Close()
	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Fatalf("expected socket removed, got %v", err)
	}
}

func TestNewServerReplacesStaleSocket(t *testing.T) {
	dir := testsupport.ShortSocketDir(t)
	socket := ipc.SocketPath(dir, "reuse")
	if err := os.WriteFile(socket, []byte("stale"), 0o600); err != nil {
		t.Fatalf("write stale: %v", err)
	}
	srv, err := ipc.NewServer(context.Background(), socket, &recorder{}, ipc.Options{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Serve()
	defer srv.Close()

	info, err := os.Stat(socket)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		t.Fatalf("expected socket, got mode %v", info.Mode())
	}
}

func TestDiscoverAndSockets(t *testing.T) {
	dir := testsupport.ShortSocketDir(t)
	if _, err := ipc.Discover(context.Background(), dir); !errors.Is(err, ipc.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning on empty dir, got %v", err)
	}

	for _, name := range []string{"zeta", "alpha"} {
		srv, err := ipc.NewServer(context.Background(), ipc.SocketPath(dir, name), &recorder{}, ipc.Options{})
		if err != nil {
			t.Fatalf("NewServer %s: %v", name, err)
		}
		t.Cleanup(srv.Close)
	}
	if err := os.WriteFile(filepath.Join(dir, "daemon-notasocket.sock"), nil, 0o600); err != nil {
		t.Fatalf("write decoy: %v", err)
	}

	sockets, err := ipc.Sockets(dir)
	if err != nil {
		t.Fatalf("Sockets: %v", err)
	}
	if len(sockets) != 2 {
		t.Fatalf("expected 2 sockets, got %v", sockets)
	}
	first, err := ipc.Discover(context.Background(), dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if name, _ := ipc.NameFromSocket(first); name != "alpha" {
		t.Fatalf("expected alpha first, got %q", name)
	}
}

func TestDiscoverSkipsStaleSocket(t *testing.T) {
	dir := testsupport.ShortSocketDir(t)

	stale, err := net.Listen("unix", ipc.SocketPath(dir, "aardvark"))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	stale.(*net.UnixListener).SetUnlinkOnClose(false)
	_ = stale.Close()

	if _, err := ipc.Discover(context.Background(), dir); !errors.Is(err, ipc.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning with only a stale socket, got %v", err)
	}

	srv, err := ipc.NewServer(context.Background(), ipc.SocketPath(dir, "bison"), &recorder{}, ipc.Options{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(srv.Close)

	live, err := ipc.Discover(context.Background(), dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if name, _ := ipc.NameFromSocket(live); name != "bison" {
		t.Fatalf("expected the live daemon, got %q", name)
	}
}

func TestNameFromSocket(t *testing.T) {
	cases := map[string]string{
		"/x/daemon-brave-otter.sock": "brave-otter",
		"/x/daemon-.sock":            "",
		"/x/other.sock":              "",
	}
	for path, want := range cases {
		got, ok := ipc.NameFromSocket(path)
		if got != want || ok != (want != "") {
			t.Fatalf("NameFromSocket(%q) = %q, %v", path, got, ok)
		}
	}
}
