package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"a2a/internal/testsupport"
)

type cliTestEnv struct {
	dataDir    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	dataDir := testsupport.ShortSocketDir(t)
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q

[transport]
listen_addr = "127.0.0.1:0"
dial_timeout_seconds = 2
online_timeout_seconds = 5

[peerbook]
enabled = false

[logging]
level = "error"
`, dataDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{dataDir: dataDir, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args, configPath, nil)
}

func runCLIContext(t *testing.T, ctx context.Context, args []string, configPath string, stdout *syncBuffer) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	if stdout == nil {
		stdout = &syncBuffer{}
	}
	var stderr bytes.Buffer
	cmd.SetOut(stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
