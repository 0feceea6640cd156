package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"a2a/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"A2A_DATA_DIR", "A2A_DEFAULT_ROOM", "A2A_LISTEN_ADDR", "A2A_LOG_LEVEL", "A2A_LOG_FORMAT"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "a2a", "config.toml"); resolved != want {
		t.Fatalf("resolved = %q, want %q", resolved, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "a2a"); cfg.Paths.DataDir != want {
		t.Fatalf("data dir = %q, want %q", cfg.Paths.DataDir, want)
	}
	if cfg.Room.Default != "claude-a2a-global" {
		t.Fatalf("default room = %q", cfg.Room.Default)
	}
	if cfg.OnlineTimeout() != 30*time.Second {
		t.Fatalf("online timeout = %s", cfg.OnlineTimeout())
	}
	if cfg.IPC.MaxLineBytes != 65536 {
		t.Fatalf("max line bytes = %d", cfg.IPC.MaxLineBytes)
	}
	if !cfg.Peerbook.Enabled {
		t.Fatal("expected peerbook enabled by default")
	}
	if cfg.IdentitiesDir() != filepath.Join(cfg.Paths.DataDir, "identities") {
		t.Fatalf("identities dir = %q", cfg.IdentitiesDir())
	}
}

func TestLoadReadsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Room.Default = "ops"
	cfg.Transport.OnlineTimeoutSeconds = 0
	cfg.Transport.AdvertiseAddrs = []string{" 10.0.0.5:7000 ", ""}
	cfg.Logging.Format = "JSON"
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("exists=%v resolved=%q", exists, resolved)
	}
	if loaded.Room.Default != "ops" {
		t.Fatalf("room = %q", loaded.Room.Default)
	}
	if loaded.OnlineTimeout() != 0 {
		t.Fatalf("expected unbounded online timeout, got %s", loaded.OnlineTimeout())
	}
	if len(loaded.Transport.AdvertiseAddrs) != 1 || loaded.Transport.AdvertiseAddrs[0] != "10.0.0.5:7000" {
		t.Fatalf("advertise addrs = %v", loaded.Transport.AdvertiseAddrs)
	}
	if loaded.Logging.Format != "json" {
		t.Fatalf("format = %q", loaded.Logging.Format)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[room]\ndefault_room = \"from-file\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("A2A_DEFAULT_ROOM", "from-env")
	t.Setenv("A2A_DATA_DIR", filepath.Join(dir, "env-data"))
	t.Setenv("A2A_LOG_LEVEL", "DEBUG")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Room.Default != "from-env" {
		t.Fatalf("room = %q", cfg.Room.Default)
	}
	if cfg.Paths.DataDir != filepath.Join(dir, "env-data") {
		t.Fatalf("data dir = %q", cfg.Paths.DataDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"listen addr":    func(c *config.Config) { c.Transport.ListenAddr = "nope" },
		"online timeout": func(c *config.Config) { c.Transport.OnlineTimeoutSeconds = -1 },
		"dial timeout":   func(c *config.Config) { c.Transport.DialTimeoutSeconds = 0 },
		"log format":     func(c *config.Config) { c.Logging.Format = "xml" },
		"log level":      func(c *config.Config) { c.Logging.Level = "trace" },
		"bootstrap":      func(c *config.Config) { c.Peerbook.MaxBootstrap = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[room\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Room.Default != "claude-a2a-global" || cfg.Transport.OutboundQueue != 256 {
		t.Fatalf("unexpected sample values: %+v", cfg)
	}
}
