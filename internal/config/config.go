package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains on-disk locations.
type Paths struct {
	DataDir string `toml:"data_dir"`
}

// Room contains room selection defaults.
type Room struct {
	Default string `toml:"default_room"`
}

// Transport contains gossip transport settings.
type Transport struct {
	ListenAddr           string   `toml:"listen_addr"`
	AdvertiseAddrs       []string `toml:"advertise_addrs"`
	DialTimeoutSeconds   int      `toml:"dial_timeout_seconds"`
	OnlineTimeoutSeconds int      `toml:"online_timeout_seconds"` // 0 waits forever
	OutboundQueue        int      `toml:"outbound_queue"`
}

// IPC contains local control socket settings.
type IPC struct {
	MaxLineBytes int `toml:"max_line_bytes"`
}

// Peerbook contains settings for the known-peer cache.
type Peerbook struct {
	Enabled      bool `toml:"enabled"`
	MaxBootstrap int  `toml:"max_bootstrap"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for a2a.
//
// Configuration sections by subsystem:
//   - Paths: data directory holding identities, sockets, peers.db and logs
//   - Room: default room label for `a2a daemon`
//   - Transport: gossip listener, advertised addresses and timeouts
//   - IPC: limits for the local control socket
//   - Peerbook: remembered peers used to rejoin a room without a ticket
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Room      Room      `toml:"room"`
	Transport Transport `toml:"transport"`
	IPC       IPC       `toml:"ipc"`
	Peerbook  Peerbook  `toml:"peerbook"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A missing file is
// not an error; defaults and environment overrides still apply. The returned
// config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.IdentitiesDir(), c.LogDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// IdentitiesDir returns the directory holding identity records.
func (c *Config) IdentitiesDir() string {
	return filepath.Join(c.Paths.DataDir, "identities")
}

// LogDir returns the directory holding per-run daemon logs.
func (c *Config) LogDir() string {
	return filepath.Join(c.Paths.DataDir, "logs")
}

// PeerbookPath returns the SQLite file backing the peer book.
func (c *Config) PeerbookPath() string {
	return filepath.Join(c.Paths.DataDir, "peers.db")
}

// DialTimeout returns the transport dial timeout.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Transport.DialTimeoutSeconds) * time.Second
}

// OnlineTimeout returns the bound on the initial reachability wait. Zero means
// no bound.
func (c *Config) OnlineTimeout() time.Duration {
	return time.Duration(c.Transport.OnlineTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
// An existing file is never overwritten.
func CreateSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
