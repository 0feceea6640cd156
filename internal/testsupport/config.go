package testsupport

import (
	"testing"

	"a2a/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a short, per-test data directory so
// unix socket paths stay under the platform limit. Transport listens on
// loopback with an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := ShortSocketDir(t)
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Transport.ListenAddr = "127.0.0.1:0"
	cfgVal.Transport.DialTimeoutSeconds = 2
	cfgVal.Transport.OnlineTimeoutSeconds = 5
	cfgVal.Logging.RetentionDays = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRoom sets the default room label.
func WithRoom(room string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Room.Default = room
	}
}

// WithoutPeerbook disables the known-peer cache.
func WithoutPeerbook() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Peerbook.Enabled = false
	}
}

// WithOnlineTimeout overrides how long a daemon waits to join its room.
func WithOnlineTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transport.OnlineTimeoutSeconds = seconds
	}
}
