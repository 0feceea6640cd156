package config

const (
	defaultConfigPath           = "~/.config/a2a/config.toml"
	defaultDataDir              = "~/.local/share/a2a"
	defaultRoom                 = "claude-a2a-global"
	defaultListenAddr           = "0.0.0.0:0"
	defaultDialTimeoutSeconds   = 5
	defaultOnlineTimeoutSeconds = 30
	defaultOutboundQueue        = 256
	defaultMaxLineBytes         = 64 * 1024
	defaultPeerbookEnabled      = true
	defaultMaxBootstrap         = 8
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 14
)

// Default returns a Config populated with built-in defaults. Paths are left
// unexpanded; Load normalizes them.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Room: Room{
			Default: defaultRoom,
		},
		Transport: Transport{
			ListenAddr:           defaultListenAddr,
			DialTimeoutSeconds:   defaultDialTimeoutSeconds,
			OnlineTimeoutSeconds: defaultOnlineTimeoutSeconds,
			OutboundQueue:        defaultOutboundQueue,
		},
		IPC: IPC{
			MaxLineBytes: defaultMaxLineBytes,
		},
		Peerbook: Peerbook{
			Enabled:      defaultPeerbookEnabled,
			MaxBootstrap: defaultMaxBootstrap,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
