package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the environment variables that take precedence over the
// config file. Unset variables leave the file value untouched.
type envOverrides struct {
	DataDir     string `env:"A2A_DATA_DIR"`
	DefaultRoom string `env:"A2A_DEFAULT_ROOM"`
	ListenAddr  string `env:"A2A_LISTEN_ADDR"`
	LogLevel    string `env:"A2A_LOG_LEVEL"`
	LogFormat   string `env:"A2A_LOG_FORMAT"`
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	set := func(dst *string, value string) {
		if value = strings.TrimSpace(value); value != "" {
			*dst = value
		}
	}
	set(&c.Paths.DataDir, overrides.DataDir)
	set(&c.Room.Default, overrides.DefaultRoom)
	set(&c.Transport.ListenAddr, overrides.ListenAddr)
	set(&c.Logging.Level, overrides.LogLevel)
	set(&c.Logging.Format, overrides.LogFormat)
	return nil
}
