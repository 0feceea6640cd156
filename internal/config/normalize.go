package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRoom()
	c.normalizeTransport()
	c.normalizeIPC()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRoom() {
	c.Room.Default = strings.TrimSpace(c.Room.Default)
	if c.Room.Default == "" {
		c.Room.Default = defaultRoom
	}
}

func (c *Config) normalizeTransport() {
	c.Transport.ListenAddr = strings.TrimSpace(c.Transport.ListenAddr)
	if c.Transport.ListenAddr == "" {
		c.Transport.ListenAddr = defaultListenAddr
	}
	addrs := c.Transport.AdvertiseAddrs[:0]
	for _, addr := range c.Transport.AdvertiseAddrs {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	c.Transport.AdvertiseAddrs = addrs
	if c.Transport.OutboundQueue <= 0 {
		c.Transport.OutboundQueue = defaultOutboundQueue
	}
}

func (c *Config) normalizeIPC() {
	if c.IPC.MaxLineBytes <= 0 {
		c.IPC.MaxLineBytes = defaultMaxLineBytes
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
