package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validatePeerbook(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTransport() error {
	if _, _, err := net.SplitHostPort(c.Transport.ListenAddr); err != nil {
		return fmt.Errorf("transport.listen_addr %q: %w", c.Transport.ListenAddr, err)
	}
	for _, addr := range c.Transport.AdvertiseAddrs {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("transport.advertise_addrs entry %q: %w", addr, err)
		}
	}
	if c.Transport.DialTimeoutSeconds <= 0 {
		return errors.New("transport.dial_timeout_seconds must be positive")
	}
	if c.Transport.OnlineTimeoutSeconds < 0 {
		return errors.New("transport.online_timeout_seconds must be zero (unbounded) or positive")
	}
	return nil
}

func (c *Config) validatePeerbook() error {
	if c.Peerbook.MaxBootstrap < 0 {
		return errors.New("peerbook.max_bootstrap must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}
