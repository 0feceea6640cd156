// Package config loads, normalizes, and validates a2a configuration data.
//
// It supplies built-in defaults, expands user paths (including tilde
// shortcuts), reads an optional TOML file, and applies A2A_* environment
// overrides on top. The daemon and every CLI command read their data
// directory, room defaults, transport knobs, and logging settings from the
// Config type so paths are resolved exactly once.
package config
