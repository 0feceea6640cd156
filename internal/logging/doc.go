// Package logging assembles structured slog loggers and formatting helpers used
// across a2a.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so daemon code can tag log lines
// with the identity name and IPC connection id. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
//
// Log output goes to stderr (and optionally a per-run file) so the chat
// transcript printed on stdout stays clean.
package logging
