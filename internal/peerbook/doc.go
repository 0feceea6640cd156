// Package peerbook remembers which peers were seen in each topic so a daemon
// can rejoin a room without a fresh ticket.
//
// The book is a SQLite database opened through modernc.org/sqlite. Its schema
// is embedded and versioned; a database written by an incompatible build is
// rejected rather than migrated, since the contents are only a cache.
package peerbook
