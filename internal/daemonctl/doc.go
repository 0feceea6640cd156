// Package daemonctl resolves a running daemon from the data directory and
// talks to it on behalf of short-lived CLI commands.
package daemonctl
