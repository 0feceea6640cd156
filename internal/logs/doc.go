// Package logs reads daemon log files for `a2a logs`.
//
// Tail returns the last N complete lines of a file together with the offset
// just past them. Follow polls from that offset and hands each new complete
// line to a callback until the context ends. A file that shrinks below the
// follow offset, as happens when daemon.log is repointed at a newer run, is
// read again from the start.
package logs
