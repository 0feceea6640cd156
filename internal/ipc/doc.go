// Package ipc implements the daemon's local control plane: a unix socket per
// identity that accepts newline-delimited plaintext, one send request per
// line.
//
// The server runs one goroutine per connection, so lines from a single
// connection reach the handler in the order they were written while separate
// connections proceed independently. The client side is fire-and-forget: it
// writes a line and returns without waiting for the broadcast.
package ipc
