package ipc

import "errors"

var (
	// ErrDaemonNotRunning means no socket exists or nothing accepted the connection.
	ErrDaemonNotRunning = errors.New("daemon not running")
	// ErrConnection scopes a failure to one client connection.
	ErrConnection = errors.New("ipc connection error")
)
