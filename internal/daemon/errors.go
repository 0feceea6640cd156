package daemon

import "errors"

var (
	// ErrTransportInit means the transport never became reachable.
	ErrTransportInit = errors.New("transport initialization failed")
	// ErrSubscription means joining the room's topic failed.
	ErrSubscription = errors.New("subscription failed")
	// ErrAlreadyRunning means another daemon holds this identity's lock.
	ErrAlreadyRunning = errors.New("daemon already running for identity")
)
