package bus

import (
	"context"
	"errors"
)

var (
	// ErrUnrecoverable marks receive errors after which the stream is unusable.
	ErrUnrecoverable = errors.New("bus: unrecoverable")
	// ErrClosed is returned by operations on a closed subscription.
	ErrClosed = errors.New("bus: subscription closed")
)

// Sender broadcasts payloads to every member of the subscribed topic.
// Implementations are safe for concurrent use.
type Sender interface {
	Broadcast(ctx context.Context, payload []byte) error
}

// Receiver yields inbound events. Next returns io.EOF once the stream ended
// normally. An error wrapping ErrUnrecoverable means the bus failed; any
// other error is transient and the caller may keep reading.
type Receiver interface {
	Next(ctx context.Context) (Event, error)
}

// Subscription is membership in one topic.
type Subscription interface {
	Sender
	Receiver
	Close() error
}

// Bus joins topics.
type Bus interface {
	Subscribe(ctx context.Context, topic Topic, bootstrap []PeerID) (Subscription, error)
}
