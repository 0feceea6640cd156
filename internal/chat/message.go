// Package chat defines the payload daemons broadcast to a room.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformed wraps payloads that are not a chat message.
var ErrMalformed = errors.New("malformed inbound message")

// Message is one line sent into a room. The JSON field names are the wire
// format shared with every other daemon.
type Message struct {
	FromName  string `json:"from_name"`
	FromID    string `json:"from_id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// New stamps content with the sender and now, in unix seconds.
func New(fromName, fromID, content string, now time.Time) Message {
	return Message{
		FromName:  fromName,
		FromID:    fromID,
		Content:   content,
		Timestamp: now.Unix(),
	}
}

// Time returns the message timestamp.
func (m Message) Time() time.Time {
	return time.Unix(m.Timestamp, 0)
}

// Encode returns the wire payload for m.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode chat message: %w", err)
	}
	return data, nil
}

// Decode parses a wire payload. Unknown fields are ignored; a payload without
// a sender id is rejected.
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.FromID == "" {
		return Message{}, fmt.Errorf("%w: missing from_id", ErrMalformed)
	}
	return m, nil
}

// Origin says who sent a message relative to the receiving daemon.
type Origin int

const (
	// Peer messages came from another identity.
	Peer Origin = iota
	// Self messages are echoes of this daemon's own broadcasts.
	Self
)

func (o Origin) String() string {
	if o == Self {
		return "self"
	}
	return "peer"
}

// Classify reports whether m was sent by the identity whose public id is selfID.
func Classify(m Message, selfID string) Origin {
	if m.FromID == selfID {
		return Self
	}
	return Peer
}
