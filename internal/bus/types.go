package bus

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// topicNamespace prefixes room labels before hashing. Every daemon must use
// the same prefix to meet in the same room.
const topicNamespace = "real-a2a:"

// Topic names a broadcast room.
type Topic [32]byte

// TopicFromRoom derives the topic for a human-chosen room label.
func TopicFromRoom(label string) Topic {
	return Topic(blake3.Sum256([]byte(topicNamespace + label)))
}

func (t Topic) String() string { return hex.EncodeToString(t[:]) }

// PeerID is a peer's ed25519 public key.
type PeerID [32]byte

func (p PeerID) String() string { return hex.EncodeToString(p[:]) }

// Short returns an abbreviated form for terminal output.
func (p PeerID) Short() string { return p.String()[:10] }

// ParsePeerID parses the hex form produced by PeerID.String.
func ParsePeerID(s string) (PeerID, error) {
	var id PeerID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse peer id: %w", err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("parse peer id: want %d bytes, got %d", len(id), len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// PeerAddr is how to reach a peer. Addrs are transport-specific hints
// ("host:port" for the TCP transport).
type PeerAddr struct {
	ID    PeerID
	Addrs []string
}
