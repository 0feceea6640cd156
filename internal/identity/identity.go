package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"time"

	"a2a/internal/bus"
)

// Identity is a named keypair.
type Identity struct {
	Name      string
	Key       ed25519.PrivateKey
	CreatedAt time.Time
}

// PublicKey returns the ed25519 public half of the keypair.
func (i Identity) PublicKey() ed25519.PublicKey {
	return i.Key.Public().(ed25519.PublicKey)
}

// PublicID is the stable textual form of the public key carried in chat
// messages as from_id.
func (i Identity) PublicID() string {
	return hex.EncodeToString(i.PublicKey())
}

// PeerID returns the public key as a bus peer id.
func (i Identity) PeerID() bus.PeerID {
	var id bus.PeerID
	copy(id[:], i.PublicKey())
	return id
}
