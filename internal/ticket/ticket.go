// Package ticket encodes room invitations. A ticket carries a topic and the
// addresses of peers already in the room, serialized as a CBOR record and
// rendered as lowercase, unpadded base32 so it can be pasted anywhere.
package ticket

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"a2a/internal/bus"
	"a2a/internal/codec"
)

// Version is the record schema written by Encode.
const Version = 1

var (
	// ErrInvalidEncoding means the text is not valid base32.
	ErrInvalidEncoding = errors.New("invalid ticket encoding")
	// ErrInvalidFormat means the decoded bytes are not a ticket record.
	ErrInvalidFormat = errors.New("invalid ticket format")
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Ticket is an invitation into a room. Peers may be empty.
type Ticket struct {
	Topic bus.Topic
	Peers []bus.PeerAddr
}

type wireTicket struct {
	_       struct{} `cbor:",toarray"`
	Version uint
	Topic   []byte
	Peers   []wirePeer
}

type wirePeer struct {
	_     struct{} `cbor:",toarray"`
	ID    []byte
	Addrs []string
}

// Encode renders a ticket for topic and peers. The same input always yields
// the same token.
func Encode(topic bus.Topic, peers []bus.PeerAddr) (string, error) {
	wire := wireTicket{
		Version: Version,
		Topic:   topic[:],
		Peers:   make([]wirePeer, 0, len(peers)),
	}
	for _, p := range peers {
		addrs := p.Addrs
		if addrs == nil {
			addrs = []string{}
		}
		wire.Peers = append(wire.Peers, wirePeer{ID: p.ID[:], Addrs: addrs})
	}
	data, err := codec.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("encode ticket: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(data)), nil
}

// String renders t with Encode, returning "" if encoding fails.
func (t Ticket) String() string {
	s, err := Encode(t.Topic, t.Peers)
	if err != nil {
		return ""
	}
	return s
}

// Decode parses a token produced by Encode. Input case is ignored. Empty
// peer and address lists decode as nil.
func Decode(token string) (Ticket, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return Ticket{}, fmt.Errorf("%w: empty ticket", ErrInvalidFormat)
	}
	data, err := encoding.DecodeString(token)
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	var wire wireTicket
	if err := codec.Unmarshal(data, &wire); err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if wire.Version != Version {
		return Ticket{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, wire.Version)
	}

	var t Ticket
	if len(wire.Topic) != len(t.Topic) {
		return Ticket{}, fmt.Errorf("%w: topic is %d bytes, want %d", ErrInvalidFormat, len(wire.Topic), len(t.Topic))
	}
	copy(t.Topic[:], wire.Topic)

	for i, p := range wire.Peers {
		var addr bus.PeerAddr
		if len(p.ID) != len(addr.ID) {
			return Ticket{}, fmt.Errorf("%w: peer %d id is %d bytes, want %d", ErrInvalidFormat, i, len(p.ID), len(addr.ID))
		}
		copy(addr.ID[:], p.ID)
		if len(p.Addrs) > 0 {
			addr.Addrs = p.Addrs
		}
		t.Peers = append(t.Peers, addr)
	}
	return t, nil
}
