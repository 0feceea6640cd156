package transport

import "a2a/internal/bus"

const protocolVersion = 1

type frameKind uint8

const (
	kindHello frameKind = iota + 1
	kindAuth
	kindMessage
	kindPeers
)

type frame struct {
	Kind    frameKind     `cbor:"1,keyasint"`
	Hello   *helloFrame   `cbor:"2,keyasint,omitempty"`
	Auth    *authFrame    `cbor:"3,keyasint,omitempty"`
	Message *messageFrame `cbor:"4,keyasint,omitempty"`
	Peers   *peersFrame   `cbor:"5,keyasint,omitempty"`
}

type helloFrame struct {
	_       struct{} `cbor:",toarray"`
	Version uint
	Topic   []byte
	ID      []byte
	Addrs   []string
	Nonce   []byte
}

type authFrame struct {
	_   struct{} `cbor:",toarray"`
	Sig []byte
}

// messageFrame is a broadcast. Sig is the origin's signature over ID||Payload
// so relays cannot alter content or forge authorship.
type messageFrame struct {
	_       struct{} `cbor:",toarray"`
	ID      []byte
	Origin  []byte
	Payload []byte
	Sig     []byte
}

type peersFrame struct {
	_     struct{} `cbor:",toarray"`
	Peers []wirePeer
}

type wirePeer struct {
	_     struct{} `cbor:",toarray"`
	ID    []byte
	Addrs []string
}

func signedBytes(id, payload []byte) []byte {
	out := make([]byte, 0, len(id)+len(payload))
	out = append(out, id...)
	return append(out, payload...)
}

func toWirePeers(peers []bus.PeerAddr) []wirePeer {
	out := make([]wirePeer, 0, len(peers))
	for _, p := range peers {
		out = append(out, wirePeer{ID: append([]byte(nil), p.ID[:]...), Addrs: p.Addrs})
	}
	return out
}

func fromWirePeers(peers []wirePeer) []bus.PeerAddr {
	out := make([]bus.PeerAddr, 0, len(peers))
	for _, p := range peers {
		var id bus.PeerID
		if len(p.ID) != len(id) || len(p.Addrs) == 0 {
			continue
		}
		copy(id[:], p.ID)
		out = append(out, bus.PeerAddr{ID: id, Addrs: p.Addrs})
	}
	return out
}
