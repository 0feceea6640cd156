// Package transport is a small gossip overlay over TCP that satisfies
// bus.Bus for one topic at a time.
//
// Peers are ed25519 keys. Every connection starts with a mutual
// challenge-response handshake bound to the topic, after which both sides
// exchange length-prefixed CBOR frames. Broadcasts are signed by their
// origin, deduplicated by message id, delivered locally and flooded to every
// other neighbour. Local broadcasts and the receiver apply backpressure
// rather than dropping: a full queue makes the writer wait. Relays are best
// effort. On connect each side shares its neighbour list so small
// rooms converge to a full mesh.
package transport
