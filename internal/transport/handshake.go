package transport

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"a2a/internal/bus"
	"a2a/internal/codec"
)

const nonceSize = 32

var (
	errTopicMismatch = errors.New("peer joined a different topic")
	errSelfConnect   = errors.New("connected to self")
	errBadHello      = errors.New("malformed hello")
	errAuthFailed    = errors.New("peer failed authentication")
)

type peerInfo struct {
	id    bus.PeerID
	addrs []string
}

// handshake runs the mutual authentication protocol. Both ends run it
// simultaneously:
//
//  1. send hello{version, topic, id, addrs, nonce}
//  2. read the peer's hello and check version, topic and id
//  3. send auth{sign(peerNonce || topic)}
//  4. read the peer's auth and verify it against ownNonce || topic
//
// Writes go through a background goroutine because synchronous conns
// (net.Pipe) block a Write until the other side reads.
func handshake(conn io.ReadWriter, key ed25519.PrivateKey, self bus.PeerID, topic bus.Topic, addrs []string) (peerInfo, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return peerInfo{}, fmt.Errorf("generate nonce: %w", err)
	}

	writeErrors := make(chan error, 1)
	sigToSend := make(chan []byte, 1)
	go func() {
		hello := frame{Kind: kindHello, Hello: &helloFrame{
			Version: protocolVersion,
			Topic:   topic[:],
			ID:      self[:],
			Addrs:   addrs,
			Nonce:   nonce,
		}}
		if err := codec.WriteFrame(conn, hello); err != nil {
			writeErrors <- fmt.Errorf("send hello: %w", err)
			return
		}
		sig, ok := <-sigToSend
		if !ok {
			writeErrors <- nil
			return
		}
		if err := codec.WriteFrame(conn, frame{Kind: kindAuth, Auth: &authFrame{Sig: sig}}); err != nil {
			writeErrors <- fmt.Errorf("send auth: %w", err)
			return
		}
		writeErrors <- nil
	}()

	signed := false
	defer func() {
		if !signed {
			close(sigToSend)
		}
	}()

	var in frame
	if err := codec.ReadFrame(conn, &in); err != nil {
		return peerInfo{}, fmt.Errorf("read hello: %w", err)
	}
	peer, peerNonce, err := checkHello(in, self, topic)
	if err != nil {
		return peerInfo{}, err
	}

	sigToSend <- ed25519.Sign(key, append(append([]byte(nil), peerNonce...), topic[:]...))
	signed = true

	var auth frame
	if err := codec.ReadFrame(conn, &auth); err != nil {
		return peerInfo{}, fmt.Errorf("read auth: %w", err)
	}
	if err := <-writeErrors; err != nil {
		return peerInfo{}, err
	}
	if auth.Kind != kindAuth || auth.Auth == nil || len(auth.Auth.Sig) != ed25519.SignatureSize {
		return peerInfo{}, fmt.Errorf("%w: malformed auth frame", errAuthFailed)
	}
	expected := append(append([]byte(nil), nonce...), topic[:]...)
	if !ed25519.Verify(ed25519.PublicKey(peer.id[:]), expected, auth.Auth.Sig) {
		return peerInfo{}, fmt.Errorf("%w: %s", errAuthFailed, peer.id.Short())
	}
	return peer, nil
}

func checkHello(in frame, self bus.PeerID, topic bus.Topic) (peerInfo, []byte, error) {
	h := in.Hello
	if in.Kind != kindHello || h == nil {
		return peerInfo{}, nil, fmt.Errorf("%w: unexpected frame kind %d", errBadHello, in.Kind)
	}
	if h.Version != protocolVersion {
		return peerInfo{}, nil, fmt.Errorf("%w: unsupported version %d", errBadHello, h.Version)
	}
	if len(h.ID) != len(bus.PeerID{}) || len(h.Nonce) != nonceSize {
		return peerInfo{}, nil, errBadHello
	}
	if !bytes.Equal(h.Topic, topic[:]) {
		return peerInfo{}, nil, errTopicMismatch
	}
	var info peerInfo
	copy(info.id[:], h.ID)
	if info.id == self {
		return peerInfo{}, nil, errSelfConnect
	}
	info.addrs = h.Addrs
	return info, h.Nonce, nil
}
