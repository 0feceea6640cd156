package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"a2a/internal/bus"
)

func newKey(t *testing.T) (ed25519.PrivateKey, bus.PeerID) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var id bus.PeerID
	copy(id[:], pub)
	return priv, id
}

type handshakeResult struct {
	peer peerInfo
	err  error
}

func runPair(t *testing.T, topicA, topicB bus.Topic) (handshakeResult, handshakeResult, bus.PeerID, bus.PeerID) {
	t.Helper()
	keyA, idA := newKey(t)
	keyB, idB := newKey(t)
	connA, connB := net.Pipe()
	t.Cleanup(func() {
		_ = connA.Close()
		_ = connB.Close()
	})

	results := make(chan handshakeResult, 1)
	go func() {
		peer, err := handshake(connB, keyB, idB, topicB, []string{"10.0.0.2:4000"})
		if err != nil {
			_ = connB.Close()
		}
		results <- handshakeResult{peer, err}
	}()
	peer, err := handshake(connA, keyA, idA, topicA, []string{"10.0.0.1:4000"})
	if err != nil {
		_ = connA.Close()
	}
	return handshakeResult{peer, err}, <-results, idA, idB
}

func TestHandshakeAuthenticatesBothSides(t *testing.T) {
	topic := bus.TopicFromRoom("lobby")
	a, b, idA, idB := runPair(t, topic, topic)
	if a.err != nil || b.err != nil {
		t.Fatalf("handshake errors: %v / %v", a.err, b.err)
	}
	if a.peer.id != idB || b.peer.id != idA {
		t.Fatal("peers learned the wrong identities")
	}
	if len(a.peer.addrs) != 1 || a.peer.addrs[0] != "10.0.0.2:4000" {
		t.Fatalf("unexpected addrs %v", a.peer.addrs)
	}
}

func TestHandshakeRejectsTopicMismatch(t *testing.T) {
	a, b, _, _ := runPair(t, bus.TopicFromRoom("one"), bus.TopicFromRoom("two"))
	if !errors.Is(a.err, errTopicMismatch) {
		t.Fatalf("expected topic mismatch on A, got %v", a.err)
	}
	if b.err == nil {
		t.Fatal("expected B to fail as well")
	}
}

func TestHandshakeRejectsSelf(t *testing.T) {
	_, id := newKey(t)
	in := frame{Kind: kindHello, Hello: &helloFrame{
		Version: protocolVersion,
		Topic:   make([]byte, 32),
		ID:      id[:],
		Nonce:   make([]byte, nonceSize),
	}}
	if _, _, err := checkHello(in, id, bus.Topic{}); !errors.Is(err, errSelfConnect) {
		t.Fatalf("expected errSelfConnect, got %v", err)
	}
	in.Hello.Version = 9
	if _, _, err := checkHello(in, bus.PeerID{}, bus.Topic{}); !errors.Is(err, errBadHello) {
		t.Fatalf("expected errBadHello for version, got %v", err)
	}
}

func TestSeenSetEvictsOldest(t *testing.T) {
	s := newSeenSet(2)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	if !s.add(a) || !s.add(b) {
		t.Fatal("expected fresh ids to be added")
	}
	if s.add(a) {
		t.Fatal("duplicate id reported as new")
	}
	s.add(c)
	if s.contains(a) {
		t.Fatal("expected oldest id evicted")
	}
	if !s.contains(b) || !s.contains(c) {
		t.Fatal("expected recent ids retained")
	}
}

func TestHandleMessageVerifiesAndDeduplicates(t *testing.T) {
	key, _ := newKey(t)
	n, err := New(Options{Key: key, QueueSize: 8})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()
	sub := newSubscription(n, bus.TopicFromRoom("verify"))

	originKey, originID := newKey(t)
	id := uuid.New()
	payload := []byte("hello")
	msg := &messageFrame{
		ID:      id[:],
		Origin:  originID[:],
		Payload: payload,
		Sig:     ed25519.Sign(originKey, signedBytes(id[:], payload)),
	}

	forged := *msg
	forged.Payload = []byte("tampered")
	sub.handleMessage(nil, &forged)
	if len(sub.events) != 0 {
		t.Fatal("forged message was delivered")
	}

	sub.handleMessage(nil, msg)
	sub.handleMessage(nil, msg)
	if len(sub.events) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(sub.events))
	}
	ev := (<-sub.events).(bus.Received)
	if ev.From != originID || string(ev.Content) != "hello" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestDeliverWaitsForRoom(t *testing.T) {
	key, _ := newKey(t)
	n, err := New(Options{Key: key, QueueSize: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()
	sub := newSubscription(n, bus.TopicFromRoom("backpressure"))

	if !sub.deliver(t.Context(), bus.NeighborUp{}) {
		t.Fatal("expected first event buffered")
	}
	done := make(chan bool, 1)
	go func() { done <- sub.deliver(t.Context(), bus.NeighborDown{}) }()
	select {
	case <-done:
		t.Fatal("deliver returned while the buffer was full")
	case <-time.After(50 * time.Millisecond):
	}

	if ev, err := sub.Next(t.Context()); err != nil {
		t.Fatalf("Next: %v", err)
	} else if _, ok := ev.(bus.NeighborUp); !ok {
		t.Fatalf("expected NeighborUp first, got %#v", ev)
	}
	if ok := <-done; !ok {
		t.Fatal("waiting deliver reported failure after room freed")
	}
	if ev, err := sub.Next(t.Context()); err != nil {
		t.Fatalf("Next: %v", err)
	} else if _, ok := ev.(bus.NeighborDown); !ok {
		t.Fatalf("expected NeighborDown second, got %#v", ev)
	}
}

func TestDeliverGivesUpOnCloseOrCancel(t *testing.T) {
	key, _ := newKey(t)
	n, err := New(Options{Key: key, QueueSize: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.Close()
	sub := newSubscription(n, bus.TopicFromRoom("giveup"))
	sub.deliver(t.Context(), bus.NeighborUp{})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if sub.deliver(ctx, bus.NeighborUp{}) {
		t.Fatal("deliver succeeded with a cancelled context and a full buffer")
	}

	done := make(chan bool, 1)
	go func() { done <- sub.deliver(t.Context(), bus.NeighborUp{}) }()
	_ = sub.Close()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("deliver succeeded after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("deliver still blocked after close")
	}
}

func TestPreferredIsSymmetric(t *testing.T) {
	_, a := newKey(t)
	_, b := newKey(t)
	// Connection dialed by a: a sees it outbound, b sees it inbound.
	if preferred(a, b, true) != preferred(b, a, false) {
		t.Fatal("ends disagree about the connection dialed by a")
	}
	if preferred(a, b, true) == preferred(a, b, false) {
		t.Fatal("exactly one direction must win")
	}
}

func TestAdvertiseAddrs(t *testing.T) {
	bound := &net.TCPAddr{IP: net.IPv4zero, Port: 4242}
	got, err := advertiseAddrs(bound, nil)
	if err != nil || len(got) != 1 || got[0] != "127.0.0.1:4242" {
		t.Fatalf("unexpected default advertise %v %v", got, err)
	}
	got, err = advertiseAddrs(bound, []string{"chat.example.net:0", "10.1.1.1:9000"})
	if err != nil {
		t.Fatalf("advertiseAddrs: %v", err)
	}
	if got[0] != "chat.example.net:4242" || got[1] != "10.1.1.1:9000" {
		t.Fatalf("unexpected configured advertise %v", got)
	}
	if _, err := advertiseAddrs(bound, []string{"no-port"}); err == nil {
		t.Fatal("expected error for address without port")
	}
}
