package bus_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"a2a/internal/bus"
)

func peer(b byte) bus.PeerID {
	var id bus.PeerID
	id[0] = b
	return id
}

func next(t *testing.T, r bus.Receiver) bus.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	event, err := r.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	return event
}

func TestTopicFromRoomIsStableAndNamespaced(t *testing.T) {
	a := bus.TopicFromRoom("test")
	if a != bus.TopicFromRoom("test") {
		t.Fatal("topic derivation is not deterministic")
	}
	if a == bus.TopicFromRoom("test2") {
		t.Fatal("different rooms produced the same topic")
	}
	if len(a.String()) != 64 {
		t.Fatalf("topic hex length = %d", len(a.String()))
	}
}

func TestParsePeerIDRoundTrip(t *testing.T) {
	id := peer(0xab)
	parsed, err := bus.ParsePeerID(id.String())
	if err != nil {
		t.Fatalf("ParsePeerID: %v", err)
	}
	if parsed != id {
		t.Fatalf("parsed %s, want %s", parsed, id)
	}
	if _, err := bus.ParsePeerID("abcd"); err == nil {
		t.Fatal("expected error for short id")
	}
	if id.Short() != id.String()[:10] {
		t.Fatalf("Short() = %q", id.Short())
	}
}

func TestHubDeliversToAllIncludingSelf(t *testing.T) {
	hub := bus.NewHub()
	topic := bus.TopicFromRoom("room")
	ctx := context.Background()

	a, err := hub.Endpoint(peer(1)).Subscribe(ctx, topic, nil)
	if err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	defer a.Close()
	b, err := hub.Endpoint(peer(2)).Subscribe(ctx, topic, nil)
	if err != nil {
		t.Fatalf("subscribe b: %v", err)
	}
	defer b.Close()

	if up, ok := next(t, a).(bus.NeighborUp); !ok || up.Peer != peer(2) {
		t.Fatalf("a expected NeighborUp(2), got %#v", up)
	}
	if up, ok := next(t, b).(bus.NeighborUp); !ok || up.Peer != peer(1) {
		t.Fatalf("b expected NeighborUp(1), got %#v", up)
	}

	if err := b.Broadcast(ctx, []byte("hello")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	for name, sub := range map[string]bus.Subscription{"a": a, "b": b} {
		got, ok := next(t, sub).(bus.Received)
		if !ok || got.From != peer(2) || string(got.Content) != "hello" {
			t.Fatalf("%s got %#v", name, got)
		}
	}
}

func TestHubCloseEmitsNeighborDownAndEnds(t *testing.T) {
	hub := bus.NewHub()
	topic := bus.TopicFromRoom("room")
	ctx := context.Background()

	a, _ := hub.Endpoint(peer(1)).Subscribe(ctx, topic, nil)
	b, _ := hub.Endpoint(peer(2)).Subscribe(ctx, topic, nil)
	next(t, a) // NeighborUp

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if down, ok := next(t, a).(bus.NeighborDown); !ok || down.Peer != peer(2) {
		t.Fatalf("expected NeighborDown(2), got %#v", down)
	}
	if err := b.Broadcast(ctx, []byte("x")); !errors.Is(err, bus.ErrClosed) {
		t.Fatalf("broadcast after close: %v", err)
	}
	if hub.Subscribers(topic) != 1 {
		t.Fatalf("subscribers = %d", hub.Subscribers(topic))
	}

	hub.End(topic)
	if _, err := a.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after End, got %v", err)
	}
}

func TestHubFailSurfacesError(t *testing.T) {
	hub := bus.NewHub()
	topic := bus.TopicFromRoom("room")
	sub, _ := hub.Endpoint(peer(1)).Subscribe(context.Background(), topic, nil)
	defer sub.Close()

	hub.Fail(topic, bus.ErrUnrecoverable)
	if _, err := sub.Next(context.Background()); !errors.Is(err, bus.ErrUnrecoverable) {
		t.Fatalf("expected ErrUnrecoverable, got %v", err)
	}
}

func TestNextHonoursContext(t *testing.T) {
	hub := bus.NewHub()
	sub, _ := hub.Endpoint(peer(1)).Subscribe(context.Background(), bus.TopicFromRoom("quiet"), nil)
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
