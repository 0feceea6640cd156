package bus

import (
	"context"
	"io"
	"sync"
)

// Hub is an in-process broadcast bus. Every endpoint created from the same Hub
// sees the others' broadcasts, including its own.
type Hub struct {
	mu     sync.Mutex
	topics map[Topic]map[*memorySub]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[Topic]map[*memorySub]struct{})}
}

// Endpoint returns a Bus that subscribes as peer id.
func (h *Hub) Endpoint(id PeerID) Bus {
	return &memoryBus{hub: h, id: id}
}

// Publish delivers payload to every subscriber of topic as if it had been
// broadcast by from.
func (h *Hub) Publish(topic Topic, from PeerID, payload []byte) {
	for _, sub := range h.members(topic) {
		sub.push(Received{From: from, Content: append([]byte(nil), payload...)})
	}
}

// End terminates every subscription stream on topic. Pending events are still
// delivered before Next reports io.EOF.
func (h *Hub) End(topic Topic) {
	h.fail(topic, io.EOF)
}

// Fail terminates every subscription stream on topic with err.
func (h *Hub) Fail(topic Topic, err error) {
	h.fail(topic, err)
}

func (h *Hub) fail(topic Topic, err error) {
	for _, sub := range h.members(topic) {
		sub.terminate(err)
	}
}

// Subscribers reports how many live subscriptions topic has.
func (h *Hub) Subscribers(topic Topic) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

func (h *Hub) members(topic Topic) []*memorySub {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := make([]*memorySub, 0, len(h.topics[topic]))
	for sub := range h.topics[topic] {
		subs = append(subs, sub)
	}
	return subs
}

func (h *Hub) join(sub *memorySub) {
	h.mu.Lock()
	members := h.topics[sub.topic]
	if members == nil {
		members = make(map[*memorySub]struct{})
		h.topics[sub.topic] = members
	}
	existing := make([]*memorySub, 0, len(members))
	for other := range members {
		existing = append(existing, other)
	}
	members[sub] = struct{}{}
	h.mu.Unlock()

	for _, other := range existing {
		if other.id == sub.id {
			continue
		}
		other.push(NeighborUp{Peer: sub.id})
		sub.push(NeighborUp{Peer: other.id})
	}
}

func (h *Hub) leave(sub *memorySub) {
	h.mu.Lock()
	members := h.topics[sub.topic]
	if _, ok := members[sub]; !ok {
		h.mu.Unlock()
		return
	}
	delete(members, sub)
	if len(members) == 0 {
		delete(h.topics, sub.topic)
	}
	remaining := make([]*memorySub, 0, len(members))
	for other := range members {
		remaining = append(remaining, other)
	}
	h.mu.Unlock()

	for _, other := range remaining {
		if other.id != sub.id {
			other.push(NeighborDown{Peer: sub.id})
		}
	}
}

type memoryBus struct {
	hub *Hub
	id  PeerID
}

func (b *memoryBus) Subscribe(_ context.Context, topic Topic, _ []PeerID) (Subscription, error) {
	sub := &memorySub{hub: b.hub, id: b.id, topic: topic, notify: make(chan struct{}, 1)}
	b.hub.join(sub)
	return sub, nil
}

type memorySub struct {
	hub    *Hub
	id     PeerID
	topic  Topic
	notify chan struct{}

	mu      sync.Mutex
	queue   []Event
	endErr  error
	closed  bool
	closeMu sync.Once
}

func (s *memorySub) Broadcast(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	s.hub.Publish(s.topic, s.id, payload)
	return nil
}

func (s *memorySub) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			event := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return event, nil
		}
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		if s.endErr != nil {
			err := s.endErr
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}

func (s *memorySub) Close() error {
	s.closeMu.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.hub.leave(s)
		s.wake()
	})
	return nil
}

func (s *memorySub) push(event Event) {
	s.mu.Lock()
	if s.closed || s.endErr != nil {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()
	s.wake()
}

func (s *memorySub) terminate(err error) {
	s.mu.Lock()
	if s.endErr == nil {
		s.endErr = err
	}
	s.mu.Unlock()
	s.wake()
}

func (s *memorySub) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
