package transport

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"a2a/internal/bus"
	"a2a/internal/codec"
	"a2a/internal/logging"
)

// maxPayloadBytes leaves room for the message envelope inside one frame.
const maxPayloadBytes = codec.MaxFrameBytes - 1024

var errPayloadTooLarge = errors.New("payload exceeds frame limit")

type subscription struct {
	node   *Node
	topic  bus.Topic
	logger *slog.Logger
	seen   *seenSet

	// events is bounded; producers wait for room rather than drop, so a
	// slow consumer stalls the neighbour reads and TCP throttles the sender.
	events chan bus.Event
	// recvMu makes marking an id seen and delivering it one step, so two
	// readers racing on the same origin cannot reorder its messages.
	recvMu sync.Mutex

	mu        sync.Mutex
	neighbors map[bus.PeerID]*neighbor
	closed    chan struct{}
	closeOnce sync.Once
}

func newSubscription(n *Node, topic bus.Topic) *subscription {
	return &subscription{
		node:      n,
		topic:     topic,
		logger:    n.logger.With(logging.String(logging.FieldTopic, topic.String())),
		seen:      newSeenSet(seenCapacity),
		events:    make(chan bus.Event, n.opts.QueueSize),
		neighbors: make(map[bus.PeerID]*neighbor),
		closed:    make(chan struct{}),
	}
}

// Broadcast signs payload, echoes it to the local receiver and sends it to
// every neighbour. It waits while the receiver or a neighbour queue is full,
// until ctx ends.
func (s *subscription) Broadcast(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.isClosed() {
		return bus.ErrClosed
	}
	if len(payload) > maxPayloadBytes {
		return fmt.Errorf("%w: %d bytes", errPayloadTooLarge, len(payload))
	}
	id := uuid.New()
	body := bytes.Clone(payload)
	msg := &messageFrame{
		ID:      id[:],
		Origin:  s.node.id[:],
		Payload: body,
		Sig:     ed25519.Sign(s.node.key, signedBytes(id[:], body)),
	}
	s.recvMu.Lock()
	s.seen.add(id)
	delivered := s.deliver(ctx, bus.Received{From: s.node.id, Content: bytes.Clone(body)})
	s.recvMu.Unlock()
	if !delivered {
		if err := ctx.Err(); err != nil {
			return err
		}
		return bus.ErrClosed
	}
	f := frame{Kind: kindMessage, Message: msg}
	for _, nb := range s.targets(nil) {
		if err := nb.send(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// Next returns the next event. Buffered events are drained before a closed
// subscription or stopped node is reported.
func (s *subscription) Next(ctx context.Context) (bus.Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	default:
	}
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.closed:
		return nil, bus.ErrClosed
	case <-s.node.ctx.Done():
		if err := s.node.failure(); err != nil {
			return nil, fmt.Errorf("%w: %v", bus.ErrUnrecoverable, err)
		}
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close leaves the topic and drops every neighbour.
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		neighbors := s.neighbors
		s.neighbors = make(map[bus.PeerID]*neighbor)
		s.mu.Unlock()
		for _, nb := range neighbors {
			nb.close()
		}
		s.node.release(s)
	})
	return nil
}

func (s *subscription) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *subscription) hasNeighbor(id bus.PeerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.neighbors[id]
	return ok
}

// deliver hands ev to the receiver, waiting for room. It reports false when
// the subscription closes, the node stops or ctx ends first.
func (s *subscription) deliver(ctx context.Context, ev bus.Event) bool {
	if s.isClosed() {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.closed:
	case <-s.node.ctx.Done():
	case <-ctx.Done():
	}
	return false
}

func (s *subscription) targets(except *neighbor) []*neighbor {
	s.mu.Lock()
	defer s.mu.Unlock()
	targets := make([]*neighbor, 0, len(s.neighbors))
	for _, nb := range s.neighbors {
		if nb != except {
			targets = append(targets, nb)
		}
	}
	return targets
}

// relay forwards a frame received from one neighbour to the others.
func (s *subscription) relay(f frame, from *neighbor) {
	for _, nb := range s.targets(from) {
		nb.offer(f)
	}
}

// attach promotes an authenticated connection to a neighbour. When both
// sides dial each other at once, the connection dialed by the lower peer id
// wins on both ends.
func (s *subscription) attach(conn net.Conn, peer peerInfo, outbound bool) {
	nb := newNeighbor(conn, peer, outbound, s.node.opts.QueueSize, s.logger)

	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	existing := s.neighbors[peer.id]
	if existing != nil && !preferred(s.node.id, peer.id, outbound) {
		s.mu.Unlock()
		_ = conn.Close()
		s.logger.Debug("dropping duplicate connection", logging.String(logging.FieldPeerID, peer.id.Short()))
		return
	}
	s.neighbors[peer.id] = nb
	known := make([]bus.PeerAddr, 0, len(s.neighbors))
	for id, other := range s.neighbors {
		if id != peer.id {
			known = append(known, bus.PeerAddr{ID: id, Addrs: other.addrs})
		}
	}
	s.mu.Unlock()

	if existing != nil {
		existing.close()
	}
	s.node.AddPeers([]bus.PeerAddr{{ID: peer.id, Addrs: peer.addrs}})

	s.node.wg.Add(2)
	go func() {
		defer s.node.wg.Done()
		nb.writeLoop()
	}()
	go func() {
		defer s.node.wg.Done()
		s.readLoop(nb)
	}()

	if len(known) > 0 {
		nb.offer(frame{Kind: kindPeers, Peers: &peersFrame{Peers: toWirePeers(known)}})
	}
	if existing == nil {
		s.logger.Info("neighbour connected",
			logging.String(logging.FieldPeerID, peer.id.Short()),
			logging.Bool("outbound", outbound))
		s.deliver(s.node.ctx, bus.NeighborUp{Peer: peer.id})
	}
}

func (s *subscription) detach(nb *neighbor) {
	s.mu.Lock()
	current := s.neighbors[nb.id] == nb
	if current {
		delete(s.neighbors, nb.id)
	}
	s.mu.Unlock()
	if current && !s.isClosed() {
		s.logger.Info("neighbour disconnected", logging.String(logging.FieldPeerID, nb.id.Short()))
		s.deliver(s.node.ctx, bus.NeighborDown{Peer: nb.id})
	}
}

func (s *subscription) readLoop(nb *neighbor) {
	defer func() {
		nb.close()
		s.detach(nb)
	}()
	for {
		var f frame
		if err := codec.ReadFrame(nb.conn, &f); err != nil {
			if !nb.isClosed() && !isExpectedClose(err) {
				s.logger.Debug("neighbour read failed",
					logging.String(logging.FieldPeerID, nb.id.Short()),
					logging.Error(err))
			}
			return
		}
		s.handleFrame(nb, f)
	}
}

func (s *subscription) handleFrame(from *neighbor, f frame) {
	switch f.Kind {
	case kindMessage:
		s.handleMessage(from, f.Message)
	case kindPeers:
		if f.Peers != nil {
			s.handlePeers(fromWirePeers(f.Peers.Peers))
		}
	default:
		s.logger.Debug("ignoring unexpected frame", logging.Int("kind", int(f.Kind)))
	}
}

func (s *subscription) handleMessage(from *neighbor, m *messageFrame) {
	if m == nil || len(m.ID) != 16 || len(m.Origin) != len(bus.PeerID{}) || len(m.Sig) != ed25519.SignatureSize {
		s.logger.Debug("dropping malformed message frame")
		return
	}
	id, err := uuid.FromBytes(m.ID)
	if err != nil || s.seen.contains(id) {
		return
	}
	if !ed25519.Verify(ed25519.PublicKey(m.Origin), signedBytes(m.ID, m.Payload), m.Sig) {
		logging.WarnWithContext(s.logger, "dropping message with bad signature", "gossip_bad_signature",
			logging.String("message_id", id.String()),
			logging.String(logging.FieldImpact, "a relayed message was discarded"),
			logging.String(logging.FieldErrorHint, "a neighbour may be running an incompatible or tampered build"))
		return
	}
	var origin bus.PeerID
	copy(origin[:], m.Origin)
	s.recvMu.Lock()
	fresh := s.seen.add(id)
	if fresh {
		s.deliver(s.node.ctx, bus.Received{From: origin, Content: bytes.Clone(m.Payload)})
	}
	s.recvMu.Unlock()
	if !fresh {
		return
	}
	s.relay(frame{Kind: kindMessage, Message: m}, from)
}

func (s *subscription) handlePeers(peers []bus.PeerAddr) {
	if len(peers) == 0 {
		return
	}
	s.node.AddPeers(peers)
	for _, p := range peers {
		s.node.connect(s, p.ID)
	}
}

func preferred(self, remote bus.PeerID, outbound bool) bool {
	dialer, acceptor := remote, self
	if outbound {
		dialer, acceptor = self, remote
	}
	return bytes.Compare(dialer[:], acceptor[:]) < 0
}
