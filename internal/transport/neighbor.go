package transport

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"a2a/internal/bus"
	"a2a/internal/codec"
	"a2a/internal/logging"
	"a2a/internal/netutil"
)

// neighbor is one authenticated connection. A single writer goroutine drains
// a FIFO queue so frames leave in the order they were enqueued.
type neighbor struct {
	id       bus.PeerID
	addrs    []string
	conn     net.Conn
	outbound bool
	queue    chan frame
	done     chan struct{}
	once     sync.Once
	logger   *slog.Logger
}

func newNeighbor(conn net.Conn, peer peerInfo, outbound bool, queueSize int, logger *slog.Logger) *neighbor {
	return &neighbor{
		id:       peer.id,
		addrs:    peer.addrs,
		conn:     conn,
		outbound: outbound,
		queue:    make(chan frame, queueSize),
		done:     make(chan struct{}),
		logger:   logger.With(logging.String(logging.FieldPeerID, peer.id.Short())),
	}
}

// offer queues a relayed or control frame without waiting. A full queue
// drops the frame; the origin's other neighbours still carry it.
func (nb *neighbor) offer(f frame) {
	if nb.isClosed() {
		return
	}
	select {
	case nb.queue <- f:
	case <-nb.done:
	default:
		logging.WarnWithContext(nb.logger, "neighbour send queue full; dropping relayed frame", "gossip_queue_full",
			logging.String(logging.FieldImpact, "this neighbour may miss one relayed frame"),
			logging.String(logging.FieldErrorHint, "raise transport.outbound_queue if this persists"))
	}
}

// send queues a locally originated frame, waiting for room so a slow
// neighbour throttles the sender instead of losing the message. A neighbour
// that goes away while waiting is skipped.
func (nb *neighbor) send(ctx context.Context, f frame) error {
	if nb.isClosed() {
		return nil
	}
	select {
	case nb.queue <- f:
		return nil
	case <-nb.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (nb *neighbor) writeLoop() {
	for {
		select {
		case <-nb.done:
			return
		case f := <-nb.queue:
			_ = nb.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := codec.WriteFrame(nb.conn, f); err != nil {
				if !nb.isClosed() && !isExpectedClose(err) {
					nb.logger.Debug("neighbour write failed", logging.Error(err))
				}
				nb.close()
				return
			}
		}
	}
}

func (nb *neighbor) close() {
	nb.once.Do(func() {
		close(nb.done)
		_ = nb.conn.Close()
	})
}

func (nb *neighbor) isClosed() bool {
	select {
	case <-nb.done:
		return true
	default:
		return false
	}
}

func isExpectedClose(err error) bool {
	return netutil.IsExpectedCloseError(err)
}
