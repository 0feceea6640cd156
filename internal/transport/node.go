package transport

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"a2a/internal/bus"
	"a2a/internal/logging"
)

var (
	// ErrClosed is returned by operations on a closed node.
	ErrClosed = errors.New("transport: node closed")
	// ErrNotStarted is returned when a node is used before Start.
	ErrNotStarted = errors.New("transport: node not started")
	// ErrAlreadySubscribed is returned when a second topic is joined.
	ErrAlreadySubscribed = errors.New("transport: already subscribed")
)

const (
	defaultListenAddr  = "0.0.0.0:0"
	defaultDialTimeout = 5 * time.Second
	defaultQueueSize   = 256
	handshakeTimeout   = 10 * time.Second
	writeTimeout       = 10 * time.Second
	seenCapacity       = 4096
)

var _ bus.Bus = (*Node)(nil)

// Options configures a Node.
type Options struct {
	Key            ed25519.PrivateKey
	ListenAddr     string
	AdvertiseAddrs []string
	DialTimeout    time.Duration
	QueueSize      int
	Logger         *slog.Logger
}

// Node is one peer in the gossip overlay.
type Node struct {
	key    ed25519.PrivateKey
	id     bus.PeerID
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	online chan struct{}

	mu       sync.Mutex
	listener net.Listener
	addrs    []string
	book     map[bus.PeerID][]string
	dialing  map[bus.PeerID]struct{}
	sub      *subscription
	failErr  error

	closeOnce sync.Once
}

// New builds a node for key. Nothing is bound until Start.
func New(opts Options) (*Node, error) {
	if len(opts.Key) != ed25519.PrivateKeySize {
		return nil, errors.New("transport requires an ed25519 private key")
	}
	if opts.ListenAddr == "" {
		opts.ListenAddr = defaultListenAddr
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	var id bus.PeerID
	copy(id[:], opts.Key.Public().(ed25519.PublicKey))

	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		key:     opts.Key,
		id:      id,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "transport"),
		ctx:     ctx,
		cancel:  cancel,
		online:  make(chan struct{}),
		book:    make(map[bus.PeerID][]string),
		dialing: make(map[bus.PeerID]struct{}),
	}, nil
}

// ID returns the node's peer id.
func (n *Node) ID() bus.PeerID { return n.id }

// Start binds the listener and begins accepting neighbours. Cancelling ctx
// shuts the node down.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ctx.Err() != nil {
		return ErrClosed
	}
	if n.listener != nil {
		return errors.New("transport already started")
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", n.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", n.opts.ListenAddr, err)
	}
	addrs, err := advertiseAddrs(listener.Addr(), n.opts.AdvertiseAddrs)
	if err != nil {
		_ = listener.Close()
		return err
	}
	n.listener = listener
	n.addrs = addrs
	context.AfterFunc(ctx, n.cancel)

	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		<-n.ctx.Done()
		_ = listener.Close()
	}()
	go n.acceptLoop(listener)

	close(n.online)
	n.logger.Debug("gossip listener bound",
		logging.String("listen_addr", listener.Addr().String()),
		logging.Any("advertise_addrs", addrs))
	return nil
}

// Online blocks until the node is reachable: bound and with at least one
// advertised address.
func (n *Node) Online(ctx context.Context) error {
	select {
	case <-n.online:
		return nil
	case <-n.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns how other peers reach this node.
func (n *Node) Addr() bus.PeerAddr {
	n.mu.Lock()
	defer n.mu.Unlock()
	return bus.PeerAddr{ID: n.id, Addrs: slices.Clone(n.addrs)}
}

// AddPeers records addresses for later dials.
func (n *Node) AddPeers(peers []bus.PeerAddr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range peers {
		if p.ID == n.id {
			continue
		}
		merged := n.book[p.ID]
		for _, addr := range p.Addrs {
			if addr != "" && !slices.Contains(merged, addr) {
				merged = append(merged, addr)
			}
		}
		n.book[p.ID] = merged
	}
}

// KnownAddrs returns the addresses recorded for id.
func (n *Node) KnownAddrs(id bus.PeerID) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.book[id])
}

// Subscribe joins topic and dials the bootstrap peers whose addresses were
// registered with AddPeers. A node carries one subscription at a time.
func (n *Node) Subscribe(ctx context.Context, topic bus.Topic, bootstrap []bus.PeerID) (bus.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	switch {
	case n.ctx.Err() != nil:
		n.mu.Unlock()
		return nil, ErrClosed
	case n.listener == nil:
		n.mu.Unlock()
		return nil, ErrNotStarted
	case n.sub != nil:
		n.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	sub := newSubscription(n, topic)
	n.sub = sub
	n.mu.Unlock()

	n.logger.Debug("joined topic", logging.String(logging.FieldTopic, topic.String()), logging.Int("bootstrap", len(bootstrap)))
	for _, id := range bootstrap {
		n.connect(sub, id)
	}
	return sub, nil
}

// Close stops the listener and every connection and waits for their
// goroutines.
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		n.cancel()
		n.mu.Lock()
		sub := n.sub
		n.mu.Unlock()
		if sub != nil {
			_ = sub.Close()
		}
		n.wg.Wait()
	})
	return nil
}

func (n *Node) release(sub *subscription) {
	n.mu.Lock()
	if n.sub == sub {
		n.sub = nil
	}
	n.mu.Unlock()
}

func (n *Node) current() *subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sub
}

func (n *Node) fail(err error) {
	n.mu.Lock()
	if n.failErr == nil {
		n.failErr = err
	}
	n.mu.Unlock()
	n.cancel()
}

func (n *Node) failure() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failErr
}

func (n *Node) acceptLoop(listener net.Listener) {
	defer n.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				n.fail(fmt.Errorf("gossip listener closed: %w", err))
				return
			}
			logging.WarnWithContext(n.logger, "accept failed", "gossip_accept_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "an inbound neighbour could not connect"),
				logging.String(logging.FieldErrorHint, "check file descriptor limits"))
			time.Sleep(50 * time.Millisecond)
			continue
		}
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.handleInbound(conn)
		}()
	}
}

func (n *Node) handleInbound(conn net.Conn) {
	sub := n.current()
	if sub == nil {
		n.logger.Debug("rejecting inbound connection before subscribe", logging.String("remote", conn.RemoteAddr().String()))
		_ = conn.Close()
		return
	}
	peer, err := n.authenticate(conn, sub.topic)
	if err != nil {
		_ = conn.Close()
		n.logger.Debug("inbound handshake failed",
			logging.String("remote", conn.RemoteAddr().String()),
			logging.Error(err))
		return
	}
	sub.attach(conn, peer, false)
}

// connect dials id unless it is self, already a neighbour, already being
// dialed, or has no known address.
func (n *Node) connect(sub *subscription, id bus.PeerID) {
	if id == n.id || sub.hasNeighbor(id) {
		return
	}
	n.mu.Lock()
	if _, busy := n.dialing[id]; busy {
		n.mu.Unlock()
		return
	}
	addrs := slices.Clone(n.book[id])
	if len(addrs) == 0 {
		n.mu.Unlock()
		n.logger.Debug("no address for peer", logging.String(logging.FieldPeerID, id.Short()))
		return
	}
	n.dialing[id] = struct{}{}
	n.mu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			n.mu.Lock()
			delete(n.dialing, id)
			n.mu.Unlock()
		}()
		n.dial(sub, id, addrs)
	}()
}

func (n *Node) dial(sub *subscription, id bus.PeerID, addrs []string) {
	dialer := net.Dialer{Timeout: n.opts.DialTimeout}
	var lastErr error
	for _, addr := range addrs {
		conn, err := dialer.DialContext(n.ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		peer, err := n.authenticate(conn, sub.topic)
		if err != nil {
			_ = conn.Close()
			lastErr = err
			continue
		}
		if peer.id != id {
			_ = conn.Close()
			lastErr = fmt.Errorf("%s answered as %s", addr, peer.id.Short())
			continue
		}
		sub.attach(conn, peer, true)
		return
	}
	if n.ctx.Err() != nil {
		return
	}
	logging.WarnWithContext(n.logger, "could not reach peer", "gossip_dial_failed",
		logging.String(logging.FieldPeerID, id.Short()),
		logging.Any("addrs", addrs),
		logging.Error(lastErr),
		logging.String(logging.FieldImpact, "messages reach this peer only through other neighbours"),
		logging.String(logging.FieldErrorHint, "check that the peer is online and its advertised address is reachable"))
}

func (n *Node) authenticate(conn net.Conn, topic bus.Topic) (peerInfo, error) {
	stop := context.AfterFunc(n.ctx, func() { _ = conn.Close() })
	defer stop()
	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))
	peer, err := handshake(conn, n.key, n.id, topic, n.Addr().Addrs)
	_ = conn.SetDeadline(time.Time{})
	return peer, err
}

// advertiseAddrs resolves the addresses placed in tickets. Configured entries
// with an empty or zero port take the bound port; with none configured the
// bound address is used and an unspecified host becomes loopback.
func advertiseAddrs(bound net.Addr, configured []string) ([]string, error) {
	tcp, ok := bound.(*net.TCPAddr)
	if !ok {
		return []string{bound.String()}, nil
	}
	port := strconv.Itoa(tcp.Port)
	if len(configured) > 0 {
		out := make([]string, 0, len(configured))
		for _, addr := range configured {
			host, p, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("advertise address %q: %w", addr, err)
			}
			if p == "" || p == "0" {
				p = port
			}
			out = append(out, net.JoinHostPort(host, p))
		}
		return out, nil
	}
	ip := tcp.IP
	if ip == nil || ip.IsUnspecified() {
		ip = net.IPv4(127, 0, 0, 1)
	}
	return []string{net.JoinHostPort(ip.String(), port)}, nil
}
