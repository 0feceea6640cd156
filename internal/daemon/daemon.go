package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"a2a/internal/bus"
	"a2a/internal/chat"
	"a2a/internal/console"
	"a2a/internal/daemonctl"
	"a2a/internal/identity"
	"a2a/internal/ipc"
	"a2a/internal/logging"
	"a2a/internal/ticket"
)

// Transport is the gossip endpoint a session runs on.
type Transport interface {
	bus.Bus
	AddPeers(peers []bus.PeerAddr)
	Online(ctx context.Context) error
	Addr() bus.PeerAddr
	KnownAddrs(id bus.PeerID) []string
	Close() error
}

// IdentityStore resolves the identity a session runs as.
type IdentityStore interface {
	LoadOrCreate(name string) (identity.Identity, error)
}

// PeerBook remembers peers per topic across runs.
type PeerBook interface {
	Remember(ctx context.Context, topic bus.Topic, peer bus.PeerAddr, seenAt time.Time) error
	Bootstrap(ctx context.Context, topic bus.Topic, limit int) ([]bus.PeerAddr, error)
}

// Options configures a Daemon. Identities, Transport and DataDir are
// required; Peers is optional.
type Options struct {
	Identities    IdentityStore
	Transport     Transport
	Peers         PeerBook
	DataDir       string
	Identity      string
	Room          string
	Join          string
	OnlineTimeout time.Duration
	MaxLineBytes  int
	MaxBootstrap  int
	Printer       *console.Printer
	Logger        *slog.Logger
	Now           func() time.Time
}

// Daemon is one chat session.
type Daemon struct {
	opts    Options
	logger  *slog.Logger
	printer *console.Printer
	now     func() time.Time

	state  atomic.Int32
	ran    atomic.Bool
	ready  chan struct{}
	socket atomic.Value
}

// New validates opts and returns a session ready to Run.
func New(opts Options) (*Daemon, error) {
	if opts.Identities == nil || opts.Transport == nil {
		return nil, errors.New("daemon requires an identity store and a transport")
	}
	if strings.TrimSpace(opts.DataDir) == "" {
		return nil, errors.New("daemon requires a data directory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	printer := opts.Printer
	if printer == nil {
		printer = console.New(os.Stdout)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Daemon{
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "daemon"),
		printer: printer,
		now:     now,
		ready:   make(chan struct{}),
	}, nil
}

// State returns the current lifecycle phase.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

// Ready is closed once the control socket accepts connections.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// SocketPath returns the control socket once Ready is closed.
func (d *Daemon) SocketPath() string {
	path, _ := d.socket.Load().(string)
	return path
}

func (d *Daemon) setState(s State) {
	prev := State(d.state.Swap(int32(s)))
	if prev != s {
		d.logger.Debug("state change", logging.String("from", prev.String()), logging.String("to", s.String()))
	}
}

// Run drives the session until ctx is cancelled, the gossip stream ends, or
// a fatal error occurs. A nil error means a clean stop.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.ran.CompareAndSwap(false, true) {
		return errors.New("daemon already ran")
	}

	var cleanups []func()
	defer func() {
		d.setState(StateShuttingDown)
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		d.setState(StateStopped)
	}()
	cleanups = append(cleanups, func() {
		if err := d.opts.Transport.Close(); err != nil {
			d.logger.Debug("transport close failed", logging.Error(err))
		}
	})

	self, err := d.opts.Identities.LoadOrCreate(d.opts.Identity)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	ctx = logging.WithIdentity(ctx, self.Name)
	logger := logging.WithContext(ctx, d.logger)

	release, err := d.acquireLock(self.Name)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, release)

	d.printer.Banner(self.Name, d.roomLabel(), self.PeerID())
	logger.Info("session starting",
		logging.String(logging.FieldPeerID, self.PeerID().Short()),
		logging.String("room", d.roomLabel()))

	d.setState(StateConnecting)
	topic, bootstrap, err := d.resolveRoom(ctx, logger)
	if err != nil {
		return err
	}
	d.opts.Transport.AddPeers(bootstrap)
	d.printer.System("connecting to network...")
	if err := d.waitOnline(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrTransportInit, err)
	}

	d.setState(StateOnline)
	token, err := ticket.Encode(topic, []bus.PeerAddr{d.opts.Transport.Addr()})
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}
	d.printer.Ticket(token)

	d.printer.System("joining gossip swarm...")
	sub, err := d.opts.Transport.Subscribe(ctx, topic, peerIDs(bootstrap))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubscription, err)
	}
	cleanups = append(cleanups, func() {
		if err := sub.Close(); err != nil {
			logger.Debug("subscription close failed", logging.Error(err))
		}
	})

	socket := ipc.SocketPath(d.opts.DataDir, self.Name)
	srv, err := ipc.NewServer(ctx, socket, d.lineHandler(sub, self), ipc.Options{
		MaxLineBytes: d.opts.MaxLineBytes,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	cleanups = append(cleanups, srv.Close)
	srv.Serve()
	d.socket.Store(socket)
	close(d.ready)

	d.printer.System("listening on socket for '%s'", self.Name)
	d.printer.System("ready! waiting for messages...")
	logger.Info("session online",
		logging.String(logging.FieldTopic, topic.String()),
		logging.String("socket", socket),
		logging.Int("bootstrap_peers", len(bootstrap)))

	err = d.receive(ctx, logger, sub, topic, self)
	d.printer.System("disconnected")
	return err
}

func (d *Daemon) roomLabel() string {
	if strings.TrimSpace(d.opts.Join) != "" {
		return "(joined by ticket)"
	}
	return d.opts.Room
}

func (d *Daemon) acquireLock(name string) (func(), error) {
	if err := os.MkdirAll(d.opts.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	lockPath := daemonctl.LockPath(d.opts.DataDir, name)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.String("lock", lockPath), logging.Error(err))
		}
	}, nil
}

// resolveRoom picks the topic and bootstrap peers: from the ticket when
// joining, otherwise from the room label and the peer book.
func (d *Daemon) resolveRoom(ctx context.Context, logger *slog.Logger) (bus.Topic, []bus.PeerAddr, error) {
	if join := strings.TrimSpace(d.opts.Join); join != "" {
		t, err := ticket.Decode(join)
		if err != nil {
			return bus.Topic{}, nil, fmt.Errorf("decode ticket: %w", err)
		}
		d.printer.System("joining via ticket with %d peers", len(t.Peers))
		return t.Topic, t.Peers, nil
	}

	topic := bus.TopicFromRoom(d.opts.Room)
	if d.opts.Peers == nil || d.opts.MaxBootstrap <= 0 {
		return topic, nil, nil
	}
	peers, err := d.opts.Peers.Bootstrap(ctx, topic, d.opts.MaxBootstrap)
	if err != nil {
		logging.WarnWithContext(logger, "peer book lookup failed", "peerbook_bootstrap_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "starting without remembered peers"),
			logging.String(logging.FieldErrorHint, "share a ticket to connect, or delete peers.db if it is corrupt"))
		return topic, nil, nil
	}
	if len(peers) > 0 {
		d.printer.System("rejoining via %d remembered peers", len(peers))
	}
	return topic, peers, nil
}

func (d *Daemon) waitOnline(ctx context.Context) error {
	if d.opts.OnlineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.OnlineTimeout)
		defer cancel()
	}
	return d.opts.Transport.Online(ctx)
}

// lineHandler broadcasts each control-socket line as a chat message. It does
// not print; the bus echo does.
func (d *Daemon) lineHandler(sender bus.Sender, self identity.Identity) ipc.Handler {
	name, id := self.Name, self.PublicID()
	return ipc.HandlerFunc(func(ctx context.Context, line string) error {
		payload, err := chat.Encode(chat.New(name, id, line, d.now()))
		if err != nil {
			return err
		}
		if err := sender.Broadcast(ctx, payload); err != nil {
			return fmt.Errorf("broadcast: %w", err)
		}
		return nil
	})
}

type nextResult struct {
	event bus.Event
	err   error
}

func (d *Daemon) receive(ctx context.Context, logger *slog.Logger, sub bus.Receiver, topic bus.Topic, self identity.Identity) error {
	pumpCtx, cancel := context.WithCancel(ctx)
	results := make(chan nextResult)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			ev, err := sub.Next(pumpCtx)
			select {
			case results <- nextResult{event: ev, err: err}:
			case <-pumpCtx.Done():
				return
			}
			if err != nil && streamFinished(err) {
				return
			}
		}
	}()

	selfID := self.PublicID()
	for {
		select {
		case <-ctx.Done():
			d.printer.System("shutting down...")
			logger.Info("session stopping", logging.String("reason", "signal"))
			return nil
		case res := <-results:
			if res.err == nil {
				d.handleEvent(ctx, logger, topic, selfID, res.event)
				continue
			}
			switch {
			case ctx.Err() != nil:
				d.printer.System("shutting down...")
				return nil
			case errors.Is(res.err, io.EOF), errors.Is(res.err, bus.ErrClosed):
				d.printer.System("gossip stream ended")
				logger.Info("session stopping", logging.String("reason", "stream ended"))
				return nil
			case errors.Is(res.err, bus.ErrUnrecoverable):
				logging.ErrorWithContext(logger, "gossip stream failed", "gossip_stream_failed",
					logging.Error(res.err),
					logging.String(logging.FieldImpact, "the session cannot send or receive messages"),
					logging.String(logging.FieldErrorHint, "restart the daemon"))
				return fmt.Errorf("gossip stream: %w", res.err)
			default:
				d.printer.System("gossip error: %v", res.err)
				logger.Warn("gossip receive error",
					logging.Error(res.err),
					logging.String(logging.FieldEventType, "gossip_receive_error"))
			}
		}
	}
}

func streamFinished(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, bus.ErrClosed) ||
		errors.Is(err, bus.ErrUnrecoverable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (d *Daemon) handleEvent(ctx context.Context, logger *slog.Logger, topic bus.Topic, selfID string, event bus.Event) {
	switch ev := event.(type) {
	case bus.Received:
		msg, err := chat.Decode(ev.Content)
		if err != nil {
			logger.Debug("dropping malformed message",
				logging.String(logging.FieldPeerID, ev.From.Short()),
				logging.Error(err))
			return
		}
		origin := chat.Classify(msg, selfID)
		d.printer.Message(msg, origin)
		if origin == chat.Peer {
			d.remember(ctx, logger, topic, ev.From)
		}
	case bus.NeighborUp:
		d.printer.System("peer connected: %s...", ev.Peer.String()[:8])
		d.remember(ctx, logger, topic, ev.Peer)
	case bus.NeighborDown:
		d.printer.System("peer disconnected: %s...", ev.Peer.String()[:8])
	case bus.Lagged:
		logger.Debug("receiver lagged", logging.Int("missed", ev.Missed))
	}
}

func (d *Daemon) remember(ctx context.Context, logger *slog.Logger, topic bus.Topic, id bus.PeerID) {
	if d.opts.Peers == nil {
		return
	}
	peer := bus.PeerAddr{ID: id, Addrs: d.opts.Transport.KnownAddrs(id)}
	if err := d.opts.Peers.Remember(ctx, topic, peer, d.now()); err != nil {
		logger.Debug("peer book update failed", logging.String(logging.FieldPeerID, id.Short()), logging.Error(err))
	}
}

func peerIDs(peers []bus.PeerAddr) []bus.PeerID {
	ids := make([]bus.PeerID, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.ID)
	}
	return ids
}
