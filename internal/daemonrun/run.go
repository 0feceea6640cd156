package daemonrun

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"a2a/internal/config"
	"a2a/internal/console"
	"a2a/internal/daemon"
	"a2a/internal/identity"
	"a2a/internal/logging"
	"a2a/internal/peerbook"
	"a2a/internal/transport"
)

// Options configures one daemon process.
type Options struct {
	Identity string
	Room     string
	Join     string
	// Stdout receives the chat transcript; nil means os.Stdout.
	Stdout io.Writer
}

// Run starts a chat session and blocks until it stops. SIGINT and SIGTERM
// end the session cleanly.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := logging.RunLogPath(cfg.LogDir(), runID)
	logger, err := logging.NewFromConfig(cfg, logPath, uuid.NewString())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.LogDir(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update daemon.log link: %v\n", err)
	}
	logging.PruneRunLogs(logger, cfg.LogDir(), cfg.Logging.RetentionDays, logPath)

	identities := identity.NewStore(cfg.IdentitiesDir())
	self, err := identities.LoadOrCreate(opts.Identity)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	var peers daemon.PeerBook
	if cfg.Peerbook.Enabled {
		book, err := peerbook.Open(signalCtx, cfg.PeerbookPath())
		if err != nil {
			logging.WarnWithContext(logger, "peer book unavailable", "peerbook_open_failed",
				logging.String("path", cfg.PeerbookPath()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "peers will not be remembered for this run"),
				logging.String(logging.FieldErrorHint, "delete the peer book file to reset it"))
		} else {
			defer book.Close()
			peers = book
		}
	}

	node, err := transport.New(transport.Options{
		Key:            self.Key,
		ListenAddr:     cfg.Transport.ListenAddr,
		AdvertiseAddrs: cfg.Transport.AdvertiseAddrs,
		DialTimeout:    cfg.DialTimeout(),
		QueueSize:      cfg.Transport.OutboundQueue,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", daemon.ErrTransportInit, err)
	}
	defer node.Close()
	if err := node.Start(signalCtx); err != nil {
		return fmt.Errorf("%w: %v", daemon.ErrTransportInit, err)
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	room := opts.Room
	if room == "" {
		room = cfg.Room.Default
	}

	d, err := daemon.New(daemon.Options{
		Identities:    identities,
		Transport:     node,
		Peers:         peers,
		DataDir:       cfg.Paths.DataDir,
		Identity:      self.Name,
		Room:          room,
		Join:          opts.Join,
		OnlineTimeout: cfg.OnlineTimeout(),
		MaxLineBytes:  cfg.IPC.MaxLineBytes,
		MaxBootstrap:  cfg.Peerbook.MaxBootstrap,
		Printer:       console.New(stdout),
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	return d.Run(signalCtx)
}

// ensureCurrentLogPointer points daemon.log at the current run's log.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "daemon.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
