// Package console renders the daemon's chat transcript for a terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"a2a/internal/bus"
	"a2a/internal/chat"
)

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
	ansiGreen = "\x1b[32m"
	ansiCyan  = "\x1b[36m"
	ansiYel   = "\x1b[33m"
)

const (
	rule         = "══════════════════════════════════════════════════════════"
	shortIDLen   = 8
	clockLayout  = "15:04:05"
	bannerTitle  = "  a2a - agent-to-agent chat"
	ticketFooter = "(Share this to let others join)"
)

// Printer writes transcript lines. It is safe for concurrent use.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	now   func() time.Time
}

// Option customizes a Printer.
type Option func(*Printer)

// WithColor forces colour on or off.
func WithColor(enabled bool) Option {
	return func(p *Printer) { p.color = enabled }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Printer) { p.now = now }
}

// New returns a Printer for w. Colour defaults to on for terminals unless
// NO_COLOR is set.
func New(w io.Writer, opts ...Option) *Printer {
	p := &Printer{w: w, color: ShouldColorize(w), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ShouldColorize reports whether w is a terminal that accepts ANSI colour.
func ShouldColorize(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Banner announces the identity and room at startup.
func (p *Printer) Banner(name, room string, self bus.PeerID) {
	p.lines(
		p.paint(ansiBold, rule),
		p.paint(ansiBold, bannerTitle),
		"  Identity: "+p.paint(ansiYel+ansiBold, name),
		"  Room: "+p.paint(ansiCyan, room),
		p.paint(ansiBold, rule),
		"",
		"  Node ID: "+p.paint(ansiDim, self.String()[:16]),
	)
}

// Ticket prints the token other peers use to join.
func (p *Printer) Ticket(token string) {
	p.lines(
		"",
		"  "+p.paint(ansiGreen+ansiBold, "Ticket")+": "+token,
		"  "+p.paint(ansiDim, ticketFooter),
		"",
	)
}

// System prints a status line.
func (p *Printer) System(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.lines(p.paint(ansiDim, fmt.Sprintf("[%s] ** %s **", p.clock(), msg)))
}

// Message prints a chat line. Messages from this peer are highlighted.
func (p *Printer) Message(msg chat.Message, origin chat.Origin) {
	sender := fmt.Sprintf("<%s@%s>", msg.FromName, shortID(msg.FromID))
	if origin == chat.Self {
		sender = p.paint(ansiGreen+ansiBold, sender)
	} else {
		sender = p.paint(ansiCyan, sender)
	}
	p.lines(p.paint(ansiDim, "["+p.clock()+"]") + " " + sender + " " + msg.Content)
}

func (p *Printer) clock() string {
	return p.now().Format(clockLayout)
}

func (p *Printer) paint(code, text string) string {
	if !p.color || text == "" {
		return text
	}
	return code + text + ansiReset
}

func (p *Printer) lines(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.w, strings.Join(lines, "\n")+"\n")
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}
