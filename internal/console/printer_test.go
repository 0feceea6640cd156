package console_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"a2a/internal/bus"
	"a2a/internal/chat"
	"a2a/internal/console"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 14, 5, 9, 0, time.Local)
}

func TestMessageFormatting(t *testing.T) {
	var buf bytes.Buffer
	p := console.New(&buf, console.WithClock(fixedClock))

	msg := chat.Message{FromName: "brave-otter", FromID: "0123456789abcdef", Content: "hello room"}
	p.Message(msg, chat.Peer)

	want := "[14:05:09] <brave-otter@01234567> hello room\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestSelfMessageColoredOnlyWhenEnabled(t *testing.T) {
	var plain, colored bytes.Buffer
	msg := chat.Message{FromName: "me", FromID: "abc", Content: "hi"}

	console.New(&plain, console.WithClock(fixedClock)).Message(msg, chat.Self)
	console.New(&colored, console.WithClock(fixedClock), console.WithColor(true)).Message(msg, chat.Self)

	if strings.Contains(plain.String(), "\x1b[") {
		t.Fatalf("buffer output should be plain: %q", plain.String())
	}
	if !strings.Contains(colored.String(), "\x1b[32m") {
		t.Fatalf("expected green for self message: %q", colored.String())
	}
}

func TestSystemAndTicket(t *testing.T) {
	var buf bytes.Buffer
	p := console.New(&buf, console.WithClock(fixedClock))
	p.System("peer connected: %s...", "abcd1234")
	p.Ticket("token123")

	out := buf.String()
	if !strings.HasPrefix(out, "[14:05:09] ** peer connected: abcd1234... **\n") {
		t.Fatalf("unexpected system line in %q", out)
	}
	if !strings.Contains(out, "  Ticket: token123\n") {
		t.Fatalf("missing ticket line in %q", out)
	}
}

func TestBanner(t *testing.T) {
	var buf bytes.Buffer
	var id bus.PeerID
	id[0] = 0xab
	console.New(&buf).Banner("calm-heron", "claude-a2a-global", id)

	out := buf.String()
	for _, want := range []string{"Identity: calm-heron", "Room: claude-a2a-global", "Node ID: ab00000000000000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("banner missing %q:\n%s", want, out)
		}
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if console.ShouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}
