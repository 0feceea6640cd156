package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// consoleHandler writes one header line per record followed by indented
// fields. Info and above show a curated, labelled subset; debug shows every
// field under its raw key.
type consoleHandler struct {
	out    *consoleOutput
	fields []kv
	group  string
}

// consoleOutput is shared by every handler derived from one root.
type consoleOutput struct {
	mu        sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
}

type kv struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{out: &consoleOutput{w: w, level: level, addSource: addSource}}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.out.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	fields := slices.Clone(h.fields)
	for _, attr := range attrs {
		fields = appendFlat(fields, h.group, attr)
	}
	return &consoleHandler{out: h.out, fields: fields, group: h.group}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &consoleHandler{out: h.out, fields: slices.Clip(h.fields), group: joinKey(h.group, name)}
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := slices.Clone(h.fields)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFlat(fields, h.group, attr)
		return true
	})
	fields = lastWins(fields)

	subject, fields := takeSubject(fields)

	var buf bytes.Buffer
	buf.WriteString(formatTimestamp(record.Time))
	buf.WriteByte(' ')
	fmt.Fprintf(&buf, "%-5s", levelLabel(record.Level))
	subject.write(&buf)
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)
	if h.out.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			buf.WriteString(" (")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(')')
		}
	}
	buf.WriteByte('\n')

	if record.Level < slog.LevelInfo {
		for _, f := range fields {
			buf.WriteString("    ")
			buf.WriteString(f.key)
			buf.WriteByte('=')
			buf.WriteString(formatValue(f.value))
			buf.WriteByte('\n')
		}
	} else {
		shown, hidden := selectInfoFields(fields, infoAttrLimit)
		for _, f := range shown {
			buf.WriteString("    ")
			buf.WriteString(f.label)
			buf.WriteString(": ")
			buf.WriteString(f.value)
			buf.WriteByte('\n')
		}
		if hidden > 0 {
			fmt.Fprintf(&buf, "    (+%d more)\n", hidden)
		}
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := h.out.w.Write(buf.Bytes())
	return err
}

// lineSubject is who a record is about: the component plus, inside the
// daemon, the identity and IPC connection.
type lineSubject struct {
	component string
	identity  string
	conn      string
}

func takeSubject(fields []kv) (lineSubject, []kv) {
	var s lineSubject
	rest := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			s.component = strings.TrimSpace(attrString(f.value))
		case FieldIdentity:
			s.identity = strings.TrimSpace(attrString(f.value))
		case FieldConnID:
			s.conn = strings.TrimSpace(attrString(f.value))
		default:
			rest = append(rest, f)
		}
	}
	return s, rest
}

// write renders " [component] @identity conn#N: " or the parts present.
func (s lineSubject) write(buf *bytes.Buffer) {
	if s.component != "" {
		buf.WriteString(" [")
		buf.WriteString(s.component)
		buf.WriteByte(']')
	}
	if s.identity != "" {
		buf.WriteString(" @")
		buf.WriteString(s.identity)
	}
	if s.conn != "" {
		buf.WriteString(" conn#")
		buf.WriteString(s.conn)
	}
	if s.identity != "" || s.conn != "" {
		buf.WriteString(": ")
		return
	}
	buf.WriteByte(' ')
}

func appendFlat(dst []kv, prefix string, attr slog.Attr) []kv {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() != slog.KindGroup {
		return append(dst, kv{key: joinKey(prefix, attr.Key), value: value})
	}
	inner := prefix
	if attr.Key != "" {
		inner = joinKey(prefix, attr.Key)
	}
	for _, member := range value.Group() {
		dst = appendFlat(dst, inner, member)
	}
	return dst
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

// lastWins drops empty keys and collapses repeated keys onto the first
// position with the latest value.
func lastWins(fields []kv) []kv {
	index := make(map[string]int, len(fields))
	out := make([]kv, 0, len(fields))
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
