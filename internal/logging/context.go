package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a record for filtering (e.g. "ipc_line_rejected").
	FieldEventType = "event_type"
	// FieldErrorHint carries the next step a user should take after a failure.
	FieldErrorHint = "error_hint"
	// FieldIdentity is the identity name a daemon runs under.
	FieldIdentity = "identity"
	// FieldTopic is the hex form of a room topic.
	FieldTopic = "topic"
	// FieldPeerID is the hex form of a remote peer's public key.
	FieldPeerID = "peer_id"
	// FieldConnID identifies one accepted IPC connection within a daemon run.
	FieldConnID = "conn_id"
)

type contextKey int

const (
	identityKey contextKey = iota
	connIDKey
)

// WithIdentity stores the identity name on ctx for ContextFields.
func WithIdentity(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, identityKey, name)
}

// WithConnID stores an IPC connection id on ctx for ContextFields.
func WithConnID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, connIDKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if name, ok := ctx.Value(identityKey).(string); ok && name != "" {
		fields = append(fields, slog.String(FieldIdentity, name))
	}
	if id, ok := ctx.Value(connIDKey).(uint64); ok {
		fields = append(fields, slog.Uint64(FieldConnID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields)...)
}
