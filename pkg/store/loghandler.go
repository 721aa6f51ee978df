package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
)

// LogHandler is a slog.Handler that appends records to a session's log. Records
// are also passed to Next when set.
type LogHandler struct {
	Store     Store
	SessionID uuid.UUID
	Next      slog.Handler
	attrs     []slog.Attr
}

func NewLogHandler(store Store, sessionID uuid.UUID, next slog.Handler) *LogHandler {
	return &LogHandler{
		Store:     store,
		SessionID: sessionID,
		Next:      next,
	}
}

func (h *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true // Log everything
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		metaJSON = []byte("{}")
	}

	// Logs persist even if the request context is cancelled.
	err = h.Store.AppendLog(context.Background(), h.SessionID, LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Metadata:  metaJSON,
	})

	if h.Next != nil && h.Next.Enabled(ctx, r.Level) {
		if nextErr := h.Next.Handle(ctx, r); nextErr != nil && err == nil {
			err = nextErr
		}
	}
	return err
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	if h.Next != nil {
		clone.Next = h.Next.WithAttrs(attrs)
	}
	return &clone
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	return h
}
