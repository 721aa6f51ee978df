// Package store keeps research sessions and their logs between requests.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-research/pkg/research"
)

var ErrNotFound = errors.New("research session not found")

// ListLimit caps the number of sessions List returns.
const ListLimit = 50

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

type Store interface {
	Create(ctx context.Context, s *research.Session) error
	Get(ctx context.Context, id uuid.UUID) (*research.Session, error)
	Save(ctx context.Context, s *research.Session) error
	// List returns sessions newest first.
	List(ctx context.Context) ([]research.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AppendLog(ctx context.Context, sessionID uuid.UUID, entry LogEntry) error
	Logs(ctx context.Context, sessionID uuid.UUID) ([]LogEntry, error)
}
