package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
)

// Postgres stores each session as a JSONB state document.
type Postgres struct {
	DB *database.PostgresDB
}

func NewPostgres(db *database.PostgresDB) *Postgres {
	return &Postgres{DB: db}
}

func (p *Postgres) Create(ctx context.Context, s *research.Session) error {
	state, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
		INSERT INTO research_sessions (id, topic, stage, state, report, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = p.DB.Pool.Exec(ctx, query, s.ID, s.Topic, string(s.Stage), state, s.Report, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id uuid.UUID) (*research.Session, error) {
	var state []byte
	err := p.DB.Pool.QueryRow(ctx, `SELECT state FROM research_sessions WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s research.Session
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	return &s, nil
}

func (p *Postgres) Save(ctx context.Context, s *research.Session) error {
	state, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
		UPDATE research_sessions
		SET stage = $2, state = $3, report = $4, updated_at = $5
		WHERE id = $1
	`
	tag, err := p.DB.Pool.Exec(ctx, query, s.ID, string(s.Stage), state, s.Report, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]research.Session, error) {
	query := `
		SELECT state
		FROM research_sessions
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := p.DB.Pool.Query(ctx, query, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []research.Session
	for rows.Next() {
		var state []byte
		if err := rows.Scan(&state); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		var s research.Session
		if err := json.Unmarshal(state, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return sessions, nil
}

func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.DB.Pool.Exec(ctx, `DELETE FROM research_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (p *Postgres) AppendLog(ctx context.Context, sessionID uuid.UUID, entry LogEntry) error {
	query := `
		INSERT INTO research_logs (session_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := p.DB.Pool.Exec(ctx, query, sessionID, entry.Timestamp, entry.Level, entry.Message, []byte(entry.Metadata))
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

func (p *Postgres) Logs(ctx context.Context, sessionID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE session_id = $1
		ORDER BY id ASC
	`
	rows, err := p.DB.Pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return logs, nil
}
