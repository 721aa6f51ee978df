package database

import (
	"context"
	"fmt"
)

func (db *PostgresDB) InitSchema(ctx context.Context) error {
	// 1. Research Sessions Table
	sessionsQuery := `
		CREATE TABLE IF NOT EXISTS research_sessions (
			id UUID PRIMARY KEY,
			topic TEXT NOT NULL,
			stage TEXT NOT NULL,
			state JSONB NOT NULL,
			report TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	if _, err := db.Pool.Exec(ctx, sessionsQuery); err != nil {
		return fmt.Errorf("failed to create research_sessions table: %w", err)
	}

	// 2. Research Logs Table
	logsQuery := `
		CREATE TABLE IF NOT EXISTS research_logs (
			id SERIAL PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES research_sessions(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		);
	`
	if _, err := db.Pool.Exec(ctx, logsQuery); err != nil {
		return fmt.Errorf("failed to create research_logs table: %w", err)
	}

	// Indexes for faster querying
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_research_logs_session_id ON research_logs(session_id)"); err != nil {
		return fmt.Errorf("failed to create index on research_logs: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_research_sessions_created_at ON research_sessions(created_at DESC)"); err != nil {
		return fmt.Errorf("failed to create index on research_sessions: %w", err)
	}

	return nil
}
