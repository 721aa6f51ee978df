package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
)

// Runs against a real database when TEST_DATABASE_URL is set.
func TestPostgresRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgresDB(ctx, url, database.PoolOptions{MaxConns: 2})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.InitSchema(ctx))

	p := NewPostgres(db)
	s := newSession("postgres", time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, p.Create(ctx, s))
	defer p.Delete(ctx, s.ID)

	s.Stage = research.StageComplete
	s.Report = "# Done"
	require.NoError(t, p.Save(ctx, s))

	got, err := p.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, research.StageComplete, got.Stage)
	assert.Equal(t, "# Done", got.Report)
	assert.Equal(t, []string{"a", "b"}, got.CurrentQueries)

	require.NoError(t, p.AppendLog(ctx, s.ID, LogEntry{Timestamp: time.Now(), Level: "INFO", Message: "hi", Metadata: []byte(`{}`)}))
	logs, err := p.Logs(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "hi", logs[0].Message)
}
