package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/soyeahso/mmassist/internal/hooks"
	"github.com/soyeahso/mmassist/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- DB/Migration tests ---

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)

	var name string
	require.NoError(t, db.sql.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='runs'",
	).Scan(&name))
	assert.Equal(t, "runs", name)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.migrate())

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestOpen_FileUsesWAL(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var mode string
	require.NoError(t, db.sql.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")

	db, err := Open(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, NewJournal(db).Record(context.Background(), RunRecord{SessionID: "s1", State: "completed"}))
	require.NoError(t, db.Close())

	db, err = Open(path, testLogger())
	require.NoError(t, err)
	defer db.Close()

	runs, err := NewJournal(db).Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

// --- Journal tests ---

func TestJournal_RecordAndRecent(t *testing.T) {
	j := NewJournal(testDB(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, state := range []string{"completed", "failed", "timed_out"} {
		require.NoError(t, j.Record(ctx, RunRecord{
			SessionID:  "thread_1",
			RunID:      "run_" + state,
			State:      state,
			Status:     state,
			Polls:      i + 1,
			DurationMs: int64(100 * (i + 1)),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run_timed_out", runs[0].RunID)
	assert.Equal(t, 3, runs[0].Polls)
	assert.Equal(t, int64(300), runs[0].DurationMs)
	assert.Equal(t, base.Add(2*time.Minute), runs[0].CreatedAt)
	assert.NotEmpty(t, runs[0].ID)
	assert.Equal(t, "run_failed", runs[1].RunID)
}

func TestJournal_RecentEmpty(t *testing.T) {
	runs, err := NewJournal(testDB(t)).Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestJournal_CountByState(t *testing.T) {
	j := NewJournal(testDB(t))
	ctx := context.Background()
	for _, state := range []string{"completed", "completed", "failed"} {
		require.NoError(t, j.Record(ctx, RunRecord{SessionID: "s", State: state}))
	}

	counts, err := j.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"completed": 2, "failed": 1}, counts)
}

func TestJournal_RecordsAfterRunHook(t *testing.T) {
	j := NewJournal(testDB(t))
	m := hooks.NewManager(testLogger())
	j.Subscribe(m)
	assert.Equal(t, 1, m.Count(hooks.EventAfterRun))

	m.Emit(context.Background(), hooks.EventAfterRun, map[string]any{
		"sessionId":  "thread_9",
		"runId":      "run_9",
		"state":      "completed",
		"status":     "completed",
		"polls":      4,
		"durationMs": int64(1234),
	})

	runs, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "thread_9", runs[0].SessionID)
	assert.Equal(t, "run_9", runs[0].RunID)
	assert.Equal(t, "completed", runs[0].State)
	assert.Equal(t, 4, runs[0].Polls)
	assert.Equal(t, int64(1234), runs[0].DurationMs)
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(3), asInt64(3))
	assert.Equal(t, int64(3), asInt64(int64(3)))
	assert.Equal(t, int64(3), asInt64(float64(3)))
	assert.Equal(t, int64(0), asInt64("3"))
	assert.Equal(t, int64(0), asInt64(nil))
}
