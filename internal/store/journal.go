package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/mmassist/internal/hooks"
)

// RunRecord is one finished assistant run.
type RunRecord struct {
	ID         string
	SessionID  string
	RunID      string
	State      string
	Status     string
	Polls      int
	DurationMs int64
	CreatedAt  time.Time
}

// Journal records assistant runs for later inspection. It never feeds
// state back into the bridge.
type Journal struct {
	db  *DB
	now func() time.Time
}

// NewJournal creates a journal on the given database.
func NewJournal(db *DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Record stores a run. Missing ID and CreatedAt are filled in.
func (j *Journal) Record(ctx context.Context, r RunRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = j.now()
	}
	_, err := j.db.sql.ExecContext(ctx,
		`INSERT INTO runs (id, session_id, run_id, state, status, polls, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.RunID, r.State, r.Status, r.Polls, r.DurationMs,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.sql.QueryContext(ctx,
		`SELECT id, session_id, run_id, state, status, polls, duration_ms, created_at
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.RunID, &r.State, &r.Status, &r.Polls, &r.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByState returns how many runs ended in each state.
func (j *Journal) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.sql.QueryContext(ctx, `SELECT state, COUNT(*) FROM runs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scanning run count: %w", err)
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// Subscribe registers the journal for after_run hook events.
func (j *Journal) Subscribe(m *hooks.Manager) {
	m.On(hooks.EventAfterRun, "journal", j.onAfterRun)
}

func (j *Journal) onAfterRun(ctx context.Context, p hooks.Payload) error {
	return j.Record(context.WithoutCancel(ctx), RunRecord{
		SessionID:  p.String("sessionId"),
		RunID:      p.String("runId"),
		State:      p.String("state"),
		Status:     p.String("status"),
		Polls:      int(asInt64(p.Data["polls"])),
		DurationMs: asInt64(p.Data["durationMs"]),
	})
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
