package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create runs",
		SQL: `
			CREATE TABLE runs (
				id          TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL,
				run_id      TEXT NOT NULL DEFAULT '',
				state       TEXT NOT NULL,
				status      TEXT NOT NULL DEFAULT '',
				polls       INTEGER NOT NULL DEFAULT 0,
				duration_ms INTEGER NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_runs_created ON runs (created_at);
			CREATE INDEX idx_runs_session ON runs (session_id);
		`,
	},
}
