package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// migrations are applied in order; a migration's index+1 is the schema
// version it produces. Never edit a released entry, append a new one.
var migrations = []string{
	`
	CREATE TABLE runs (
		id TEXT PRIMARY KEY,
		mission TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX idx_runs_status ON runs(status);
	CREATE INDEX idx_runs_created ON runs(created_at);
	`,
	`
	CREATE TABLE audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		action TEXT NOT NULL,
		resource TEXT,
		result TEXT NOT NULL,
		details TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX idx_audit_created ON audit_log(created_at);
	`,
}

// migrate applies pending migrations, each in its own transaction together
// with the version bump, and returns the resulting schema version.
func (s *Store) migrate() (int, error) {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return 0, fmt.Errorf("failed to create meta table: %w", err)
	}

	current, err := s.schemaVersion()
	if err != nil {
		return 0, err
	}

	for v := current + 1; v <= len(migrations); v++ {
		tx, err := s.db.Begin()
		if err != nil {
			return current, fmt.Errorf("begin migration v%d: %w", v, err)
		}
		if _, err := tx.Exec(migrations[v-1]); err != nil {
			tx.Rollback()
			return current, fmt.Errorf("failed to execute migration v%d: %w", v, err)
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', ?)`, strconv.Itoa(v)); err != nil {
			tx.Rollback()
			return current, fmt.Errorf("failed to record schema version %d: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return current, fmt.Errorf("commit migration v%d: %w", v, err)
		}
		current = v
	}
	return current, nil
}

func (s *Store) schemaVersion() (int, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid schema version %q: %w", raw, err)
	}
	return v, nil
}
