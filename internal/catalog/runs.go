package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
)

// Run statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is a catalogued run.
type Run struct {
	ID          string
	Mission     string
	Provider    string
	Model       string
	Status      string
	Error       string
	CreatedAt   int64 // unix ms
	UpdatedAt   int64 // unix ms
	CompletedAt int64 // unix ms, 0 = not completed
}

// RunFilter for filtering runs
type RunFilter struct {
	Status string
	Limit  int
}

const runColumns = `id, mission, provider, model, status, error, created_at, updated_at, completed_at`

// SaveRun inserts or updates a run
func (s *Store) SaveRun(r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if r.CreatedAt == 0 {
		r.CreatedAt = now
	}
	if r.UpdatedAt == 0 {
		r.UpdatedAt = now
	}
	if r.Status == "" {
		r.Status = StatusPending
	}

	query := `INSERT OR REPLACE INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query,
		r.ID, r.Mission, r.Provider,
		sql.NullString{String: r.Model, Valid: r.Model != ""},
		r.Status,
		sql.NullString{String: r.Error, Valid: r.Error != ""},
		r.CreatedAt, r.UpdatedAt,
		sql.NullInt64{Int64: r.CompletedAt, Valid: r.CompletedAt != 0},
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	r := &Run{}
	var model, errMsg sql.NullString
	var completedAt sql.NullInt64
	if err := row.Scan(&r.ID, &r.Mission, &r.Provider, &model, &r.Status, &errMsg,
		&r.CreatedAt, &r.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	r.Model = model.String
	r.Error = errMsg.String
	r.CompletedAt = completedAt.Int64
	return r, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, perrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// MarkRunning flips a run to running.
func (s *Store) MarkRunning(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		StatusRunning, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return requireRow(res, id)
}

// CompleteRun records the final status. An empty errMsg means success.
func (s *Store) CompleteRun(id, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := StatusCompleted
	if errMsg != "" {
		status = StatusFailed
	}
	now := time.Now().UnixMilli()
	res, err := s.db.Exec(`UPDATE runs SET status = ?, error = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		status, sql.NullString{String: errMsg, Valid: errMsg != ""}, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, perrors.ErrNotFound)
	}
	return nil
}

// ListRuns retrieves runs matching the filter, newest first.
func (s *Store) ListRuns(f RunFilter) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Statuses maps run id to status for every catalogued run.
func (s *Store) Statuses() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, status FROM runs`)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		out[id] = status
	}
	return out, rows.Err()
}

// FailStuckRuns marks pending and running runs as failed (startup recovery).
// Detached runs do not survive a restart.
func (s *Store) FailStuckRuns() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	res, err := s.db.Exec(`
	UPDATE runs
	SET status = 'failed', error = 'interrupted_by_restart', completed_at = ?, updated_at = ?
	WHERE status IN ('pending', 'running')
	`, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stuck runs: %w", err)
	}
	return res.RowsAffected()
}

// RunRetention deletes finished runs and audit entries older than maxAge.
// Run directories on disk are left alone.
func (s *Store) RunRetention(ctx context.Context, maxAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM runs WHERE completed_at > 0 AND completed_at < ?", cutoff); err != nil {
		return fmt.Errorf("failed to delete old runs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_log WHERE created_at < ?", cutoff); err != nil {
		return fmt.Errorf("failed to delete old audit entries: %w", err)
	}
	return nil
}
