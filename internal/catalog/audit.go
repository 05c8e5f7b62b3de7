package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

// AuditEntry is one recorded dashboard mutation.
type AuditEntry struct {
	ID        int64
	RequestID string
	Action    string
	Resource  string
	Result    string
	Details   string
	CreatedAt int64
}

// Audit appends an entry to the audit log.
func (s *Store) Audit(e *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	res, err := s.db.Exec(`
	INSERT INTO audit_log (request_id, action, resource, result, details, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Action,
		sql.NullString{String: e.Resource, Valid: e.Resource != ""},
		e.Result,
		sql.NullString{String: e.Details, Valid: e.Details != ""},
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	e.ID, _ = res.LastInsertId()
	return nil
}

// RecentAudit returns the latest entries, newest first.
func (s *Store) RecentAudit(limit int) ([]*AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
	SELECT id, request_id, action, resource, result, details, created_at
	FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*AuditEntry
	for rows.Next() {
		e := &AuditEntry{}
		var resource, details sql.NullString
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Action, &resource, &e.Result, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Resource = resource.String
		e.Details = details.String
		out = append(out, e)
	}
	return out, rows.Err()
}
