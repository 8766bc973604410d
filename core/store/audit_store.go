package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

type AuditRecord struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditFilter struct {
	Action string
	User   string
	Since  time.Time
	Limit  int
}

type AuditStore interface {
	Log(ctx context.Context, username, action, details string)
	List(ctx context.Context, filter AuditFilter) ([]AuditRecord, error)
}

type auditStore struct {
	db *DB
}

func NewAuditStore(db *DB) AuditStore {
	return &auditStore{db: db}
}

// Log is fire-and-forget: audit failures never fail the calling operation.
func (s *auditStore) Log(ctx context.Context, username, action, details string) {
	id := uuid.Must(uuid.NewV4()).String()
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO audit_log(id, username, action, details, created_at) VALUES(?,?,?,?,?)`,
		id, strings.TrimSpace(username), strings.TrimSpace(action), details, time.Now().UTC())
}

func (s *auditStore) List(ctx context.Context, filter AuditFilter) ([]AuditRecord, error) {
	var clauses []string
	var args []any
	if strings.TrimSpace(filter.Action) != "" {
		clauses = append(clauses, "action LIKE ?")
		args = append(args, filter.Action+"%")
	}
	if strings.TrimSpace(filter.User) != "" {
		clauses = append(clauses, "username=?")
		args = append(args, strings.TrimSpace(filter.User))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	query := `SELECT id, username, action, details, created_at FROM audit_log`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.Action, &rec.Details, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
