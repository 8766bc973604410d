package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

type Incident struct {
	ID          string     `json:"id"`
	RegNo       string     `json:"reg_no"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	ReporterID  string     `json:"reporter_id"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Version     int        `json:"version"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

type IncidentFilter struct {
	Search         string
	Status         string
	Severity       string
	AssignedUserID string
	ReporterUserID string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

type IncidentsStore interface {
	CreateIncident(ctx context.Context, incident *Incident, regFormat string) (string, error)
	UpdateIncident(ctx context.Context, incident *Incident, expectedVersion int) error
	SoftDeleteIncident(ctx context.Context, id string) error
	GetIncident(ctx context.Context, id string) (*Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)
}

type incidentsStore struct {
	db *DB
}

func NewIncidentsStore(db *DB) IncidentsStore {
	return &incidentsStore{db: db}
}

func (s *incidentsStore) CreateIncident(ctx context.Context, incident *Incident, regFormat string) (string, error) {
	if incident.ID == "" {
		incident.ID = uuid.Must(uuid.NewV4()).String()
	}
	if incident.Version <= 0 {
		incident.Version = 1
	}
	if strings.TrimSpace(incident.Status) == "" {
		incident.Status = "open"
	}
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(incident.RegNo) == "" {
		seq, err := s.nextIncidentSeqTx(ctx, tx, now.Year())
		if err != nil {
			tx.Rollback()
			return "", err
		}
		incident.RegNo = buildIncidentRegNo(regFormat, now.Year(), seq)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO incidents(id, reg_no, title, description, severity, status, reporter_id, assignee_id, created_at, updated_at, version, deleted_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,NULL)`,
		incident.ID, incident.RegNo, strings.TrimSpace(incident.Title), incident.Description,
		strings.ToLower(strings.TrimSpace(incident.Severity)), strings.ToLower(strings.TrimSpace(incident.Status)),
		incident.ReporterID, nullableStringPtr(incident.AssigneeID), now, now, incident.Version); err != nil {
		tx.Rollback()
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	incident.CreatedAt = now
	incident.UpdatedAt = now
	return incident.ID, nil
}

func (s *incidentsStore) UpdateIncident(ctx context.Context, incident *Incident, expectedVersion int) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET title=?, description=?, severity=?, status=?, assignee_id=?, updated_at=?, version=version+1
		WHERE id=? AND version=? AND deleted_at IS NULL`,
		strings.TrimSpace(incident.Title), incident.Description,
		strings.ToLower(strings.TrimSpace(incident.Severity)), strings.ToLower(strings.TrimSpace(incident.Status)),
		nullableStringPtr(incident.AssigneeID), now, incident.ID, expectedVersion)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	incident.Version = expectedVersion + 1
	incident.UpdatedAt = now
	return nil
}

func (s *incidentsStore) SoftDeleteIncident(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE incidents SET deleted_at=?, updated_at=?, version=version+1 WHERE id=? AND deleted_at IS NULL`,
		now, now, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *incidentsStore) GetIncident(ctx context.Context, id string) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, reg_no, title, description, severity, status, reporter_id, assignee_id, created_at, updated_at, version, deleted_at
		FROM incidents WHERE id=?`, id)
	var inc Incident
	var assignee sql.NullString
	var deleted sql.NullTime
	if err := row.Scan(&inc.ID, &inc.RegNo, &inc.Title, &inc.Description, &inc.Severity, &inc.Status, &inc.ReporterID, &assignee, &inc.CreatedAt, &inc.UpdatedAt, &inc.Version, &deleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if assignee.Valid {
		inc.AssigneeID = &assignee.String
	}
	if deleted.Valid {
		inc.DeletedAt = &deleted.Time
	}
	return &inc, nil
}

func (s *incidentsStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	var clauses []string
	var args []any
	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.Severity != "" {
		clauses = append(clauses, "severity=?")
		args = append(args, filter.Severity)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR description LIKE ? OR reg_no LIKE ?)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q, q)
	}
	if filter.AssignedUserID != "" {
		clauses = append(clauses, "assignee_id=?")
		args = append(args, filter.AssignedUserID)
	}
	if filter.ReporterUserID != "" {
		clauses = append(clauses, "reporter_id=?")
		args = append(args, filter.ReporterUserID)
	}
	query := `SELECT id, reg_no, title, description, severity, status, reporter_id, assignee_id, created_at, updated_at, version, deleted_at FROM incidents`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Incident
	for rows.Next() {
		var inc Incident
		var assignee sql.NullString
		var deleted sql.NullTime
		if err := rows.Scan(&inc.ID, &inc.RegNo, &inc.Title, &inc.Description, &inc.Severity, &inc.Status, &inc.ReporterID, &assignee, &inc.CreatedAt, &inc.UpdatedAt, &inc.Version, &deleted); err != nil {
			return nil, err
		}
		if assignee.Valid {
			inc.AssigneeID = &assignee.String
		}
		if deleted.Valid {
			inc.DeletedAt = &deleted.Time
		}
		res = append(res, inc)
	}
	return res, rows.Err()
}

func (s *incidentsStore) nextIncidentSeqTx(ctx context.Context, tx *Tx, year int) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO incident_reg_counters(year, seq)
		VALUES(?,1)
		ON CONFLICT (year)
		DO UPDATE SET seq = incident_reg_counters.seq + 1
		RETURNING seq
	`, year).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

var seqToken = regexp.MustCompile(`\{seq(?::(\d+))?\}`)

func buildIncidentRegNo(format string, year int, seq int64) string {
	if strings.TrimSpace(format) == "" {
		format = "INC-{year}-{seq:05}"
	}
	out := strings.ReplaceAll(format, "{year}", fmt.Sprintf("%d", year))
	out = seqToken.ReplaceAllStringFunc(out, func(token string) string {
		m := seqToken.FindStringSubmatch(token)
		if len(m) == 2 && m[1] != "" {
			width := 0
			_, _ = fmt.Sscanf(m[1], "%d", &width)
			if width > 0 {
				return fmt.Sprintf("%0*d", width, seq)
			}
		}
		return fmt.Sprintf("%d", seq)
	})
	return out
}

func nullableStringPtr(s *string) any {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return *s
}
