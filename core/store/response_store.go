package store

import (
	"context"
	"database/sql"
	"time"

	"safeshield/core/response"
)

// responseStore persists tracker state for core/response. Every mutation and
// its log entry land in the same transaction, so the log trail never drifts
// from the state it describes.
type responseStore struct {
	db *DB
}

func NewResponseStore(db *DB) response.Store {
	return &responseStore{db: db}
}

// LoadSteps returns the persisted state for an incident. Only steps that
// were ever written have a row; actions, evidence and logs are attached to
// their step slot even when the step row itself does not exist yet.
func (s *responseStore) LoadSteps(ctx context.Context, incidentID string) ([]response.Step, error) {
	byID := make(map[response.StepID]*response.Step)
	stepFor := func(id response.StepID) *response.Step {
		if st, ok := byID[id]; ok {
			return st
		}
		st := &response.Step{ID: id, Status: response.StatusPending}
		byID[id] = st
		return st
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step_id, status, notes, assigned_to, completed_at, version
		FROM response_steps WHERE incident_id=?`, incidentID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			id          string
			status      string
			notes       string
			assignedTo  string
			completedAt sql.NullTime
			version     int
		)
		if err := rows.Scan(&id, &status, &notes, &assignedTo, &completedAt, &version); err != nil {
			rows.Close()
			return nil, err
		}
		st := stepFor(response.StepID(id))
		st.Status = response.Status(status)
		st.Notes = notes
		st.AssignedTo = assignedTo
		st.CompletedAt = timePtr(completedAt)
		st.Version = version
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT step_id, id, description, completed, completed_at, completed_by, created_at
		FROM response_actions WHERE incident_id=?
		ORDER BY position ASC, created_at ASC, id ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			stepID      string
			a           response.Action
			completed   int
			completedAt sql.NullTime
		)
		if err := rows.Scan(&stepID, &a.ID, &a.Description, &completed, &completedAt, &a.CompletedBy, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		a.Completed = completed != 0
		a.CompletedAt = timePtr(completedAt)
		st := stepFor(response.StepID(stepID))
		st.Actions = append(st.Actions, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT step_id, id, filename, file_url, file_type, file_size, sha256, uploaded_by, uploaded_at
		FROM response_evidence WHERE incident_id=?
		ORDER BY uploaded_at ASC, id ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			stepID string
			ev     response.Evidence
		)
		if err := rows.Scan(&stepID, &ev.ID, &ev.Filename, &ev.FileURL, &ev.FileType, &ev.FileSize, &ev.SHA256, &ev.UploadedBy, &ev.UploadedAt); err != nil {
			rows.Close()
			return nil, err
		}
		st := stepFor(response.StepID(stepID))
		st.Evidence = append(st.Evidence, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT step_id, id, action, username, details, created_at
		FROM response_logs WHERE incident_id=?
		ORDER BY created_at ASC, id ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			stepID string
			entry  response.LogEntry
		)
		if err := rows.Scan(&stepID, &entry.ID, &entry.Action, &entry.User, &entry.Details, &entry.Timestamp); err != nil {
			return nil, err
		}
		st := stepFor(response.StepID(stepID))
		st.Logs = append(st.Logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	steps := make([]response.Step, 0, len(byID))
	for _, id := range response.StepOrder {
		if st, ok := byID[id]; ok {
			steps = append(steps, *st)
		}
	}
	return steps, nil
}

// SaveStep writes a step's scalar state under optimistic concurrency. A step
// that was never persisted (expectedVersion 0) is inserted with version 1;
// otherwise the row must still carry expectedVersion or ErrConflict is
// returned and nothing changes.
func (s *responseStore) SaveStep(ctx context.Context, incidentID string, step *response.Step, expectedVersion int, entry response.LogEntry) error {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if expectedVersion <= 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO response_steps(incident_id, step_id, status, notes, assigned_to, completed_at, created_at, updated_at, version)
			VALUES(?,?,?,?,?,?,?,?,1)`,
			incidentID, string(step.ID), string(step.Status), step.Notes, step.AssignedTo,
			nullableTime(step.CompletedAt), now, now); err != nil {
			tx.Rollback()
			return ErrConflict
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE response_steps SET status=?, notes=?, assigned_to=?, completed_at=?, updated_at=?, version=version+1
			WHERE incident_id=? AND step_id=? AND version=?`,
			string(step.Status), step.Notes, step.AssignedTo, nullableTime(step.CompletedAt), now,
			incidentID, string(step.ID), expectedVersion)
		if err != nil {
			tx.Rollback()
			return err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			tx.Rollback()
			return ErrConflict
		}
	}
	if err := s.insertLogTx(ctx, tx, incidentID, step.ID, entry); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// AppendAction stores a new checklist item together with its log entry.
// Position is the current item count so load order matches insertion order.
func (s *responseStore) AppendAction(ctx context.Context, incidentID string, stepID response.StepID, action response.Action, entry response.LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var position int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM response_actions WHERE incident_id=? AND step_id=?`,
		incidentID, string(stepID)).Scan(&position); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO response_actions(id, incident_id, step_id, description, completed, completed_at, completed_by, position, created_at)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		action.ID, incidentID, string(stepID), action.Description, boolToInt(action.Completed),
		nullableTime(action.CompletedAt), action.CompletedBy, position, action.CreatedAt); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.insertLogTx(ctx, tx, incidentID, stepID, entry); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// UpdateAction persists a toggled checklist item with its log entry.
func (s *responseStore) UpdateAction(ctx context.Context, incidentID string, stepID response.StepID, action response.Action, entry response.LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE response_actions SET completed=?, completed_at=?, completed_by=?
		WHERE id=? AND incident_id=? AND step_id=?`,
		boolToInt(action.Completed), nullableTime(action.CompletedAt), action.CompletedBy,
		action.ID, incidentID, string(stepID))
	if err != nil {
		tx.Rollback()
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		tx.Rollback()
		return ErrNotFound
	}
	if err := s.insertLogTx(ctx, tx, incidentID, stepID, entry); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// AppendEvidence records an uploaded file reference with its log entry.
func (s *responseStore) AppendEvidence(ctx context.Context, incidentID string, stepID response.StepID, ev response.Evidence, entry response.LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO response_evidence(id, incident_id, step_id, filename, file_url, file_type, file_size, sha256, uploaded_by, uploaded_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		ev.ID, incidentID, string(stepID), ev.Filename, ev.FileURL, ev.FileType, ev.FileSize, ev.SHA256, ev.UploadedBy, ev.UploadedAt); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.insertLogTx(ctx, tx, incidentID, stepID, entry); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// AppendLog stores a standalone log entry.
func (s *responseStore) AppendLog(ctx context.Context, incidentID string, stepID response.StepID, entry response.LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := s.insertLogTx(ctx, tx, incidentID, stepID, entry); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *responseStore) insertLogTx(ctx context.Context, tx *Tx, incidentID string, stepID response.StepID, entry response.LogEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO response_logs(id, incident_id, step_id, action, username, details, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		entry.ID, incidentID, string(stepID), entry.Action, entry.User, entry.Details, entry.Timestamp)
	return err
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

