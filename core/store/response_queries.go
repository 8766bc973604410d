package store

import (
	"context"
	"time"
)

// StaleStep is a step stuck in-progress past the staleness cutoff, joined
// with enough incident context to address a reminder.
type StaleStep struct {
	IncidentID string
	RegNo      string
	Title      string
	StepID     string
	AssignedTo string
	AssigneeID string
	ReporterID string
	UpdatedAt  time.Time
}

// ResponseQueries covers reporting-style reads that the tracker itself
// never needs.
type ResponseQueries interface {
	StaleSteps(ctx context.Context, cutoff time.Time) ([]StaleStep, error)
}

type responseQueries struct {
	db *DB
}

func NewResponseQueries(db *DB) ResponseQueries {
	return &responseQueries{db: db}
}

func (q *responseQueries) StaleSteps(ctx context.Context, cutoff time.Time) ([]StaleStep, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT s.incident_id, i.reg_no, i.title, s.step_id, s.assigned_to,
		       COALESCE(i.assignee_id, ''), i.reporter_id, s.updated_at
		FROM response_steps s
		JOIN incidents i ON i.id = s.incident_id AND i.deleted_at IS NULL
		WHERE s.status = 'in-progress' AND s.updated_at < ?
		ORDER BY s.updated_at ASC`, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []StaleStep
	for rows.Next() {
		var st StaleStep
		if err := rows.Scan(&st.IncidentID, &st.RegNo, &st.Title, &st.StepID, &st.AssignedTo, &st.AssigneeID, &st.ReporterID, &st.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}
