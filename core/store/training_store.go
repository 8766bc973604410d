package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

type TrainingModule struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Summary   string    `json:"summary"`
	Content   string    `json:"content"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TrainingCompletion struct {
	ModuleID    string    `json:"module_id"`
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type TrainingStore interface {
	CreateModule(ctx context.Context, m *TrainingModule) error
	UpdateModule(ctx context.Context, m *TrainingModule) error
	DeleteModule(ctx context.Context, id string) error
	GetModule(ctx context.Context, id string) (*TrainingModule, error)
	ListModules(ctx context.Context, category string) ([]TrainingModule, error)
	MarkCompleted(ctx context.Context, moduleID, userID string) error
	CompletionsForUser(ctx context.Context, userID string) ([]TrainingCompletion, error)
}

type trainingStore struct {
	db *DB
}

func NewTrainingStore(db *DB) TrainingStore {
	return &trainingStore{db: db}
}

func (s *trainingStore) CreateModule(ctx context.Context, m *TrainingModule) error {
	if m.ID == "" {
		m.ID = uuid.Must(uuid.NewV4()).String()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_modules(id, title, category, summary, content, position, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		m.ID, strings.TrimSpace(m.Title), m.Category, m.Summary, m.Content, m.Position, now, now)
	return err
}

func (s *trainingStore) UpdateModule(ctx context.Context, m *TrainingModule) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE training_modules SET title=?, category=?, summary=?, content=?, position=?, updated_at=?
		WHERE id=?`,
		strings.TrimSpace(m.Title), m.Category, m.Summary, m.Content, m.Position, now, m.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	m.UpdatedAt = now
	return nil
}

func (s *trainingStore) DeleteModule(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM training_completions WHERE module_id=?`, id); err != nil {
		tx.Rollback()
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM training_modules WHERE id=?`, id)
	if err != nil {
		tx.Rollback()
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		tx.Rollback()
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *trainingStore) GetModule(ctx context.Context, id string) (*TrainingModule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, category, summary, content, position, created_at, updated_at
		FROM training_modules WHERE id=?`, id)
	var m TrainingModule
	if err := row.Scan(&m.ID, &m.Title, &m.Category, &m.Summary, &m.Content, &m.Position, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (s *trainingStore) ListModules(ctx context.Context, category string) ([]TrainingModule, error) {
	query := `SELECT id, title, category, summary, content, position, created_at, updated_at FROM training_modules`
	var args []any
	if category != "" {
		query += " WHERE category=?"
		args = append(args, category)
	}
	query += " ORDER BY position ASC, title ASC"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []TrainingModule
	for rows.Next() {
		var m TrainingModule
		if err := rows.Scan(&m.ID, &m.Title, &m.Category, &m.Summary, &m.Content, &m.Position, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// MarkCompleted is idempotent: completing a module twice keeps the first
// completion timestamp.
func (s *trainingStore) MarkCompleted(ctx context.Context, moduleID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_completions(module_id, user_id, completed_at)
		VALUES(?,?,?)
		ON CONFLICT (module_id, user_id) DO NOTHING`,
		moduleID, userID, time.Now().UTC())
	return err
}

func (s *trainingStore) CompletionsForUser(ctx context.Context, userID string) ([]TrainingCompletion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT module_id, user_id, completed_at FROM training_completions WHERE user_id=?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []TrainingCompletion
	for rows.Next() {
		var c TrainingCompletion
		if err := rows.Scan(&c.ModuleID, &c.UserID, &c.CompletedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
