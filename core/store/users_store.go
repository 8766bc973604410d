package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

type User struct {
	ID                    string     `json:"id"`
	Username              string     `json:"username"`
	FullName              string     `json:"full_name"`
	Email                 string     `json:"email"`
	PasswordHash          string     `json:"-"`
	Salt                  string     `json:"-"`
	Active                bool       `json:"active"`
	RequirePasswordChange bool       `json:"require_password_change"`
	LastLoginAt           *time.Time `json:"last_login_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type UsersStore interface {
	Create(ctx context.Context, user *User, roles []string) (string, error)
	Update(ctx context.Context, user *User, roles []string) error
	Get(ctx context.Context, id string) (*User, []string, error)
	FindByUsername(ctx context.Context, username string) (*User, []string, error)
	List(ctx context.Context) ([]User, error)
	Roles(ctx context.Context, userID string) ([]string, error)
	Count(ctx context.Context) (int, error)
}

type usersStore struct {
	db *DB
}

func NewUsersStore(db *DB) UsersStore {
	return &usersStore{db: db}
}

func (s *usersStore) Create(ctx context.Context, user *User, roles []string) (string, error) {
	if user.ID == "" {
		user.ID = uuid.Must(uuid.NewV4()).String()
	}
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users(id, username, full_name, email, password_hash, salt, active, require_password_change, last_login_at, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		user.ID, strings.ToLower(strings.TrimSpace(user.Username)), strings.TrimSpace(user.FullName), strings.TrimSpace(user.Email),
		user.PasswordHash, user.Salt, boolToInt(user.Active), boolToInt(user.RequirePasswordChange), nullableTime(user.LastLoginAt), now, now); err != nil {
		tx.Rollback()
		return "", err
	}
	for _, role := range normalizeRoles(roles) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles(user_id, role) VALUES(?,?)`, user.ID, role); err != nil {
			tx.Rollback()
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return user.ID, nil
}

func (s *usersStore) Update(ctx context.Context, user *User, roles []string) error {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET full_name=?, email=?, password_hash=?, salt=?, active=?, require_password_change=?, last_login_at=?, updated_at=?
		WHERE id=?`,
		strings.TrimSpace(user.FullName), strings.TrimSpace(user.Email), user.PasswordHash, user.Salt,
		boolToInt(user.Active), boolToInt(user.RequirePasswordChange), nullableTime(user.LastLoginAt), now, user.ID); err != nil {
		tx.Rollback()
		return err
	}
	if roles != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id=?`, user.ID); err != nil {
			tx.Rollback()
			return err
		}
		for _, role := range normalizeRoles(roles) {
			if _, err := tx.ExecContext(ctx, `INSERT INTO user_roles(user_id, role) VALUES(?,?)`, user.ID, role); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	user.UpdatedAt = now
	return nil
}

func (s *usersStore) Get(ctx context.Context, id string) (*User, []string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, full_name, email, password_hash, salt, active, require_password_change, last_login_at, created_at, updated_at
		FROM users WHERE id=?`, id)
	return s.scanUserWithRoles(ctx, row)
}

func (s *usersStore) FindByUsername(ctx context.Context, username string) (*User, []string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, full_name, email, password_hash, salt, active, require_password_change, last_login_at, created_at, updated_at
		FROM users WHERE username=?`, strings.ToLower(strings.TrimSpace(username)))
	return s.scanUserWithRoles(ctx, row)
}

func (s *usersStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, full_name, email, password_hash, salt, active, require_password_change, last_login_at, created_at, updated_at
		FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		var u User
		var active, reqChange int
		var lastLogin sql.NullTime
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.PasswordHash, &u.Salt, &active, &reqChange, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.Active = active == 1
		u.RequirePasswordChange = reqChange == 1
		if lastLogin.Valid {
			u.LastLoginAt = &lastLogin.Time
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s *usersStore) Roles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role FROM user_roles WHERE user_id=? ORDER BY role ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *usersStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *usersStore) scanUserWithRoles(ctx context.Context, row *sql.Row) (*User, []string, error) {
	var u User
	var active, reqChange int
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.PasswordHash, &u.Salt, &active, &reqChange, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	u.Active = active == 1
	u.RequirePasswordChange = reqChange == 1
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	roles, err := s.Roles(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return &u, roles, nil
}

func normalizeRoles(roles []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, role := range roles {
		clean := strings.ToLower(strings.TrimSpace(role))
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
