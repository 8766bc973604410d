package auth

import "time"

type contextKey string

// SessionContextKey carries the *store.SessionRecord of the authenticated
// request through the middleware chain.
const SessionContextKey contextKey = "safeshield.session"

// Credentials is the login request payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserDTO is the account shape returned by auth and accounts endpoints.
// Password material never appears here.
type UserDTO struct {
	ID                    string     `json:"id"`
	Username              string     `json:"username"`
	FullName              string     `json:"full_name"`
	Email                 string     `json:"email"`
	Roles                 []string   `json:"roles"`
	Active                bool       `json:"active"`
	RequirePasswordChange bool       `json:"require_password_change"`
	LastLoginAt           *time.Time `json:"last_login_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}
