package handlers

import (
	"encoding/json"
	"net/http"

	"safeshield/core/auth"
	"safeshield/core/response"
	"safeshield/core/store"
)

const (
	SessionCookieName = "safeshield_session"
	CSRFCookieName    = "safeshield_csrf"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sessionFrom returns the authenticated session, or nil on unauthenticated
// routes.
func sessionFrom(r *http.Request) *store.SessionRecord {
	if v := r.Context().Value(auth.SessionContextKey); v != nil {
		return v.(*store.SessionRecord)
	}
	return nil
}

// actorFrom converts the session into the explicit actor the response core
// expects. The first role is carried for log context only; authorization
// happens in middleware.
func actorFrom(sr *store.SessionRecord) response.Actor {
	actor := response.Actor{ID: sr.UserID, Name: sr.Username}
	if len(sr.Roles) > 0 {
		actor.Role = sr.Roles[0]
	}
	return actor
}

func isSecureRequest(r *http.Request) bool {
	return r != nil && r.TLS != nil
}

func userDTO(u *store.User, roles []string) auth.UserDTO {
	if roles == nil {
		roles = []string{}
	}
	return auth.UserDTO{
		ID:                    u.ID,
		Username:              u.Username,
		FullName:              u.FullName,
		Email:                 u.Email,
		Roles:                 roles,
		Active:                u.Active,
		RequirePasswordChange: u.RequirePasswordChange,
		LastLoginAt:           u.LastLoginAt,
		CreatedAt:             u.CreatedAt,
	}
}
