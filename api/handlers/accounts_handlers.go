package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"safeshield/config"
	"safeshield/core/auth"
	"safeshield/core/rbac"
	"safeshield/core/store"
	"safeshield/core/utils"
)

type AccountsHandler struct {
	cfg    *config.AppConfig
	users  store.UsersStore
	policy *rbac.Policy
	audits store.AuditStore
	logger *utils.Logger
}

func NewAccountsHandler(cfg *config.AppConfig, users store.UsersStore, policy *rbac.Policy, audits store.AuditStore, logger *utils.Logger) *AccountsHandler {
	return &AccountsHandler{cfg: cfg, users: users, policy: policy, audits: audits, logger: logger}
}

func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	items := make([]auth.UserDTO, 0, len(users))
	for i := range users {
		roles, _ := h.users.Roles(r.Context(), users[i].ID)
		items = append(items, userDTO(&users[i], roles))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, roles, err := h.users.Get(r.Context(), pathParams(r)["user_id"])
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": userDTO(user, roles)})
}

type accountPayload struct {
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
	Active   *bool    `json:"active"`
}

func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	var payload accountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	payload.Username = strings.ToLower(strings.TrimSpace(payload.Username))
	if err := utils.ValidateUsername(payload.Username); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := utils.ValidatePassword(payload.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	roles, err := h.validRoles(payload.Roles)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if existing, _, err := h.users.FindByUsername(r.Context(), payload.Username); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if existing != nil {
		http.Error(w, "username taken", http.StatusConflict)
		return
	}
	ph, err := auth.HashPassword(payload.Password, h.cfg.Pepper)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	user := &store.User{
		Username:              payload.Username,
		FullName:              payload.FullName,
		Email:                 payload.Email,
		PasswordHash:          ph.Hash,
		Salt:                  ph.Salt,
		Active:                true,
		RequirePasswordChange: true,
	}
	if _, err := h.users.Create(r.Context(), user, roles); err != nil {
		h.logger.Errorf("create account %s: %v", payload.Username, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audits.Log(r.Context(), sr.Username, "accounts.created", "username="+payload.Username)
	writeJSON(w, http.StatusCreated, map[string]any{"user": userDTO(user, roles)})
}

func (h *AccountsHandler) Update(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	user, currentRoles, err := h.users.Get(r.Context(), pathParams(r)["user_id"])
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	var payload accountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if payload.FullName != "" {
		user.FullName = payload.FullName
	}
	if payload.Email != "" {
		user.Email = payload.Email
	}
	if payload.Active != nil {
		if !*payload.Active && user.ID == sr.UserID {
			http.Error(w, "cannot deactivate own account", http.StatusBadRequest)
			return
		}
		user.Active = *payload.Active
	}
	if payload.Password != "" {
		if err := utils.ValidatePassword(payload.Password); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ph, err := auth.HashPassword(payload.Password, h.cfg.Pepper)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		user.PasswordHash = ph.Hash
		user.Salt = ph.Salt
		user.RequirePasswordChange = true
	}
	roles := currentRoles
	var rolesUpdate []string
	if payload.Roles != nil {
		roles, err = h.validRoles(payload.Roles)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rolesUpdate = roles
	}
	if err := h.users.Update(r.Context(), user, rolesUpdate); err != nil {
		h.logger.Errorf("update account %s: %v", user.Username, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audits.Log(r.Context(), sr.Username, "accounts.updated", "username="+user.Username)
	writeJSON(w, http.StatusOK, map[string]any{"user": userDTO(user, roles)})
}

func (h *AccountsHandler) validRoles(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return []string{rbac.RoleObserver}, nil
	}
	var out []string
	for _, role := range raw {
		name := strings.ToLower(strings.TrimSpace(role))
		if name == "" {
			continue
		}
		if !h.policy.KnownRole(name) {
			return nil, errUnknownRole(name)
		}
		out = append(out, name)
	}
	if len(out) == 0 {
		out = []string{rbac.RoleObserver}
	}
	return out, nil
}

type errUnknownRole string

func (e errUnknownRole) Error() string { return "unknown role " + string(e) }
