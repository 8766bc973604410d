package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"safeshield/core/store"
)

type NotificationsHandler struct {
	notifications store.NotificationsStore
}

func NewNotificationsHandler(notifications store.NotificationsStore) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	q := r.URL.Query()
	unreadOnly := strings.EqualFold(strings.TrimSpace(q.Get("unread")), "true")
	limit := 50
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	items, err := h.notifications.ListNotifications(r.Context(), sr.UserID, unreadOnly, limit)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []store.Notification{}
	}
	unread, _ := h.notifications.UnreadCount(r.Context(), sr.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "unread": unread})
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	id := pathParams(r)["notification_id"]
	if err := h.notifications.MarkRead(r.Context(), sr.UserID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	if err := h.notifications.MarkAllRead(r.Context(), sr.UserID); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
