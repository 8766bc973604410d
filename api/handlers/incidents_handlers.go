package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"safeshield/config"
	"safeshield/core/response"
	"safeshield/core/store"
	"safeshield/core/utils"
)

var validSeverities = map[string]struct{}{
	"low": {}, "medium": {}, "high": {}, "critical": {},
}

var validIncidentStatuses = map[string]struct{}{
	"open": {}, "investigating": {}, "resolved": {}, "closed": {},
}

type IncidentsHandler struct {
	cfg       *config.AppConfig
	incidents store.IncidentsStore
	responses *response.Service
	users     store.UsersStore
	audits    store.AuditStore
	logger    *utils.Logger
}

func NewIncidentsHandler(cfg *config.AppConfig, incidents store.IncidentsStore, responses *response.Service, users store.UsersStore, audits store.AuditStore, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{cfg: cfg, incidents: incidents, responses: responses, users: users, audits: audits, logger: logger}
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.IncidentFilter{
		Search:   strings.TrimSpace(q.Get("q")),
		Status:   strings.ToLower(strings.TrimSpace(q.Get("status"))),
		Severity: strings.ToLower(strings.TrimSpace(q.Get("severity"))),
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Offset = n
		}
	}
	items, err := h.incidents.ListIncidents(r.Context(), filter)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []store.Incident{}
	}
	// Each row carries its tracker progress so lists render without N extra
	// requests from the client.
	summaries := make([]map[string]any, 0, len(items))
	for i := range items {
		entry := map[string]any{"incident": items[i]}
		if tracker, err := h.responses.Load(r.Context(), items[i].ID); err == nil {
			entry["progress"] = tracker.Progress()
			entry["response_status"] = tracker.OverallStatus()
		}
		summaries = append(summaries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": summaries})
}

type incidentPayload struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
	Status      string  `json:"status"`
	AssigneeID  *string `json:"assignee_id"`
}

func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	var payload incidentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	payload.Title = strings.TrimSpace(payload.Title)
	if payload.Title == "" {
		http.Error(w, "title required", http.StatusBadRequest)
		return
	}
	severity := strings.ToLower(strings.TrimSpace(payload.Severity))
	if _, ok := validSeverities[severity]; !ok {
		http.Error(w, "invalid severity", http.StatusBadRequest)
		return
	}
	inc := &store.Incident{
		Title:       payload.Title,
		Description: payload.Description,
		Severity:    severity,
		Status:      "open",
		ReporterID:  sr.UserID,
		AssigneeID:  payload.AssigneeID,
	}
	if _, err := h.incidents.CreateIncident(r.Context(), inc, h.cfg.Incidents.RegNoFormat); err != nil {
		h.logger.Errorf("create incident: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audits.Log(r.Context(), sr.Username, "incidents.created", "reg_no="+inc.RegNo)
	writeJSON(w, http.StatusCreated, map[string]any{"incident": inc})
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	inc, err := h.incidents.GetIncident(r.Context(), pathParams(r)["id"])
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if inc == nil || inc.DeletedAt != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	result := map[string]any{"incident": inc}
	if tracker, err := h.responses.Load(r.Context(), inc.ID); err == nil {
		result["progress"] = tracker.Progress()
		result["response_status"] = tracker.OverallStatus()
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *IncidentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	inc, err := h.incidents.GetIncident(r.Context(), pathParams(r)["id"])
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if inc == nil || inc.DeletedAt != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	var payload incidentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if title := strings.TrimSpace(payload.Title); title != "" {
		inc.Title = title
	}
	if payload.Description != "" {
		inc.Description = payload.Description
	}
	if severity := strings.ToLower(strings.TrimSpace(payload.Severity)); severity != "" {
		if _, ok := validSeverities[severity]; !ok {
			http.Error(w, "invalid severity", http.StatusBadRequest)
			return
		}
		inc.Severity = severity
	}
	if status := strings.ToLower(strings.TrimSpace(payload.Status)); status != "" {
		if _, ok := validIncidentStatuses[status]; !ok {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		inc.Status = status
	}
	if payload.AssigneeID != nil {
		inc.AssigneeID = payload.AssigneeID
	}
	if err := h.incidents.UpdateIncident(r.Context(), inc, inc.Version); err != nil {
		if errors.Is(err, store.ErrConflict) {
			http.Error(w, "conflict", http.StatusConflict)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audits.Log(r.Context(), sr.Username, "incidents.updated", "reg_no="+inc.RegNo)
	writeJSON(w, http.StatusOK, map[string]any{"incident": inc})
}

func (h *IncidentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	id := pathParams(r)["id"]
	inc, err := h.incidents.GetIncident(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if inc == nil || inc.DeletedAt != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := h.incidents.SoftDeleteIncident(r.Context(), id); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audits.Log(r.Context(), sr.Username, "incidents.deleted", "reg_no="+inc.RegNo)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
