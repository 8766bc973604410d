package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"safeshield/core/store"
)

type TrainingHandler struct {
	training store.TrainingStore
	audits   store.AuditStore
}

func NewTrainingHandler(training store.TrainingStore, audits store.AuditStore) *TrainingHandler {
	return &TrainingHandler{training: training, audits: audits}
}

func (h *TrainingHandler) List(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	category := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	modules, err := h.training.ListModules(r.Context(), category)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	completions, err := h.training.CompletionsForUser(r.Context(), sr.UserID)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	done := make(map[string]store.TrainingCompletion, len(completions))
	for _, c := range completions {
		done[c.ModuleID] = c
	}
	items := make([]map[string]any, 0, len(modules))
	for i := range modules {
		entry := map[string]any{"module": modules[i], "completed": false}
		if c, ok := done[modules[i].ID]; ok {
			entry["completed"] = true
			entry["completed_at"] = c.CompletedAt
		}
		items = append(items, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *TrainingHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.training.GetModule(r.Context(), pathParams(r)["module_id"])
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"module": m})
}

func (h *TrainingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	id := pathParams(r)["module_id"]
	m, err := h.training.GetModule(r.Context(), id)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := h.training.MarkCompleted(r.Context(), id, sr.UserID); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audits.Log(r.Context(), sr.Username, "training.completed", "module="+m.Title)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type trainingPayload struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Summary  string `json:"summary"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

func (h *TrainingHandler) Create(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	var payload trainingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Title) == "" {
		http.Error(w, "title required", http.StatusBadRequest)
		return
	}
	m := &store.TrainingModule{
		Title:    payload.Title,
		Category: strings.ToLower(strings.TrimSpace(payload.Category)),
		Summary:  payload.Summary,
		Content:  payload.Content,
		Position: payload.Position,
	}
	if err := h.training.CreateModule(r.Context(), m); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audits.Log(r.Context(), sr.Username, "training.module_created", "title="+m.Title)
	writeJSON(w, http.StatusCreated, map[string]any{"module": m})
}

func (h *TrainingHandler) Update(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	m, err := h.training.GetModule(r.Context(), pathParams(r)["module_id"])
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if m == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	var payload trainingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Title) != "" {
		m.Title = payload.Title
	}
	if payload.Category != "" {
		m.Category = strings.ToLower(strings.TrimSpace(payload.Category))
	}
	if payload.Summary != "" {
		m.Summary = payload.Summary
	}
	if payload.Content != "" {
		m.Content = payload.Content
	}
	if payload.Position != 0 {
		m.Position = payload.Position
	}
	if err := h.training.UpdateModule(r.Context(), m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audits.Log(r.Context(), sr.Username, "training.module_updated", "title="+m.Title)
	writeJSON(w, http.StatusOK, map[string]any{"module": m})
}

func (h *TrainingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sr := sessionFrom(r)
	id := pathParams(r)["module_id"]
	if err := h.training.DeleteModule(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audits.Log(r.Context(), sr.Username, "training.module_deleted", "id="+id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
