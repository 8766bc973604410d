package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"safeshield/config"
	"safeshield/core/evidence"
	"safeshield/core/response"
	"safeshield/core/store"
	"safeshield/core/utils"
)

// stepPresentation keys icon and color hints by step id. Presentation stays
// out of the response core so report exports never carry it.
var stepPresentation = map[response.StepID]struct {
	Icon  string
	Color string
}{
	response.StepDetect:      {Icon: "search", Color: "#2563eb"},
	response.StepContain:     {Icon: "shield", Color: "#d97706"},
	response.StepEradicate:   {Icon: "trash", Color: "#dc2626"},
	response.StepRecover:     {Icon: "refresh", Color: "#16a34a"},
	response.StepCommunicate: {Icon: "megaphone", Color: "#7c3aed"},
}

type ResponseHandler struct {
	cfg       *config.AppConfig
	responses *response.Service
	incidents store.IncidentsStore
	uploads   *evidence.Storage
	logger    *utils.Logger
}

func NewResponseHandler(cfg *config.AppConfig, responses *response.Service, incidents store.IncidentsStore, uploads *evidence.Storage, logger *utils.Logger) *ResponseHandler {
	return &ResponseHandler{cfg: cfg, responses: responses, incidents: incidents, uploads: uploads, logger: logger}
}

// requireIncident resolves the incident from the path, writing the error
// response itself when the incident is missing or deleted.
func (h *ResponseHandler) requireIncident(w http.ResponseWriter, r *http.Request) *store.Incident {
	inc, err := h.incidents.GetIncident(r.Context(), pathParams(r)["id"])
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return nil
	}
	if inc == nil || inc.DeletedAt != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return nil
	}
	return inc
}

func (h *ResponseHandler) writeTracker(w http.ResponseWriter, t *response.Tracker) {
	steps := make([]map[string]any, 0, len(t.Steps))
	for i := range t.Steps {
		st := &t.Steps[i]
		pres := stepPresentation[st.ID]
		steps = append(steps, map[string]any{
			"id":           st.ID,
			"name":         st.Name,
			"description":  st.Description,
			"guidance":     st.Guidance,
			"icon":         pres.Icon,
			"color":        pres.Color,
			"status":       st.Status,
			"notes":        st.Notes,
			"assigned_to":  st.AssignedTo,
			"completed_at": st.CompletedAt,
			"actions":      st.Actions,
			"evidence":     st.Evidence,
			"logs":         st.Logs,
			"version":      st.Version,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"incident_id":    t.IncidentID,
		"progress":       t.Progress(),
		"overall_status": t.OverallStatus(),
		"steps":          steps,
	})
}

func (h *ResponseHandler) GetTracker(w http.ResponseWriter, r *http.Request) {
	inc := h.requireIncident(w, r)
	if inc == nil {
		return
	}
	t, err := h.responses.Load(r.Context(), inc.ID)
	if err != nil {
		h.logger.Errorf("load tracker %s: %v", inc.ID, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.writeTracker(w, t)
}

func (h *ResponseHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	inc := h.requireIncident(w, r)
	if inc == nil {
		return
	}
	stepID := response.StepID(pathParams(r)["step_id"])
	if !response.ValidStepID(stepID) {
		http.Error(w, "unknown step", http.StatusNotFound)
		return
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	st := response.Status(strings.ToLower(strings.TrimSpace(payload.Status)))
	if !st.Valid() {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	t, err := h.responses.UpdateStepStatus(r.Context(), actorFrom(sessionFrom(r)), inc.ID, stepID, st)
	if err != nil {
		h.respondMutationError(w, "update step status", err)
		return
	}
	h.writeTracker(w, t)
}

func (h *ResponseHandler) AddAction(w http.ResponseWriter, r *http.Request) {
	inc := h.requireIncident(w, r)
	if inc == nil {
		return
	}
	stepID := response.StepID(pathParams(r)["step_id"])
	if !response.ValidStepID(stepID) {
		http.Error(w, "unknown step", http.StatusNotFound)
		return
	}
	var payload struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Description) == "" {
		http.Error(w, "description required", http.StatusBadRequest)
		return
	}
	t, err := h.responses.AddAction(r.Context(), actorFrom(sessionFrom(r)), inc.ID, stepID, payload.Description)
	if err != nil {
		h.respondMutationError(w, "add action", err)
		return
	}
	h.writeTracker(w, t)
}

func (h *ResponseHandler) ToggleAction(w http.ResponseWriter, r *http.Request) {
	inc := h.requireIncident(w, r)
	if inc == nil {
		return
	}
	params := pathParams(r)
	stepID := response.StepID(params["step_id"])
	if !response.ValidStepID(stepID) {
		http.Error(w, "unknown step", http.StatusNotFound)
		return
	}
	t, err := h.responses.ToggleAction(r.Context(), actorFrom(sessionFrom(r)), inc.ID, stepID, params["action_id"])
	if err != nil {
		h.respondMutationError(w, "toggle action", err)
		return
	}
	h.writeTracker(w, t)
}

func (h *ResponseHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	inc := h.requireIncident(w, r)
	if inc == nil {
		return
	}
	stepID := response.StepID(pathParams(r)["step_id"])
	if !response.ValidStepID(stepID) {
		http.Error(w, "unknown step", http.StatusNotFound)
		return
	}
	var payload struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	t, err := h.responses.UpdateNotes(r.Context(), actorFrom(sessionFrom(r)), inc.ID, stepID, payload.Notes)
	if err != nil {
		h.respondMutationError(w, "update notes", err)
		return
	}
	h.writeTracker(w, t)
}

func (h *ResponseHandler) AddLog(w http.ResponseWriter, r *http.Request) {
	inc := h.requireIncident(w, r)
	if inc == nil {
		return
	}
	stepID := response.StepID(pathParams(r)["step_id"])
	if !response.ValidStepID(stepID) {
		http.Error(w, "unknown step", http.StatusNotFound)
		return
	}
	var payload struct {
		Action  string `json:"action"`
		Details string `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Action) == "" {
		http.Error(w, "action required", http.StatusBadRequest)
		return
	}
	t, err := h.responses.AddLog(r.Context(), actorFrom(sessionFrom(r)), inc.ID, stepID, payload.Action, payload.Details)
	if err != nil {
		h.respondMutationError(w, "add log", err)
		return
	}
	h.writeTracker(w, t)
}

func (h *ResponseHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	inc := h.requireIncident(w, r)
	if inc == nil {
		return
	}
	stepID := response.StepID(pathParams(r)["step_id"])
	if !response.ValidStepID(stepID) {
		http.Error(w, "unknown step", http.StatusNotFound)
		return
	}
	maxBytes := h.cfg.Evidence.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	// Form overhead on top of the file size limit.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64*1024)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "file required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	t, err := h.responses.AttachEvidence(r.Context(), actorFrom(sessionFrom(r)), inc.ID, stepID, header.Filename, file)
	if err != nil {
		if errors.Is(err, evidence.ErrTooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		if errors.Is(err, evidence.ErrEmptyFilename) {
			http.Error(w, "invalid filename", http.StatusBadRequest)
			return
		}
		h.respondMutationError(w, "upload evidence", err)
		return
	}
	h.writeTracker(w, t)
}

func (h *ResponseHandler) DownloadEvidence(w http.ResponseWriter, r *http.Request) {
	inc := h.requireIncident(w, r)
	if inc == nil {
		return
	}
	params := pathParams(r)
	stepID := response.StepID(params["step_id"])
	if !response.ValidStepID(stepID) {
		http.Error(w, "unknown step", http.StatusNotFound)
		return
	}
	t, err := h.responses.Load(r.Context(), inc.ID)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	step := t.Step(stepID)
	var ev *response.Evidence
	for i := range step.Evidence {
		if step.Evidence[i].ID == params["evidence_id"] {
			ev = &step.Evidence[i]
			break
		}
	}
	if ev == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	reader, err := h.uploads.Open(r.Context(), ev.FileURL)
	if err != nil {
		h.logger.Errorf("open evidence %s: %v", ev.FileURL, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	defer reader.Close()
	ct := ev.FileType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ev.Filename))
	if ev.FileSize > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", ev.FileSize))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

// Report serves the exportable JSON snapshot as a download.
func (h *ResponseHandler) Report(w http.ResponseWriter, r *http.Request) {
	inc := h.requireIncident(w, r)
	if inc == nil {
		return
	}
	report, err := h.responses.Report(r.Context(), inc.ID)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	body, err := report.MarshalIndent()
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	filename := fmt.Sprintf("%s_response_report.json", strings.ReplaceAll(inc.RegNo, "/", "-"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *ResponseHandler) respondMutationError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrConflict) {
		http.Error(w, "conflict", http.StatusConflict)
		return
	}
	h.logger.Errorf("%s: %v", op, err)
	http.Error(w, "server error", http.StatusInternalServerError)
}
