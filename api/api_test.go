package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"safeshield/config"
	"safeshield/core/auth"
	"safeshield/core/evidence"
	"safeshield/core/notify"
	"safeshield/core/rbac"
	"safeshield/core/response"
	"safeshield/core/store"
)

type testEnv struct {
	srv   *httptest.Server
	cfg   *config.AppConfig
	users store.UsersStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		DBDriver:     store.DriverSQLite,
		DBPath:       filepath.Join(dir, "safeshield.db"),
		Pepper:       "pepper",
		CSRFKey:      "csrf-key",
		SessionTTL:   time.Hour,
		StoreTimeout: 5 * time.Second,
		Incidents:    config.IncidentsConfig{RegNoFormat: "INC-{year}-{seq:05}"},
		Evidence:     config.EvidenceConfig{StorageDir: filepath.Join(dir, "evidence"), MaxUploadBytes: 1 << 20},
		Notifications: config.NotificationsConfig{
			Enabled: true,
		},
	}
	db, err := store.NewDB(cfg, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	audits := store.NewAuditStore(db)
	incidents := store.NewIncidentsStore(db)
	notifications := store.NewNotificationsStore(db)
	training := store.NewTrainingStore(db)

	uploads, err := evidence.NewStorage(cfg.Evidence, nil)
	if err != nil {
		t.Fatalf("evidence storage: %v", err)
	}
	notifier := notify.NewService(cfg.Notifications, notifications, incidents, nil)
	responseSvc := response.NewService(store.NewResponseStore(db), uploads, audits, notifier, cfg.EffectiveStoreTimeout(), nil)

	server := NewServer(cfg, ServerDeps{
		Users:          users,
		Sessions:       sessions,
		Audits:         audits,
		IncidentsStore: incidents,
		Notifications:  notifications,
		Training:       training,
		ResponseSvc:    responseSvc,
		Evidence:       uploads,
		SessionManager: auth.NewSessionManager(sessions, cfg, nil),
		Policy:         rbac.NewPolicy(rbac.DefaultRoles()),
	}, nil)

	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, cfg: cfg, users: users}
}

func (e *testEnv) seedUser(t *testing.T, username, password, role string) *store.User {
	t.Helper()
	ph := auth.MustHashPassword(password, e.cfg.Pepper)
	u := &store.User{Username: username, PasswordHash: ph.Hash, Salt: ph.Salt, Active: true}
	if _, err := e.users.Create(context.Background(), u, []string{role}); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
	csrf string
}

func (e *testEnv) client(t *testing.T) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &apiClient{t: t, base: e.srv.URL, http: &http.Client{Jar: jar}}
}

func (e *testEnv) login(t *testing.T, username, password string) *apiClient {
	t.Helper()
	c := e.client(t)
	resp := c.do(http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	var body struct {
		CSRFToken string `json:"csrf_token"`
	}
	decodeJSON(t, resp, &body)
	if body.CSRFToken == "" {
		t.Fatalf("login %s: no csrf token", username)
	}
	c.csrf = body.CSRFToken
	return c
}

func (c *apiClient) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *apiClient) expect(method, path string, body any, status int) *http.Response {
	c.t.Helper()
	resp := c.do(method, path, body)
	if resp.StatusCode != status {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.t.Fatalf("%s %s: status %d, want %d (%s)", method, path, resp.StatusCode, status, strings.TrimSpace(string(raw)))
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

type trackerView struct {
	IncidentID    string `json:"incident_id"`
	Progress      int    `json:"progress"`
	OverallStatus string `json:"overall_status"`
	Steps         []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Icon    string `json:"icon"`
		Color   string `json:"color"`
		Status  string `json:"status"`
		Notes   string `json:"notes"`
		Version int    `json:"version"`
		Actions []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
			Completed   bool   `json:"completed"`
			CompletedBy string `json:"completed_by"`
		} `json:"actions"`
		Evidence []struct {
			ID       string `json:"id"`
			Filename string `json:"filename"`
			FileSize int64  `json:"file_size"`
		} `json:"evidence"`
		Logs []struct {
			Action  string `json:"action"`
			User    string `json:"user"`
			Details string `json:"details"`
		} `json:"logs"`
	} `json:"steps"`
}

func createIncident(t *testing.T, c *apiClient, title string) (id, regNo string) {
	t.Helper()
	resp := c.expect(http.MethodPost, "/api/incidents", map[string]any{
		"title":    title,
		"severity": "high",
	}, http.StatusCreated)
	var body struct {
		Incident store.Incident `json:"incident"`
	}
	decodeJSON(t, resp, &body)
	return body.Incident.ID, body.Incident.RegNo
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("security headers missing: %q", got)
	}
}

func TestLoginLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "analyst-pass-1", "analyst")

	c := env.client(t)
	drain(c.expect(http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "wrong"}, http.StatusUnauthorized))
	drain(c.expect(http.MethodGet, "/api/auth/me", nil, http.StatusUnauthorized))

	c = env.login(t, "alice", "analyst-pass-1")
	resp := c.expect(http.MethodGet, "/api/auth/me", nil, http.StatusOK)
	var me struct {
		User struct {
			Username string   `json:"username"`
			Roles    []string `json:"roles"`
		} `json:"user"`
		Permissions []string `json:"permissions"`
	}
	decodeJSON(t, resp, &me)
	if me.User.Username != "alice" || len(me.User.Roles) != 1 || me.User.Roles[0] != "analyst" {
		t.Fatalf("me payload wrong: %+v", me.User)
	}
	hasManage := false
	for _, p := range me.Permissions {
		if p == "response.manage" {
			hasManage = true
		}
		if p == "accounts.manage" {
			t.Fatalf("analyst must not hold accounts.manage")
		}
	}
	if !hasManage {
		t.Fatalf("analyst permissions missing response.manage: %v", me.Permissions)
	}

	drain(c.expect(http.MethodPost, "/api/auth/logout", nil, http.StatusOK))
	drain(c.expect(http.MethodGet, "/api/auth/me", nil, http.StatusUnauthorized))
}

func TestCSRFEnforcedOnMutations(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "analyst-pass-1", "analyst")
	c := env.login(t, "alice", "analyst-pass-1")

	// Reads pass without the header, mutations do not.
	drain(c.expect(http.MethodGet, "/api/incidents", nil, http.StatusOK))

	goodToken := c.csrf
	c.csrf = ""
	drain(c.expect(http.MethodPost, "/api/incidents", map[string]any{"title": "x", "severity": "low"}, http.StatusForbidden))
	c.csrf = "forged-token"
	drain(c.expect(http.MethodPost, "/api/incidents", map[string]any{"title": "x", "severity": "low"}, http.StatusForbidden))
	c.csrf = goodToken
	drain(c.expect(http.MethodPost, "/api/incidents", map[string]any{"title": "x", "severity": "low"}, http.StatusCreated))
}

func TestPermissionGuards(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "root", "admin-pass-1", "admin")
	env.seedUser(t, "alice", "analyst-pass-1", "analyst")
	env.seedUser(t, "watcher", "observer-pass-1", "observer")

	admin := env.login(t, "root", "admin-pass-1")
	incidentID, _ := createIncident(t, admin, "Guard check")

	observer := env.login(t, "watcher", "observer-pass-1")
	drain(observer.expect(http.MethodGet, "/api/incidents", nil, http.StatusOK))
	drain(observer.expect(http.MethodGet, "/api/incidents/"+incidentID+"/response", nil, http.StatusOK))
	drain(observer.expect(http.MethodGet, "/api/incidents/"+incidentID+"/response/report", nil, http.StatusOK))
	drain(observer.expect(http.MethodPost, "/api/incidents", map[string]any{"title": "x", "severity": "low"}, http.StatusForbidden))
	drain(observer.expect(http.MethodPut, "/api/incidents/"+incidentID+"/response/steps/detect/status", map[string]string{"status": "in-progress"}, http.StatusForbidden))
	drain(observer.expect(http.MethodGet, "/api/users", nil, http.StatusForbidden))
	drain(observer.expect(http.MethodGet, "/api/logs", nil, http.StatusForbidden))

	analyst := env.login(t, "alice", "analyst-pass-1")
	drain(analyst.expect(http.MethodPut, "/api/incidents/"+incidentID+"/response/steps/detect/status", map[string]string{"status": "in-progress"}, http.StatusOK))
	drain(analyst.expect(http.MethodGet, "/api/users", nil, http.StatusForbidden))
	drain(analyst.expect(http.MethodPost, "/api/training/modules", map[string]any{"title": "x"}, http.StatusForbidden))

	drain(admin.expect(http.MethodGet, "/api/users", nil, http.StatusOK))
	drain(admin.expect(http.MethodGet, "/api/logs", nil, http.StatusOK))
}

func TestResponseWorkflowEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "analyst-pass-1", "analyst")
	c := env.login(t, "alice", "analyst-pass-1")

	incidentID, regNo := createIncident(t, c, "Phishing campaign against finance")
	if !strings.HasPrefix(regNo, "INC-") {
		t.Fatalf("reg_no %q", regNo)
	}

	// Fresh tracker: five pending steps, zero progress.
	var tv trackerView
	decodeJSON(t, c.expect(http.MethodGet, "/api/incidents/"+incidentID+"/response", nil, http.StatusOK), &tv)
	if tv.Progress != 0 || tv.OverallStatus != "pending" || len(tv.Steps) != 5 {
		t.Fatalf("fresh tracker wrong: %+v", tv)
	}
	if tv.Steps[0].ID != "detect" || tv.Steps[0].Icon != "search" || tv.Steps[0].Color == "" {
		t.Fatalf("step presentation wrong: %+v", tv.Steps[0])
	}

	// Unknown step and invalid status are rejected.
	drain(c.expect(http.MethodPut, "/api/incidents/"+incidentID+"/response/steps/isolate/status", map[string]string{"status": "in-progress"}, http.StatusNotFound))
	drain(c.expect(http.MethodPut, "/api/incidents/"+incidentID+"/response/steps/detect/status", map[string]string{"status": "done"}, http.StatusBadRequest))

	decodeJSON(t, c.expect(http.MethodPut, "/api/incidents/"+incidentID+"/response/steps/detect/status", map[string]string{"status": "in-progress"}, http.StatusOK), &tv)
	if tv.Steps[0].Status != "in-progress" || tv.OverallStatus != "in-progress" {
		t.Fatalf("status change lost: %+v", tv.Steps[0])
	}

	// Checklist: add, then toggle.
	drain(c.expect(http.MethodPost, "/api/incidents/"+incidentID+"/response/steps/detect/actions", map[string]string{"description": ""}, http.StatusBadRequest))
	decodeJSON(t, c.expect(http.MethodPost, "/api/incidents/"+incidentID+"/response/steps/detect/actions", map[string]string{"description": "review SIEM alerts"}, http.StatusOK), &tv)
	if len(tv.Steps[0].Actions) != 1 || tv.Steps[0].Actions[0].Completed {
		t.Fatalf("action not added: %+v", tv.Steps[0].Actions)
	}
	actionID := tv.Steps[0].Actions[0].ID
	decodeJSON(t, c.expect(http.MethodPost, "/api/incidents/"+incidentID+"/response/steps/detect/actions/"+actionID+"/toggle", nil, http.StatusOK), &tv)
	if !tv.Steps[0].Actions[0].Completed || tv.Steps[0].Actions[0].CompletedBy != "alice" {
		t.Fatalf("toggle lost: %+v", tv.Steps[0].Actions[0])
	}

	decodeJSON(t, c.expect(http.MethodPut, "/api/incidents/"+incidentID+"/response/steps/detect/notes", map[string]string{"notes": "confirmed phishing"}, http.StatusOK), &tv)
	if tv.Steps[0].Notes != "confirmed phishing" {
		t.Fatalf("notes lost: %+v", tv.Steps[0])
	}

	drain(c.expect(http.MethodPost, "/api/incidents/"+incidentID+"/response/steps/detect/logs", map[string]string{"action": "Escalated", "details": "paged on-call"}, http.StatusOK))

	// Evidence upload and download round trip.
	content := "malicious attachment hash list"
	decodeJSON(t, uploadEvidence(t, c, incidentID, "detect", "hashes.txt", content, http.StatusOK), &tv)
	if len(tv.Steps[0].Evidence) != 1 || tv.Steps[0].Evidence[0].Filename != "hashes.txt" {
		t.Fatalf("evidence not recorded: %+v", tv.Steps[0].Evidence)
	}
	evidenceID := tv.Steps[0].Evidence[0].ID
	dl := c.expect(http.MethodGet, "/api/incidents/"+incidentID+"/response/steps/detect/evidence/"+evidenceID+"/download", nil, http.StatusOK)
	if cd := dl.Header.Get("Content-Disposition"); !strings.Contains(cd, "hashes.txt") {
		t.Fatalf("content disposition %q", cd)
	}
	got, _ := io.ReadAll(dl.Body)
	dl.Body.Close()
	if string(got) != content {
		t.Fatalf("downloaded body %q", got)
	}

	// Drive every step to completed.
	for _, stepID := range []string{"detect", "contain", "eradicate", "recover", "communicate"} {
		decodeJSON(t, c.expect(http.MethodPut, "/api/incidents/"+incidentID+"/response/steps/"+stepID+"/status", map[string]string{"status": "completed"}, http.StatusOK), &tv)
	}
	if tv.Progress != 100 || tv.OverallStatus != "completed" {
		t.Fatalf("completed tracker wrong: progress=%d status=%s", tv.Progress, tv.OverallStatus)
	}

	// Incident list rows carry tracker progress.
	var list struct {
		Items []struct {
			Incident       store.Incident `json:"incident"`
			Progress       int            `json:"progress"`
			ResponseStatus string         `json:"response_status"`
		} `json:"items"`
	}
	decodeJSON(t, c.expect(http.MethodGet, "/api/incidents", nil, http.StatusOK), &list)
	if len(list.Items) != 1 || list.Items[0].Progress != 100 || list.Items[0].ResponseStatus != "completed" {
		t.Fatalf("list enrichment wrong: %+v", list.Items)
	}

	// Report export.
	rep := c.expect(http.MethodGet, "/api/incidents/"+incidentID+"/response/report", nil, http.StatusOK)
	if cd := rep.Header.Get("Content-Disposition"); !strings.Contains(cd, regNo+"_response_report.json") {
		t.Fatalf("report disposition %q", cd)
	}
	var report struct {
		IncidentID string `json:"incidentId"`
		Summary    struct {
			CompletedSteps int    `json:"completedSteps"`
			TotalSteps     int    `json:"totalSteps"`
			EvidenceFiles  int    `json:"evidenceFiles"`
			Duration       string `json:"duration"`
		} `json:"summary"`
		Steps []json.RawMessage `json:"steps"`
	}
	decodeJSON(t, rep, &report)
	if report.IncidentID != incidentID || report.Summary.CompletedSteps != 5 || report.Summary.TotalSteps != 5 {
		t.Fatalf("report summary wrong: %+v", report)
	}
	if report.Summary.EvidenceFiles != 1 || report.Summary.Duration == "N/A" {
		t.Fatalf("report detail wrong: %+v", report.Summary)
	}
	if len(report.Steps) != 5 {
		t.Fatalf("report steps %d", len(report.Steps))
	}
}

func uploadEvidence(t *testing.T, c *apiClient, incidentID, stepID, filename, content string, wantStatus int) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()
	req, err := http.NewRequest(http.MethodPost, c.base+"/api/incidents/"+incidentID+"/response/steps/"+stepID+"/evidence", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-CSRF-Token", c.csrf)
	resp, err := c.http.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("upload status %d, want %d (%s)", resp.StatusCode, wantStatus, strings.TrimSpace(string(raw)))
	}
	return resp
}

func TestNotificationsReachIncidentReporter(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "root", "admin-pass-1", "admin")
	env.seedUser(t, "alice", "analyst-pass-1", "analyst")

	admin := env.login(t, "root", "admin-pass-1")
	incidentID, regNo := createIncident(t, admin, "Beaconing host")

	// The analyst works the incident; the reporting admin gets notified.
	analyst := env.login(t, "alice", "analyst-pass-1")
	drain(analyst.expect(http.MethodPut, "/api/incidents/"+incidentID+"/response/steps/contain/status", map[string]string{"status": "in-progress"}, http.StatusOK))

	var inbox struct {
		Items []struct {
			ID         string `json:"id"`
			Kind       string `json:"kind"`
			Title      string `json:"title"`
			IncidentID string `json:"incident_id"`
		} `json:"items"`
		Unread int `json:"unread"`
	}
	decodeJSON(t, admin.expect(http.MethodGet, "/api/notifications?unread=true", nil, http.StatusOK), &inbox)
	if inbox.Unread != 1 || len(inbox.Items) != 1 {
		t.Fatalf("admin inbox: %+v", inbox)
	}
	n := inbox.Items[0]
	if n.Kind != "response.status_changed" || n.IncidentID != incidentID || !strings.Contains(n.Title, regNo) {
		t.Fatalf("notification wrong: %+v", n)
	}

	// Actors never notify themselves.
	var own struct {
		Unread int `json:"unread"`
	}
	decodeJSON(t, analyst.expect(http.MethodGet, "/api/notifications", nil, http.StatusOK), &own)
	if own.Unread != 0 {
		t.Fatalf("actor notified about own change: %+v", own)
	}

	drain(admin.expect(http.MethodPost, "/api/notifications/"+n.ID+"/read", nil, http.StatusOK))
	drain(admin.expect(http.MethodPost, "/api/notifications/"+n.ID+"/read", nil, http.StatusNotFound))
	decodeJSON(t, admin.expect(http.MethodGet, "/api/notifications", nil, http.StatusOK), &inbox)
	if inbox.Unread != 0 {
		t.Fatalf("unread after read: %d", inbox.Unread)
	}
}

func TestTrainingFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "root", "admin-pass-1", "admin")
	env.seedUser(t, "alice", "analyst-pass-1", "analyst")

	admin := env.login(t, "root", "admin-pass-1")
	resp := admin.expect(http.MethodPost, "/api/training/modules", map[string]any{
		"title":    "Recognizing phishing",
		"category": "Awareness",
		"summary":  "Spot the hook",
	}, http.StatusCreated)
	var created struct {
		Module store.TrainingModule `json:"module"`
	}
	decodeJSON(t, resp, &created)
	if created.Module.ID == "" || created.Module.Category != "awareness" {
		t.Fatalf("module wrong: %+v", created.Module)
	}

	analyst := env.login(t, "alice", "analyst-pass-1")
	var list struct {
		Items []struct {
			Module    store.TrainingModule `json:"module"`
			Completed bool                 `json:"completed"`
		} `json:"items"`
	}
	decodeJSON(t, analyst.expect(http.MethodGet, "/api/training/modules", nil, http.StatusOK), &list)
	if len(list.Items) != 1 || list.Items[0].Completed {
		t.Fatalf("fresh module list wrong: %+v", list.Items)
	}

	drain(analyst.expect(http.MethodPost, "/api/training/modules/"+created.Module.ID+"/complete", nil, http.StatusOK))
	decodeJSON(t, analyst.expect(http.MethodGet, "/api/training/modules", nil, http.StatusOK), &list)
	if !list.Items[0].Completed {
		t.Fatalf("completion not reflected: %+v", list.Items)
	}
	// Completion is per-user.
	decodeJSON(t, admin.expect(http.MethodGet, "/api/training/modules", nil, http.StatusOK), &list)
	if list.Items[0].Completed {
		t.Fatalf("completion leaked across users")
	}

	drain(analyst.expect(http.MethodPost, "/api/training/modules/missing/complete", nil, http.StatusNotFound))
	drain(admin.expect(http.MethodDelete, "/api/training/modules/"+created.Module.ID, nil, http.StatusOK))
	drain(admin.expect(http.MethodGet, "/api/training/modules/"+created.Module.ID, nil, http.StatusNotFound))
}

func TestAuditLogListAndExport(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "root", "admin-pass-1", "admin")
	admin := env.login(t, "root", "admin-pass-1")
	createIncident(t, admin, "Audited incident")

	var logs struct {
		Items []store.AuditRecord `json:"items"`
	}
	decodeJSON(t, admin.expect(http.MethodGet, "/api/logs", nil, http.StatusOK), &logs)
	actions := map[string]bool{}
	for _, rec := range logs.Items {
		actions[rec.Action] = true
	}
	if !actions["auth.login_success"] || !actions["incidents.created"] {
		t.Fatalf("expected audit trail entries, got %v", actions)
	}

	decodeJSON(t, admin.expect(http.MethodGet, "/api/logs?action=incidents", nil, http.StatusOK), &logs)
	for _, rec := range logs.Items {
		if !strings.HasPrefix(rec.Action, "incidents") {
			t.Fatalf("action filter leaked %q", rec.Action)
		}
	}

	exp := admin.expect(http.MethodGet, "/api/logs/export", nil, http.StatusOK)
	if ct := exp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("export content type %q", ct)
	}
	body, _ := io.ReadAll(exp.Body)
	exp.Body.Close()
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if lines[0] != "time,username,action,details" {
		t.Fatalf("csv header %q", lines[0])
	}
	if len(lines) < 2 {
		t.Fatalf("csv export empty")
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "analyst-pass-1", "analyst")
	c := env.client(t)

	cred := map[string]string{"username": "alice", "password": "wrong"}
	for i := 0; i < 5; i++ {
		drain(c.expect(http.MethodPost, "/api/auth/login", cred, http.StatusUnauthorized))
	}
	drain(c.expect(http.MethodPost, "/api/auth/login", cred, http.StatusTooManyRequests))
}

func TestForcedPasswordChangeGate(t *testing.T) {
	env := newTestEnv(t)
	ph := auth.MustHashPassword("temp-pass-123", env.cfg.Pepper)
	u := &store.User{Username: "fresh", PasswordHash: ph.Hash, Salt: ph.Salt, Active: true, RequirePasswordChange: true}
	if _, err := env.users.Create(context.Background(), u, []string{"analyst"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	c := env.login(t, "fresh", "temp-pass-123")
	resp := c.do(http.MethodGet, "/api/incidents", nil)
	drain(resp)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("gate missing: status %d", resp.StatusCode)
	}

	drain(c.expect(http.MethodPost, "/api/auth/change-password", map[string]string{
		"current_password": "temp-pass-123",
		"password":         "new-pass-12345",
	}, http.StatusOK))
	drain(c.expect(http.MethodGet, "/api/incidents", nil, http.StatusOK))

	// The new password works; the old one is gone.
	drain(env.client(t).expect(http.MethodPost, "/api/auth/login", map[string]string{"username": "fresh", "password": "temp-pass-123"}, http.StatusUnauthorized))
	env.login(t, "fresh", "new-pass-12345")
}

func TestDeletedIncidentHidesResponseRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", "analyst-pass-1", "analyst")
	c := env.login(t, "alice", "analyst-pass-1")

	incidentID, _ := createIncident(t, c, "Short-lived incident")
	drain(c.expect(http.MethodDelete, "/api/incidents/"+incidentID, nil, http.StatusOK))
	drain(c.expect(http.MethodGet, "/api/incidents/"+incidentID, nil, http.StatusNotFound))
	drain(c.expect(http.MethodGet, "/api/incidents/"+incidentID+"/response", nil, http.StatusNotFound))
	drain(c.expect(http.MethodPut, "/api/incidents/"+incidentID+"/response/steps/detect/status", map[string]string{"status": "in-progress"}, http.StatusNotFound))
	drain(c.expect(http.MethodGet, fmt.Sprintf("/api/incidents/%s/response/report", incidentID), nil, http.StatusNotFound))
}
