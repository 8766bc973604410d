package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"safeshield/core/rbac"
)

// Router assembles the full HTTP surface. Guards compose outside-in:
// withSession authenticates and enforces CSRF, requirePermission checks the
// role grants for the route.
func (s *Server) Router() http.Handler {
	h := s.newRouteHandlers()
	withSession := s.withSession
	require := s.requirePermission

	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.MethodFunc(http.MethodPost, "/auth/login", s.rateLimitMiddleware(h.auth.Login))
		apiRouter.MethodFunc(http.MethodPost, "/auth/logout", withSession(h.auth.Logout))
		apiRouter.MethodFunc(http.MethodGet, "/auth/me", withSession(h.auth.Me))
		apiRouter.MethodFunc(http.MethodPost, "/auth/ping", withSession(h.auth.Ping))
		apiRouter.MethodFunc(http.MethodPost, "/auth/change-password", withSession(h.auth.ChangePassword))

		apiRouter.MethodFunc(http.MethodGet, "/users", withSession(require(rbac.PermAccountsManage)(h.accounts.List)))
		apiRouter.MethodFunc(http.MethodPost, "/users", withSession(require(rbac.PermAccountsManage)(h.accounts.Create)))
		apiRouter.MethodFunc(http.MethodGet, "/users/{user_id}", withSession(require(rbac.PermAccountsManage)(h.accounts.Get)))
		apiRouter.MethodFunc(http.MethodPut, "/users/{user_id}", withSession(require(rbac.PermAccountsManage)(h.accounts.Update)))

		apiRouter.MethodFunc(http.MethodGet, "/incidents", withSession(require(rbac.PermIncidentsView)(h.incidents.List)))
		apiRouter.MethodFunc(http.MethodPost, "/incidents", withSession(require(rbac.PermIncidentsManage)(h.incidents.Create)))
		apiRouter.MethodFunc(http.MethodGet, "/incidents/{id}", withSession(require(rbac.PermIncidentsView)(h.incidents.Get)))
		apiRouter.MethodFunc(http.MethodPut, "/incidents/{id}", withSession(require(rbac.PermIncidentsManage)(h.incidents.Update)))
		apiRouter.MethodFunc(http.MethodDelete, "/incidents/{id}", withSession(require(rbac.PermIncidentsManage)(h.incidents.Delete)))

		apiRouter.MethodFunc(http.MethodGet, "/incidents/{id}/response", withSession(require(rbac.PermResponseView)(h.response.GetTracker)))
		apiRouter.MethodFunc(http.MethodGet, "/incidents/{id}/response/report", withSession(require(rbac.PermReportExport)(h.response.Report)))
		apiRouter.MethodFunc(http.MethodPut, "/incidents/{id}/response/steps/{step_id}/status", withSession(require(rbac.PermResponseManage)(h.response.UpdateStatus)))
		apiRouter.MethodFunc(http.MethodPut, "/incidents/{id}/response/steps/{step_id}/notes", withSession(require(rbac.PermResponseManage)(h.response.UpdateNotes)))
		apiRouter.MethodFunc(http.MethodPost, "/incidents/{id}/response/steps/{step_id}/actions", withSession(require(rbac.PermResponseManage)(h.response.AddAction)))
		apiRouter.MethodFunc(http.MethodPost, "/incidents/{id}/response/steps/{step_id}/actions/{action_id}/toggle", withSession(require(rbac.PermResponseManage)(h.response.ToggleAction)))
		apiRouter.MethodFunc(http.MethodPost, "/incidents/{id}/response/steps/{step_id}/logs", withSession(require(rbac.PermResponseManage)(h.response.AddLog)))
		apiRouter.MethodFunc(http.MethodPost, "/incidents/{id}/response/steps/{step_id}/evidence", withSession(require(rbac.PermEvidenceUpload)(h.response.UploadEvidence)))
		apiRouter.MethodFunc(http.MethodGet, "/incidents/{id}/response/steps/{step_id}/evidence/{evidence_id}/download", withSession(require(rbac.PermEvidenceDownload)(h.response.DownloadEvidence)))

		apiRouter.MethodFunc(http.MethodGet, "/notifications", withSession(require(rbac.PermNotificationsUse)(h.notifications.List)))
		apiRouter.MethodFunc(http.MethodPost, "/notifications/{notification_id}/read", withSession(require(rbac.PermNotificationsUse)(h.notifications.MarkRead)))
		apiRouter.MethodFunc(http.MethodPost, "/notifications/read-all", withSession(require(rbac.PermNotificationsUse)(h.notifications.MarkAllRead)))

		apiRouter.MethodFunc(http.MethodGet, "/training/modules", withSession(require(rbac.PermTrainingView)(h.training.List)))
		apiRouter.MethodFunc(http.MethodPost, "/training/modules", withSession(require(rbac.PermTrainingManage)(h.training.Create)))
		apiRouter.MethodFunc(http.MethodGet, "/training/modules/{module_id}", withSession(require(rbac.PermTrainingView)(h.training.Get)))
		apiRouter.MethodFunc(http.MethodPut, "/training/modules/{module_id}", withSession(require(rbac.PermTrainingManage)(h.training.Update)))
		apiRouter.MethodFunc(http.MethodDelete, "/training/modules/{module_id}", withSession(require(rbac.PermTrainingManage)(h.training.Delete)))
		apiRouter.MethodFunc(http.MethodPost, "/training/modules/{module_id}/complete", withSession(require(rbac.PermTrainingComplete)(h.training.Complete)))

		apiRouter.MethodFunc(http.MethodGet, "/logs", withSession(require(rbac.PermLogsView)(h.logs.List)))
		apiRouter.MethodFunc(http.MethodGet, "/logs/export", withSession(require(rbac.PermLogsView)(h.logs.Export)))
	})

	return r
}
