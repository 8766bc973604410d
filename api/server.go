package api

import (
	"context"
	"net/http"
	"time"

	"safeshield/api/handlers"
	"safeshield/config"
	"safeshield/core/auth"
	"safeshield/core/evidence"
	"safeshield/core/rbac"
	"safeshield/core/response"
	"safeshield/core/store"
	"safeshield/core/utils"
)

// BackgroundWorker is anything with a start/stop lifecycle tied to the
// process, such as the notification scheduler.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context) error
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	Users          store.UsersStore
	Sessions       store.SessionStore
	Audits         store.AuditStore
	IncidentsStore store.IncidentsStore
	Notifications  store.NotificationsStore
	Training       store.TrainingStore
	ResponseSvc    *response.Service
	Evidence       *evidence.Storage
	SessionManager *auth.SessionManager
	Policy         *rbac.Policy
}

type Server struct {
	cfg    *config.AppConfig
	logger *utils.Logger

	users          store.UsersStore
	sessions       store.SessionStore
	audits         store.AuditStore
	incidentsStore store.IncidentsStore
	notifications  store.NotificationsStore
	training       store.TrainingStore
	responseSvc    *response.Service
	evidenceStore  *evidence.Storage
	sessionManager *auth.SessionManager
	policy         *rbac.Policy

	activityTracker *sessionActivity
	loginLimiter    *requestLimiter
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	return &Server{
		cfg:             cfg,
		logger:          logger,
		users:           deps.Users,
		sessions:        deps.Sessions,
		audits:          deps.Audits,
		incidentsStore:  deps.IncidentsStore,
		notifications:   deps.Notifications,
		training:        deps.Training,
		responseSvc:     deps.ResponseSvc,
		evidenceStore:   deps.Evidence,
		sessionManager:  deps.SessionManager,
		policy:          deps.Policy,
		activityTracker: newSessionActivity(),
		loginLimiter:    newLimiter(5, time.Minute),
	}
}

type routeHandlers struct {
	auth          *handlers.AuthHandler
	accounts      *handlers.AccountsHandler
	incidents     *handlers.IncidentsHandler
	response      *handlers.ResponseHandler
	notifications *handlers.NotificationsHandler
	training      *handlers.TrainingHandler
	logs          *handlers.LogsHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		auth:          handlers.NewAuthHandler(s.cfg, s.users, s.sessions, s.sessionManager, s.policy, s.audits, s.logger),
		accounts:      handlers.NewAccountsHandler(s.cfg, s.users, s.policy, s.audits, s.logger),
		incidents:     handlers.NewIncidentsHandler(s.cfg, s.incidentsStore, s.responseSvc, s.users, s.audits, s.logger),
		response:      handlers.NewResponseHandler(s.cfg, s.responseSvc, s.incidentsStore, s.evidenceStore, s.logger),
		notifications: handlers.NewNotificationsHandler(s.notifications),
		training:      handlers.NewTrainingHandler(s.training, s.audits),
		logs:          handlers.NewLogsHandler(s.audits),
	}
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then drains
// in-flight requests within shutdownCtx.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Router(),
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Infof("listening on %s", s.cfg.ListenAddr)
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.EffectiveStoreTimeout())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
