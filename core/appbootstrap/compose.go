package appbootstrap

import (
	"safeshield/api"
	"safeshield/config"
	"safeshield/core/auth"
	"safeshield/core/evidence"
	"safeshield/core/notify"
	"safeshield/core/rbac"
	"safeshield/core/response"
	"safeshield/core/store"
	"safeshield/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	users      store.UsersStore
	workers    []api.BackgroundWorker
}

func composeRuntime(cfg *config.AppConfig, db *store.DB, logger *utils.Logger) (*runtimeComposition, error) {
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	audits := store.NewAuditStore(db)
	incidents := store.NewIncidentsStore(db)
	notifications := store.NewNotificationsStore(db)
	training := store.NewTrainingStore(db)
	responseStore := store.NewResponseStore(db)
	responseQueries := store.NewResponseQueries(db)

	policy := rbac.NewPolicy(rbac.DefaultRoles())
	sessionManager := auth.NewSessionManager(sessions, cfg, logger)

	uploads, err := evidence.NewStorage(cfg.Evidence, logger)
	if err != nil {
		return nil, err
	}
	notifier := notify.NewService(cfg.Notifications, notifications, incidents, logger)
	responseSvc := response.NewService(responseStore, uploads, audits, notifier, cfg.EffectiveStoreTimeout(), logger)
	scheduler := notify.NewScheduler(cfg.Notifications, notifier, responseQueries, notifications, sessions, logger)

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Users:          users,
			Sessions:       sessions,
			Audits:         audits,
			IncidentsStore: incidents,
			Notifications:  notifications,
			Training:       training,
			ResponseSvc:    responseSvc,
			Evidence:       uploads,
			SessionManager: sessionManager,
			Policy:         policy,
		},
		users:   users,
		workers: []api.BackgroundWorker{scheduler},
	}, nil
}
