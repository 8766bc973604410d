package notify

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"safeshield/config"
	"safeshield/core/store"
	"safeshield/core/utils"
)

// Scheduler runs the periodic maintenance jobs: the stale-step digest on the
// configured cron schedule, plus hourly cleanup of expired sessions and old
// notifications.
type Scheduler struct {
	cfg           config.NotificationsConfig
	svc           *Service
	queries       store.ResponseQueries
	notifications store.NotificationsStore
	sessions      store.SessionStore
	logger        *utils.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(cfg config.NotificationsConfig, svc *Service, queries store.ResponseQueries, notifications store.NotificationsStore, sessions store.SessionStore, logger *utils.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, svc: svc, queries: queries, notifications: notifications, sessions: sessions, logger: logger}
}

func (s *Scheduler) StartWithContext(ctx context.Context) error {
	if s == nil || !s.cfg.Enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)

	c := cron.New(cron.WithLocation(time.UTC))
	schedule := s.cfg.DigestSchedule
	if schedule == "" {
		schedule = "0 8 * * *"
	}
	if _, err := c.AddFunc(schedule, func() { s.RunDigest(runCtx, time.Now().UTC()) }); err != nil {
		cancel()
		return err
	}
	if _, err := c.AddFunc("@every 1h", func() { s.RunCleanup(runCtx, time.Now().UTC()) }); err != nil {
		cancel()
		return err
	}
	c.Start()
	s.cron = c
	s.cancel = cancel
	s.running = true
	s.logger.Infof("notification scheduler started, digest schedule %q", schedule)
	return nil
}

func (s *Scheduler) StopWithContext(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if !wasRunning || c == nil {
		return nil
	}
	cancel()
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunDigest notifies owners of steps stuck in-progress longer than the
// configured staleness window.
func (s *Scheduler) RunDigest(ctx context.Context, now time.Time) {
	staleAfter := time.Duration(s.cfg.StaleStepHours) * time.Hour
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	stale, err := s.queries.StaleSteps(ctx, now.Add(-staleAfter))
	if err != nil {
		s.logger.Errorf("stale-step digest: %v", err)
		return
	}
	for i := range stale {
		s.svc.NotifyStaleStep(ctx, stale[i])
	}
	if len(stale) > 0 {
		s.logger.Infof("stale-step digest: %d reminder(s) sent", len(stale))
	}
}

// RunCleanup drops expired sessions and notifications past retention.
func (s *Scheduler) RunCleanup(ctx context.Context, now time.Time) {
	if n, err := s.sessions.DeleteExpired(ctx, now); err != nil {
		s.logger.Errorf("session cleanup: %v", err)
	} else if n > 0 {
		s.logger.Infof("session cleanup: %d expired session(s) removed", n)
	}
	retention := time.Duration(s.cfg.RetentionDays) * 24 * time.Hour
	if retention <= 0 {
		return
	}
	if n, err := s.notifications.DeleteOlderThan(ctx, now.Add(-retention)); err != nil {
		s.logger.Errorf("notification cleanup: %v", err)
	} else if n > 0 {
		s.logger.Infof("notification cleanup: %d old notification(s) removed", n)
	}
}
