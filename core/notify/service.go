package notify

import (
	"context"
	"fmt"

	"safeshield/config"
	"safeshield/core/response"
	"safeshield/core/store"
	"safeshield/core/utils"
)

// Service turns response events into per-user notifications. Delivery is
// best-effort: a failed insert is logged, never surfaced to the mutation
// that triggered it.
type Service struct {
	cfg           config.NotificationsConfig
	notifications store.NotificationsStore
	incidents     store.IncidentsStore
	logger        *utils.Logger
}

func NewService(cfg config.NotificationsConfig, notifications store.NotificationsStore, incidents store.IncidentsStore, logger *utils.Logger) *Service {
	return &Service{cfg: cfg, notifications: notifications, incidents: incidents, logger: logger}
}

// ResponseEvent notifies the incident's reporter and assignee about a step
// mutation, skipping whoever performed it.
func (s *Service) ResponseEvent(ctx context.Context, ev response.Event) {
	if !s.cfg.Enabled {
		return
	}
	inc, err := s.incidents.GetIncident(ctx, ev.IncidentID)
	if err != nil || inc == nil {
		if err != nil {
			s.logger.Errorf("notify: resolve incident %s: %v", ev.IncidentID, err)
		}
		return
	}
	title, body := describe(ev, inc.RegNo)
	for _, userID := range recipients(inc, ev.Actor.ID) {
		s.deliver(ctx, store.Notification{
			UserID:     userID,
			Kind:       ev.Kind,
			Title:      title,
			Body:       body,
			IncidentID: inc.ID,
		})
	}
}

// NotifyStaleStep reminds the step assignee (falling back to the incident
// assignee, then the reporter) that a step has sat in-progress too long.
func (s *Service) NotifyStaleStep(ctx context.Context, st store.StaleStep) {
	userID := st.AssigneeID
	if userID == "" {
		userID = st.ReporterID
	}
	if userID == "" {
		return
	}
	s.deliver(ctx, store.Notification{
		UserID:     userID,
		Kind:       "response.step_stale",
		Title:      fmt.Sprintf("%s: %s step needs attention", st.RegNo, st.StepID),
		Body:       fmt.Sprintf("Step %q of incident %s (%s) has been in progress since %s.", st.StepID, st.RegNo, st.Title, st.UpdatedAt.Format("2006-01-02 15:04 MST")),
		IncidentID: st.IncidentID,
	})
}

func (s *Service) deliver(ctx context.Context, n store.Notification) {
	if err := s.notifications.CreateNotification(ctx, &n); err != nil {
		s.logger.Errorf("notify: deliver to %s: %v", n.UserID, err)
	}
}

func describe(ev response.Event, regNo string) (title, body string) {
	switch ev.Kind {
	case response.EventStatusChanged:
		title = fmt.Sprintf("%s: %s step is now %s", regNo, ev.StepID, ev.Detail)
		body = fmt.Sprintf("%s changed the %s step to %s.", ev.Actor.Name, ev.StepID, ev.Detail)
	case response.EventEvidenceUploaded:
		title = fmt.Sprintf("%s: evidence added to %s step", regNo, ev.StepID)
		body = fmt.Sprintf("%s uploaded %q to the %s step.", ev.Actor.Name, ev.Detail, ev.StepID)
	default:
		title = fmt.Sprintf("%s: response updated", regNo)
		body = fmt.Sprintf("%s updated the %s step.", ev.Actor.Name, ev.StepID)
	}
	return title, body
}

func recipients(inc *store.Incident, actorID string) []string {
	var out []string
	seen := map[string]struct{}{actorID: {}}
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	add(inc.ReporterID)
	if inc.AssigneeID != nil {
		add(*inc.AssigneeID)
	}
	return out
}
