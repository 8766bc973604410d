package response

// Tracker owns the fixed set of five response steps for one incident. The
// steps always exist, in canonical order; persistence only ever fills in
// their state.
type Tracker struct {
	IncidentID string `json:"incident_id"`
	Steps      []Step `json:"steps"`
}

// NewTracker returns a fresh tracker with all five steps pending and empty.
func NewTracker(incidentID string) *Tracker {
	t := &Tracker{IncidentID: incidentID, Steps: make([]Step, 0, len(StepOrder))}
	for _, id := range StepOrder {
		t.Steps = append(t.Steps, newStepFromTemplate(id))
	}
	return t
}

// Merge overlays persisted step state onto the canonical templates. Steps
// absent from the persisted set stay at their pending defaults. Merging the
// same state twice yields the same tracker, so repeated loads are idempotent.
func (t *Tracker) Merge(persisted []Step) {
	byID := make(map[StepID]Step, len(persisted))
	for _, st := range persisted {
		byID[st.ID] = st
	}
	for i := range t.Steps {
		saved, ok := byID[t.Steps[i].ID]
		if !ok {
			continue
		}
		tpl := t.Steps[i]
		if saved.Status.Valid() {
			tpl.Status = saved.Status
		}
		tpl.Notes = saved.Notes
		tpl.AssignedTo = saved.AssignedTo
		tpl.CompletedAt = saved.CompletedAt
		tpl.Version = saved.Version
		if saved.Actions != nil {
			tpl.Actions = saved.Actions
		}
		if saved.Evidence != nil {
			tpl.Evidence = saved.Evidence
		}
		if saved.Logs != nil {
			tpl.Logs = saved.Logs
		}
		t.Steps[i] = tpl
	}
}

// Step returns the step with the given id, or nil for an unknown id.
func (t *Tracker) Step(id StepID) *Step {
	for i := range t.Steps {
		if t.Steps[i].ID == id {
			return &t.Steps[i]
		}
	}
	return nil
}

// CompletedStepCount counts steps whose status is completed.
func (t *Tracker) CompletedStepCount() int {
	n := 0
	for i := range t.Steps {
		if t.Steps[i].Status == StatusCompleted {
			n++
		}
	}
	return n
}

// Progress returns the percentage of completed steps, 0-100 in steps of 20.
func (t *Tracker) Progress() int {
	if len(t.Steps) == 0 {
		return 0
	}
	return t.CompletedStepCount() * 100 / len(t.Steps)
}

// OverallStatus derives a single status for the whole tracker: completed
// when every step is completed, pending when every step is pending, and
// in-progress for everything in between. It is computed on every read and
// never stored.
func (t *Tracker) OverallStatus() Status {
	completed := 0
	pending := 0
	for i := range t.Steps {
		switch t.Steps[i].Status {
		case StatusCompleted:
			completed++
		case StatusPending:
			pending++
		}
	}
	switch {
	case completed == len(t.Steps) && len(t.Steps) > 0:
		return StatusCompleted
	case pending == len(t.Steps):
		return StatusPending
	default:
		return StatusInProgress
	}
}
