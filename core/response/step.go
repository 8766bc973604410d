package response

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Mutations on a Step operate purely in memory and record every change as a
// log entry. Invalid input (empty text, unknown ids, bad status values) is a
// silent no-op, reported through the ok return; nothing here touches
// persistence. Authorization is the caller's job.

const (
	LogStatusChanged    = "Status Changed"
	LogActionAdded      = "Action Added"
	LogActionCompleted  = "Action Completed"
	LogActionReopened   = "Action Reopened"
	LogNotesUpdated     = "Notes Updated"
	LogEvidenceUploaded = "Evidence Uploaded"
)

// SetStatus applies a caller-directed status transition. Transitions are not
// validated against a forward-only order: reopening a completed step is
// allowed and shows up in the log trail. CompletedAt is set exactly when the
// new status is completed and cleared otherwise.
func (s *Step) SetStatus(actor Actor, newStatus Status) (LogEntry, bool) {
	st := normalizeStatus(newStatus)
	if !st.Valid() {
		return LogEntry{}, false
	}
	s.Status = st
	if st == StatusCompleted {
		now := time.Now().UTC()
		s.CompletedAt = &now
	} else {
		s.CompletedAt = nil
	}
	entry := s.appendLog(actor, LogStatusChanged, fmt.Sprintf("Step status changed to %s", st))
	return entry, true
}

// AddAction appends a new unchecked checklist item. Empty or whitespace-only
// descriptions are ignored.
func (s *Step) AddAction(actor Actor, description string) (*Action, LogEntry, bool) {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return nil, LogEntry{}, false
	}
	action := Action{
		ID:          uuid.Must(uuid.NewV4()).String(),
		Description: desc,
		CreatedAt:   time.Now().UTC(),
	}
	s.Actions = append(s.Actions, action)
	entry := s.appendLog(actor, LogActionAdded, desc)
	return &s.Actions[len(s.Actions)-1], entry, true
}

// ToggleAction flips an item's completion state. Completing stamps
// CompletedAt/CompletedBy; reopening clears both. Unknown ids are ignored.
func (s *Step) ToggleAction(actor Actor, actionID string) (*Action, LogEntry, bool) {
	action := s.findAction(actionID)
	if action == nil {
		return nil, LogEntry{}, false
	}
	if action.Completed {
		action.Completed = false
		action.CompletedAt = nil
		action.CompletedBy = ""
		entry := s.appendLog(actor, LogActionReopened, action.Description)
		return action, entry, true
	}
	now := time.Now().UTC()
	action.Completed = true
	action.CompletedAt = &now
	action.CompletedBy = actor.Name
	entry := s.appendLog(actor, LogActionCompleted, action.Description)
	return action, entry, true
}

// UpdateNotes replaces the step's free-text notes. Content is not validated.
func (s *Step) UpdateNotes(actor Actor, text string) LogEntry {
	s.Notes = text
	return s.appendLog(actor, LogNotesUpdated, "")
}

// AttachEvidence records an already-uploaded file reference. The caller is
// responsible for uploading first; a failed upload must never reach here, so
// the evidence list only ever reflects successful uploads.
func (s *Step) AttachEvidence(actor Actor, ev Evidence) (Evidence, LogEntry) {
	if ev.ID == "" {
		ev.ID = uuid.Must(uuid.NewV4()).String()
	}
	if ev.UploadedAt.IsZero() {
		ev.UploadedAt = time.Now().UTC()
	}
	if ev.UploadedBy == "" {
		ev.UploadedBy = actor.Name
	}
	s.Evidence = append(s.Evidence, ev)
	entry := s.appendLog(actor, LogEvidenceUploaded, ev.Filename)
	return ev, entry
}

func (s *Step) appendLog(actor Actor, action, details string) LogEntry {
	entry := LogEntry{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		User:      actor.Name,
		Details:   details,
	}
	s.Logs = append(s.Logs, entry)
	return entry
}

// findAction returns the checklist item with the given id, or nil.
func (s *Step) findAction(actionID string) *Action {
	for i := range s.Actions {
		if s.Actions[i].ID == actionID {
			return &s.Actions[i]
		}
	}
	return nil
}
