package response

import (
	"context"
	"fmt"
	"io"
	"time"

	"safeshield/core/utils"
)

// Store is the persistence collaborator for tracker state. Implementations
// must pair each step mutation with its log entry in one transaction and be
// safe to retry (idempotent writes keyed by generated ids).
type Store interface {
	LoadSteps(ctx context.Context, incidentID string) ([]Step, error)
	SaveStep(ctx context.Context, incidentID string, step *Step, expectedVersion int, entry LogEntry) error
	AppendAction(ctx context.Context, incidentID string, stepID StepID, action Action, entry LogEntry) error
	UpdateAction(ctx context.Context, incidentID string, stepID StepID, action Action, entry LogEntry) error
	AppendEvidence(ctx context.Context, incidentID string, stepID StepID, ev Evidence, entry LogEntry) error
	AppendLog(ctx context.Context, incidentID string, stepID StepID, entry LogEntry) error
}

// UploadResult is what the evidence-store collaborator returns for a stored
// file. The core never manages raw bytes, only this reference.
type UploadResult struct {
	FileURL  string
	FileType string
	FileSize int64
	SHA256   string
}

// EvidenceUploader is the external evidence-store collaborator.
type EvidenceUploader interface {
	UploadFile(ctx context.Context, incidentID string, stepID StepID, filename string, content io.Reader) (*UploadResult, error)
	Remove(ctx context.Context, fileURL string) error
}

// AuditLogger records global audit entries; satisfied by store.AuditStore.
type AuditLogger interface {
	Log(ctx context.Context, username, action, details string)
}

// Event describes a response mutation other components may react to.
type Event struct {
	IncidentID string
	StepID     StepID
	Kind       string
	Actor      Actor
	Detail     string
}

const (
	EventStatusChanged    = "response.status_changed"
	EventEvidenceUploaded = "response.evidence_uploaded"
)

// Notifier fans response events out to interested users.
type Notifier interface {
	ResponseEvent(ctx context.Context, ev Event)
}

// Service orchestrates tracker mutations with write-through persistence:
// the store write happens inside the request, and a failed write surfaces as
// an error with no state handed back, so callers never observe a mutation
// that was not saved.
type Service struct {
	store    Store
	uploads  EvidenceUploader
	audits   AuditLogger
	notifier Notifier
	timeout  time.Duration
	logger   *utils.Logger
}

func NewService(st Store, uploads EvidenceUploader, audits AuditLogger, notifier Notifier, timeout time.Duration, logger *utils.Logger) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{store: st, uploads: uploads, audits: audits, notifier: notifier, timeout: timeout, logger: logger}
}

func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Load fetches persisted state and merges it onto the canonical five-step
// template set. An incident with no persisted rows yields a fresh tracker
// with every step pending; that is not an error.
func (s *Service) Load(ctx context.Context, incidentID string) (*Tracker, error) {
	opctx, cancel := s.opCtx(ctx)
	defer cancel()
	persisted, err := s.store.LoadSteps(opctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("load tracker %s: %w", incidentID, err)
	}
	t := NewTracker(incidentID)
	t.Merge(persisted)
	return t, nil
}

// UpdateStepStatus applies a status transition to one step and persists it
// together with its log entry. Unknown step ids and invalid statuses are
// no-ops returning the unchanged tracker.
func (s *Service) UpdateStepStatus(ctx context.Context, actor Actor, incidentID string, stepID StepID, status Status) (*Tracker, error) {
	t, err := s.Load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	step := t.Step(stepID)
	if step == nil {
		return t, nil
	}
	entry, ok := step.SetStatus(actor, status)
	if !ok {
		return t, nil
	}
	expected := step.Version
	opctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.SaveStep(opctx, incidentID, step, expected, entry); err != nil {
		return nil, fmt.Errorf("save step %s/%s: %w", incidentID, stepID, err)
	}
	step.Version = expected + 1
	s.audits.Log(ctx, actor.Name, "response.step_status", fmt.Sprintf("incident=%s step=%s status=%s", incidentID, stepID, step.Status))
	s.notify(ctx, Event{IncidentID: incidentID, StepID: stepID, Kind: EventStatusChanged, Actor: actor, Detail: string(step.Status)})
	return t, nil
}

// AddAction appends a checklist item to a step. Empty descriptions and
// unknown step ids are silent no-ops.
func (s *Service) AddAction(ctx context.Context, actor Actor, incidentID string, stepID StepID, description string) (*Tracker, error) {
	t, err := s.Load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	step := t.Step(stepID)
	if step == nil {
		return t, nil
	}
	action, entry, ok := step.AddAction(actor, description)
	if !ok {
		return t, nil
	}
	opctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.AppendAction(opctx, incidentID, stepID, *action, entry); err != nil {
		return nil, fmt.Errorf("append action %s/%s: %w", incidentID, stepID, err)
	}
	s.audits.Log(ctx, actor.Name, "response.action_added", fmt.Sprintf("incident=%s step=%s", incidentID, stepID))
	return t, nil
}

// ToggleAction flips a checklist item's completion state. Unknown action
// ids are silent no-ops.
func (s *Service) ToggleAction(ctx context.Context, actor Actor, incidentID string, stepID StepID, actionID string) (*Tracker, error) {
	t, err := s.Load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	step := t.Step(stepID)
	if step == nil {
		return t, nil
	}
	action, entry, ok := step.ToggleAction(actor, actionID)
	if !ok {
		return t, nil
	}
	opctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.UpdateAction(opctx, incidentID, stepID, *action, entry); err != nil {
		return nil, fmt.Errorf("toggle action %s/%s: %w", incidentID, stepID, err)
	}
	s.audits.Log(ctx, actor.Name, "response.action_toggled", fmt.Sprintf("incident=%s step=%s completed=%t", incidentID, stepID, action.Completed))
	return t, nil
}

// UpdateNotes replaces a step's notes and persists the new text with its
// log entry.
func (s *Service) UpdateNotes(ctx context.Context, actor Actor, incidentID string, stepID StepID, text string) (*Tracker, error) {
	t, err := s.Load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	step := t.Step(stepID)
	if step == nil {
		return t, nil
	}
	entry := step.UpdateNotes(actor, text)
	expected := step.Version
	opctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.SaveStep(opctx, incidentID, step, expected, entry); err != nil {
		return nil, fmt.Errorf("save notes %s/%s: %w", incidentID, stepID, err)
	}
	step.Version = expected + 1
	s.audits.Log(ctx, actor.Name, "response.notes_updated", fmt.Sprintf("incident=%s step=%s", incidentID, stepID))
	return t, nil
}

// AttachEvidence uploads the file through the evidence-store collaborator
// first and records the reference only on success, so a failed upload
// leaves the step untouched. If recording fails after a successful upload
// the stored file is removed again, keeping the pair atomic.
func (s *Service) AttachEvidence(ctx context.Context, actor Actor, incidentID string, stepID StepID, filename string, content io.Reader) (*Tracker, error) {
	t, err := s.Load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	step := t.Step(stepID)
	if step == nil {
		return t, nil
	}
	opctx, cancel := s.opCtx(ctx)
	defer cancel()
	result, err := s.uploads.UploadFile(opctx, incidentID, stepID, filename, content)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	ev, entry := step.AttachEvidence(actor, Evidence{
		Filename: filename,
		FileURL:  result.FileURL,
		FileType: result.FileType,
		FileSize: result.FileSize,
		SHA256:   result.SHA256,
	})
	if err := s.store.AppendEvidence(opctx, incidentID, stepID, ev, entry); err != nil {
		if rmErr := s.uploads.Remove(opctx, result.FileURL); rmErr != nil {
			s.logger.Errorf("orphaned evidence file %s after failed append: %v", result.FileURL, rmErr)
		}
		return nil, fmt.Errorf("record evidence %s: %w", filename, err)
	}
	s.audits.Log(ctx, actor.Name, "response.evidence_uploaded", fmt.Sprintf("incident=%s step=%s file=%s", incidentID, stepID, filename))
	s.notify(ctx, Event{IncidentID: incidentID, StepID: stepID, Kind: EventEvidenceUploaded, Actor: actor, Detail: filename})
	return t, nil
}

// AddLog appends a standalone log entry to a step and persists it. Used for
// annotations that are not tied to another mutation.
func (s *Service) AddLog(ctx context.Context, actor Actor, incidentID string, stepID StepID, action, details string) (*Tracker, error) {
	t, err := s.Load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	step := t.Step(stepID)
	if step == nil {
		return t, nil
	}
	entry := step.appendLog(actor, action, details)
	opctx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := s.store.AppendLog(opctx, incidentID, stepID, entry); err != nil {
		return nil, fmt.Errorf("append log %s/%s: %w", incidentID, stepID, err)
	}
	return t, nil
}

// Report loads the tracker and produces its exportable snapshot.
func (s *Service) Report(ctx context.Context, incidentID string) (Report, error) {
	t, err := s.Load(ctx, incidentID)
	if err != nil {
		return Report{}, err
	}
	return NewSummary(t).GenerateReport(), nil
}

func (s *Service) notify(ctx context.Context, ev Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.ResponseEvent(ctx, ev)
}
