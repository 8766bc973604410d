package response

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a single response step.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// StepID identifies one of the five fixed response phases.
type StepID string

const (
	StepDetect      StepID = "detect"
	StepContain     StepID = "contain"
	StepEradicate   StepID = "eradicate"
	StepRecover     StepID = "recover"
	StepCommunicate StepID = "communicate"
)

// StepOrder is the canonical phase order. It is fixed: steps are never
// added, removed, or reordered.
var StepOrder = [5]StepID{StepDetect, StepContain, StepEradicate, StepRecover, StepCommunicate}

func ValidStepID(id StepID) bool {
	for _, known := range StepOrder {
		if known == id {
			return true
		}
	}
	return false
}

// Actor is the authenticated user performing an operation. It is passed
// explicitly into every mutation so the domain carries no ambient user state.
type Actor struct {
	ID   string
	Name string
	Role string
}

// Action is a checklist item within a step.
type Action struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Evidence is an immutable reference to an externally stored file.
type Evidence struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	FileURL    string    `json:"file_url"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	SHA256     string    `json:"sha256,omitempty"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// LogEntry is one append-only audit record of a step mutation.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	User      string    `json:"user"`
	Details   string    `json:"details"`
}

// Step is one phase of the incident response lifecycle. Name, Description
// and Guidance come from the static template for the step id and are never
// persisted; everything else is state.
type Step struct {
	ID          StepID     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Guidance    string     `json:"guidance,omitempty"`
	Status      Status     `json:"status"`
	Notes       string     `json:"notes"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Actions     []Action   `json:"actions"`
	Evidence    []Evidence `json:"evidence"`
	Logs        []LogEntry `json:"logs"`

	// Version is the optimistic-concurrency counter of the persisted row.
	// Zero means the step has never been written.
	Version int `json:"version"`
}

func normalizeStatus(s Status) Status {
	return Status(strings.ToLower(strings.TrimSpace(string(s))))
}
