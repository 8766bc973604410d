package response

import (
	"encoding/json"
	"fmt"
	"time"
)

// Summary is a read-only aggregation over a tracker's steps. It never
// mutates step state and never touches persistence.
type Summary struct {
	tracker *Tracker
}

func NewSummary(t *Tracker) *Summary {
	return &Summary{tracker: t}
}

// TotalDuration reports the spread between the earliest and latest step
// completion as "<hours>h <minutes>m", or "N/A" when no step is completed.
// This is the spread of completion timestamps, not incident open-to-close
// time; report consumers depend on the existing semantics.
func (s *Summary) TotalDuration() string {
	var min, max *time.Time
	for i := range s.tracker.Steps {
		at := s.tracker.Steps[i].CompletedAt
		if at == nil {
			continue
		}
		if min == nil || at.Before(*min) {
			min = at
		}
		if max == nil || at.After(*max) {
			max = at
		}
	}
	if min == nil || max == nil {
		return "N/A"
	}
	d := max.Sub(*min)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func (s *Summary) CompletedActionCount() int {
	n := 0
	for i := range s.tracker.Steps {
		for j := range s.tracker.Steps[i].Actions {
			if s.tracker.Steps[i].Actions[j].Completed {
				n++
			}
		}
	}
	return n
}

func (s *Summary) TotalActionCount() int {
	n := 0
	for i := range s.tracker.Steps {
		n += len(s.tracker.Steps[i].Actions)
	}
	return n
}

func (s *Summary) TotalEvidenceCount() int {
	n := 0
	for i := range s.tracker.Steps {
		n += len(s.tracker.Steps[i].Evidence)
	}
	return n
}

// Report is the exportable snapshot of a tracker. Field names and nesting
// are part of the export contract; downstream tooling parses them.
type Report struct {
	IncidentID  string        `json:"incidentId"`
	GeneratedAt time.Time     `json:"generatedAt"`
	Summary     ReportSummary `json:"summary"`
	Steps       []ReportStep  `json:"steps"`
}

type ReportSummary struct {
	Duration         string `json:"duration"`
	CompletedSteps   int    `json:"completedSteps"`
	TotalSteps       int    `json:"totalSteps"`
	CompletedActions int    `json:"completedActions"`
	TotalActions     int    `json:"totalActions"`
	EvidenceFiles    int    `json:"evidenceFiles"`
}

type ReportStep struct {
	ID          StepID         `json:"id"`
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Notes       string         `json:"notes"`
	Actions     []ReportAction `json:"actions"`
	Evidence    []string       `json:"evidence"`
	Logs        []ReportLog    `json:"logs"`
}

type ReportAction struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy string     `json:"completedBy,omitempty"`
}

type ReportLog struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	User      string    `json:"user"`
	Details   string    `json:"details"`
}

// GenerateReport assembles a lossless snapshot of the tracker, excluding
// presentation-only data. Serialization is deterministic: struct field order
// is fixed and steps keep their canonical order.
func (s *Summary) GenerateReport() Report {
	report := Report{
		IncidentID:  s.tracker.IncidentID,
		GeneratedAt: time.Now().UTC(),
		Summary: ReportSummary{
			Duration:         s.TotalDuration(),
			CompletedSteps:   s.tracker.CompletedStepCount(),
			TotalSteps:       len(s.tracker.Steps),
			CompletedActions: s.CompletedActionCount(),
			TotalActions:     s.TotalActionCount(),
			EvidenceFiles:    s.TotalEvidenceCount(),
		},
		Steps: make([]ReportStep, 0, len(s.tracker.Steps)),
	}
	for i := range s.tracker.Steps {
		step := &s.tracker.Steps[i]
		rs := ReportStep{
			ID:          step.ID,
			Name:        step.Name,
			Status:      step.Status,
			CompletedAt: step.CompletedAt,
			Notes:       step.Notes,
			Actions:     make([]ReportAction, 0, len(step.Actions)),
			Evidence:    make([]string, 0, len(step.Evidence)),
			Logs:        make([]ReportLog, 0, len(step.Logs)),
		}
		for j := range step.Actions {
			a := &step.Actions[j]
			rs.Actions = append(rs.Actions, ReportAction{
				ID:          a.ID,
				Description: a.Description,
				Completed:   a.Completed,
				CompletedAt: a.CompletedAt,
				CompletedBy: a.CompletedBy,
			})
		}
		for j := range step.Evidence {
			rs.Evidence = append(rs.Evidence, step.Evidence[j].Filename)
		}
		for j := range step.Logs {
			l := &step.Logs[j]
			rs.Logs = append(rs.Logs, ReportLog{
				Timestamp: l.Timestamp,
				Action:    l.Action,
				User:      l.User,
				Details:   l.Details,
			})
		}
		report.Steps = append(report.Steps, rs)
	}
	return report
}

// MarshalIndent renders the report as the downloadable JSON document.
func (r Report) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
