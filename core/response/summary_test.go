package response

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTotalDurationWithoutCompletions(t *testing.T) {
	tr := NewTracker("inc-1")
	if got := NewSummary(tr).TotalDuration(); got != "N/A" {
		t.Fatalf("expected N/A, got %q", got)
	}
}

func TestTotalDurationIsCompletionSpread(t *testing.T) {
	tr := NewTracker("inc-1")
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	last := first.Add(26*time.Hour + 30*time.Minute)
	middle := first.Add(2 * time.Hour)

	tr.Step(StepDetect).CompletedAt = &first
	tr.Step(StepDetect).Status = StatusCompleted
	tr.Step(StepContain).CompletedAt = &middle
	tr.Step(StepContain).Status = StatusCompleted
	tr.Step(StepCommunicate).CompletedAt = &last
	tr.Step(StepCommunicate).Status = StatusCompleted

	if got := NewSummary(tr).TotalDuration(); got != "26h 30m" {
		t.Fatalf("expected 26h 30m, got %q", got)
	}
}

func TestTotalDurationSingleCompletion(t *testing.T) {
	tr := NewTracker("inc-1")
	now := time.Now().UTC()
	tr.Step(StepDetect).CompletedAt = &now
	tr.Step(StepDetect).Status = StatusCompleted
	if got := NewSummary(tr).TotalDuration(); got != "0h 0m" {
		t.Fatalf("single completion: got %q", got)
	}
}

func TestGenerateReportContract(t *testing.T) {
	tr := NewTracker("inc-42")
	actor := Actor{ID: "u1", Name: "alice"}
	step := tr.Step(StepDetect)
	step.SetStatus(actor, StatusCompleted)
	action, _, _ := step.AddAction(actor, "review SIEM alerts")
	step.ToggleAction(actor, action.ID)
	step.AttachEvidence(actor, Evidence{Filename: "network_logs.txt", FileURL: "evidence://x", FileSize: 1024})
	step.UpdateNotes(actor, "confirmed phishing")

	report := NewSummary(tr).GenerateReport()
	if report.IncidentID != "inc-42" {
		t.Fatalf("incident id %q", report.IncidentID)
	}
	if report.Summary.CompletedSteps != 1 || report.Summary.TotalSteps != 5 {
		t.Fatalf("step counts wrong: %+v", report.Summary)
	}
	if report.Summary.CompletedActions != 1 || report.Summary.TotalActions != 1 {
		t.Fatalf("action counts wrong: %+v", report.Summary)
	}
	if report.Summary.EvidenceFiles != 1 {
		t.Fatalf("evidence count wrong: %+v", report.Summary)
	}

	body, err := report.MarshalIndent()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"incidentId", "generatedAt", "summary", "steps"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("report missing key %q", key)
		}
	}
	summary := decoded["summary"].(map[string]any)
	for _, key := range []string{"duration", "completedSteps", "totalSteps", "completedActions", "totalActions", "evidenceFiles"} {
		if _, ok := summary[key]; !ok {
			t.Fatalf("summary missing key %q", key)
		}
	}
	steps := decoded["steps"].([]any)
	if len(steps) != 5 {
		t.Fatalf("report must always carry all 5 steps, got %d", len(steps))
	}
	detect := steps[0].(map[string]any)
	evidenceList := detect["evidence"].([]any)
	if len(evidenceList) != 1 || evidenceList[0] != "network_logs.txt" {
		t.Fatalf("evidence must export filenames only: %v", evidenceList)
	}
	logs := detect["logs"].([]any)
	if len(logs) != 5 {
		t.Fatalf("expected 5 log entries in report, got %d", len(logs))
	}
}

// Full walkthrough covering the complete lifecycle of one incident.
func TestFullResponseWalkthrough(t *testing.T) {
	tr := NewTracker("INC-100")
	alice := Actor{ID: "u1", Name: "alice", Role: "analyst"}

	for _, id := range StepOrder {
		step := tr.Step(id)
		if _, ok := step.SetStatus(alice, StatusInProgress); !ok {
			t.Fatalf("start %s", id)
		}
		action, _, _ := step.AddAction(alice, "work "+string(id))
		if _, _, ok := step.ToggleAction(alice, action.ID); !ok {
			t.Fatalf("toggle %s", id)
		}
		if _, ok := step.SetStatus(alice, StatusCompleted); !ok {
			t.Fatalf("complete %s", id)
		}
	}

	if tr.Progress() != 100 {
		t.Fatalf("progress %d", tr.Progress())
	}
	if tr.OverallStatus() != StatusCompleted {
		t.Fatalf("overall %s", tr.OverallStatus())
	}
	report := NewSummary(tr).GenerateReport()
	if report.Summary.CompletedActions != 5 || report.Summary.TotalActions != 5 {
		t.Fatalf("actions: %+v", report.Summary)
	}
	if report.Summary.Duration == "N/A" {
		t.Fatalf("duration must be concrete after completions")
	}
}
