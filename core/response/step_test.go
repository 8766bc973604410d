package response

import (
	"strings"
	"testing"
)

func TestSetStatusStampsCompletion(t *testing.T) {
	tr := NewTracker("inc-1")
	actor := Actor{ID: "u1", Name: "alice"}
	step := tr.Step(StepDetect)

	entry, ok := step.SetStatus(actor, StatusCompleted)
	if !ok {
		t.Fatalf("transition rejected")
	}
	if step.CompletedAt == nil {
		t.Fatalf("completed_at not stamped")
	}
	if entry.Action != LogStatusChanged || entry.User != "alice" {
		t.Fatalf("log entry wrong: %+v", entry)
	}
	if !strings.Contains(entry.Details, "completed") {
		t.Fatalf("details missing status: %q", entry.Details)
	}

	// Reopening is allowed and clears the completion stamp.
	if _, ok := step.SetStatus(actor, StatusInProgress); !ok {
		t.Fatalf("backward transition rejected")
	}
	if step.CompletedAt != nil {
		t.Fatalf("completed_at not cleared on reopen")
	}
	if len(step.Logs) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(step.Logs))
	}
}

func TestSetStatusInvalidIsNoop(t *testing.T) {
	tr := NewTracker("inc-1")
	step := tr.Step(StepDetect)
	if _, ok := step.SetStatus(Actor{Name: "alice"}, "done"); ok {
		t.Fatalf("invalid status accepted")
	}
	if step.Status != StatusPending || len(step.Logs) != 0 {
		t.Fatalf("no-op mutated step: %+v", step)
	}
}

func TestAddActionRejectsEmptyDescription(t *testing.T) {
	tr := NewTracker("inc-1")
	step := tr.Step(StepContain)
	actor := Actor{Name: "alice"}
	for _, desc := range []string{"", "   ", "\t\n"} {
		if _, _, ok := step.AddAction(actor, desc); ok {
			t.Fatalf("empty description %q accepted", desc)
		}
	}
	if len(step.Actions) != 0 || len(step.Logs) != 0 {
		t.Fatalf("no-op left traces")
	}

	action, entry, ok := step.AddAction(actor, "  block the C2 domain  ")
	if !ok {
		t.Fatalf("valid action rejected")
	}
	if action.Description != "block the C2 domain" {
		t.Fatalf("description not trimmed: %q", action.Description)
	}
	if action.ID == "" || action.Completed {
		t.Fatalf("new action must be unchecked with an id")
	}
	if entry.Action != LogActionAdded {
		t.Fatalf("wrong log label %q", entry.Action)
	}
}

func TestToggleActionRoundTrip(t *testing.T) {
	tr := NewTracker("inc-1")
	step := tr.Step(StepContain)
	alice := Actor{ID: "u1", Name: "alice"}
	bob := Actor{ID: "u2", Name: "bob"}

	action, _, _ := step.AddAction(alice, "revoke credentials")

	toggled, entry, ok := step.ToggleAction(bob, action.ID)
	if !ok || !toggled.Completed {
		t.Fatalf("first toggle failed")
	}
	if toggled.CompletedBy != "bob" || toggled.CompletedAt == nil {
		t.Fatalf("completion metadata missing: %+v", toggled)
	}
	if entry.Action != LogActionCompleted || entry.Details != "revoke credentials" {
		t.Fatalf("completed log wrong: %+v", entry)
	}

	toggled, entry, ok = step.ToggleAction(alice, action.ID)
	if !ok || toggled.Completed {
		t.Fatalf("second toggle failed")
	}
	if toggled.CompletedBy != "" || toggled.CompletedAt != nil {
		t.Fatalf("completion metadata not cleared: %+v", toggled)
	}
	if entry.Action != LogActionReopened {
		t.Fatalf("reopened log wrong: %+v", entry)
	}
	// One add + two toggles = three log entries.
	if len(step.Logs) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(step.Logs))
	}
}

func TestToggleUnknownActionIsNoop(t *testing.T) {
	tr := NewTracker("inc-1")
	step := tr.Step(StepContain)
	if _, _, ok := step.ToggleAction(Actor{Name: "alice"}, "missing"); ok {
		t.Fatalf("unknown action id accepted")
	}
	if len(step.Logs) != 0 {
		t.Fatalf("no-op logged")
	}
}

func TestUpdateNotesAlwaysLogs(t *testing.T) {
	tr := NewTracker("inc-1")
	step := tr.Step(StepRecover)
	entry := step.UpdateNotes(Actor{Name: "alice"}, "restored from backup")
	if step.Notes != "restored from backup" {
		t.Fatalf("notes not set")
	}
	if entry.Action != LogNotesUpdated {
		t.Fatalf("wrong label %q", entry.Action)
	}
	// Clearing notes is a legal update too.
	step.UpdateNotes(Actor{Name: "alice"}, "")
	if step.Notes != "" || len(step.Logs) != 2 {
		t.Fatalf("clearing notes failed")
	}
}

func TestAttachEvidenceFillsDefaults(t *testing.T) {
	tr := NewTracker("inc-1")
	step := tr.Step(StepDetect)
	ev, entry := step.AttachEvidence(Actor{ID: "u1", Name: "alice"}, Evidence{
		Filename: "network_logs.txt",
		FileURL:  "evidence://inc-1/detect/abc_network_logs.txt",
		FileSize: 1024,
	})
	if ev.ID == "" || ev.UploadedAt.IsZero() || ev.UploadedBy != "alice" {
		t.Fatalf("evidence defaults missing: %+v", ev)
	}
	if entry.Action != LogEvidenceUploaded || entry.Details != "network_logs.txt" {
		t.Fatalf("evidence log wrong: %+v", entry)
	}
	if len(step.Evidence) != 1 {
		t.Fatalf("evidence not attached")
	}
}
