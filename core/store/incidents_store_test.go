package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCreateIncidentAssignsSequentialRegNo(t *testing.T) {
	db := newTestDB(t)
	is := NewIncidentsStore(db)
	ctx := context.Background()
	year := time.Now().UTC().Year()

	first := &Incident{Title: "Phishing campaign", Severity: "high", ReporterID: "u1"}
	if _, err := is.CreateIncident(ctx, first, "INC-{year}-{seq:05}"); err != nil {
		t.Fatalf("create first: %v", err)
	}
	second := &Incident{Title: "Ransomware on fileserver", Severity: "critical", ReporterID: "u1"}
	if _, err := is.CreateIncident(ctx, second, "INC-{year}-{seq:05}"); err != nil {
		t.Fatalf("create second: %v", err)
	}

	if want := fmt.Sprintf("INC-%d-00001", year); first.RegNo != want {
		t.Fatalf("first reg_no %q, want %q", first.RegNo, want)
	}
	if want := fmt.Sprintf("INC-%d-00002", year); second.RegNo != want {
		t.Fatalf("second reg_no %q, want %q", second.RegNo, want)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("ids must be distinct uuids")
	}
	if first.Status != "open" || first.Version != 1 {
		t.Fatalf("defaults not applied: %+v", first)
	}
}

func TestCreateIncidentCustomRegFormat(t *testing.T) {
	db := newTestDB(t)
	is := NewIncidentsStore(db)
	ctx := context.Background()
	year := time.Now().UTC().Year()

	inc := &Incident{Title: "Test", Severity: "low", ReporterID: "u1"}
	if _, err := is.CreateIncident(ctx, inc, "CASE/{year}/{seq}"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if want := fmt.Sprintf("CASE/%d/1", year); inc.RegNo != want {
		t.Fatalf("reg_no %q, want %q", inc.RegNo, want)
	}
}

func TestUpdateIncidentOptimisticConcurrency(t *testing.T) {
	db := newTestDB(t)
	is := NewIncidentsStore(db)
	ctx := context.Background()

	inc := &Incident{Title: "Stolen laptop", Severity: "medium", ReporterID: "u1"}
	id, err := is.CreateIncident(ctx, inc, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	inc.Status = "investigating"
	if err := is.UpdateIncident(ctx, inc, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	if inc.Version != 2 {
		t.Fatalf("version not bumped: %d", inc.Version)
	}

	stale := *inc
	stale.Status = "resolved"
	if err := is.UpdateIncident(ctx, &stale, 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := is.GetIncident(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "investigating" || got.Version != 2 {
		t.Fatalf("stale write leaked: %+v", got)
	}
}

func TestSoftDeleteHidesIncidentFromList(t *testing.T) {
	db := newTestDB(t)
	is := NewIncidentsStore(db)
	ctx := context.Background()

	keep := &Incident{Title: "Keep me", Severity: "low", ReporterID: "u1"}
	if _, err := is.CreateIncident(ctx, keep, ""); err != nil {
		t.Fatalf("create keep: %v", err)
	}
	gone := &Incident{Title: "Delete me", Severity: "low", ReporterID: "u1"}
	id, err := is.CreateIncident(ctx, gone, "")
	if err != nil {
		t.Fatalf("create gone: %v", err)
	}

	if err := is.SoftDeleteIncident(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Deleting twice is a conflict, not a silent success.
	if err := is.SoftDeleteIncident(ctx, id); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on double delete, got %v", err)
	}

	list, err := is.ListIncidents(ctx, IncidentFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Keep me" {
		t.Fatalf("soft-deleted incident leaked into list: %+v", list)
	}

	all, err := is.ListIncidents(ctx, IncidentFilter{IncludeDeleted: true})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("IncludeDeleted must surface both, got %d", len(all))
	}

	got, err := is.GetIncident(ctx, id)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if got == nil || got.DeletedAt == nil {
		t.Fatalf("deleted incident must still resolve by id with deleted_at set")
	}
}

func TestListIncidentsFilters(t *testing.T) {
	db := newTestDB(t)
	is := NewIncidentsStore(db)
	ctx := context.Background()

	assignee := "u2"
	rows := []*Incident{
		{Title: "Phishing wave", Severity: "high", Status: "open", ReporterID: "u1"},
		{Title: "Malware beacon", Severity: "critical", Status: "investigating", ReporterID: "u1", AssigneeID: &assignee},
		{Title: "Lost badge", Severity: "low", Status: "closed", ReporterID: "u3"},
	}
	for _, inc := range rows {
		if _, err := is.CreateIncident(ctx, inc, ""); err != nil {
			t.Fatalf("create %q: %v", inc.Title, err)
		}
	}

	bySeverity, err := is.ListIncidents(ctx, IncidentFilter{Severity: "critical"})
	if err != nil {
		t.Fatalf("severity filter: %v", err)
	}
	if len(bySeverity) != 1 || bySeverity[0].Title != "Malware beacon" {
		t.Fatalf("severity filter wrong: %+v", bySeverity)
	}

	byAssignee, err := is.ListIncidents(ctx, IncidentFilter{AssignedUserID: "u2"})
	if err != nil {
		t.Fatalf("assignee filter: %v", err)
	}
	if len(byAssignee) != 1 || byAssignee[0].Title != "Malware beacon" {
		t.Fatalf("assignee filter wrong: %+v", byAssignee)
	}

	bySearch, err := is.ListIncidents(ctx, IncidentFilter{Search: "badge"})
	if err != nil {
		t.Fatalf("search filter: %v", err)
	}
	if len(bySearch) != 1 || bySearch[0].Title != "Lost badge" {
		t.Fatalf("search filter wrong: %+v", bySearch)
	}

	bySearchReg, err := is.ListIncidents(ctx, IncidentFilter{Search: rows[0].RegNo})
	if err != nil {
		t.Fatalf("reg_no search: %v", err)
	}
	if len(bySearchReg) != 1 || bySearchReg[0].ID != rows[0].ID {
		t.Fatalf("reg_no search wrong: %+v", bySearchReg)
	}
}
