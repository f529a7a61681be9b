package reporter

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"prepd/pkg/model"
	"prepd/pkg/store"
	"prepd/services/registry"
)

type fixture struct {
	reporter *Reporter
	store    *store.MemoryStore
	machine  model.Machine
	tool     model.ProductivityTool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()

	tool := model.ProductivityTool{ID: uuid.New(), Name: "Office Suite"}
	if err := st.SaveTool(ctx, &tool); err != nil {
		t.Fatalf("SaveTool: %v", err)
	}
	dept := model.Department{ID: uuid.New(), Name: "Engineering", Tools: []model.ProductivityTool{tool}}
	if err := st.SaveDepartment(ctx, &dept); err != nil {
		t.Fatalf("SaveDepartment: %v", err)
	}

	reg, err := registry.New(st)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	res, err := reg.CheckIn(ctx, registry.CheckInRequest{Hostname: "ws-report"})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if _, err := reg.AssignDepartment(ctx, res.Machine.ID, dept.ID); err != nil {
		t.Fatalf("AssignDepartment: %v", err)
	}

	rep, err := New(st)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{reporter: rep, store: st, machine: res.Machine, tool: tool}
}

func TestSubmitFailedMarksError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	overall, err := f.reporter.Submit(ctx, Report{
		MachineID: f.machine.ID,
		Status:    model.ReportFailed,
		Tools: []ToolOutcome{
			{ToolID: f.tool.ID, Name: f.tool.Name, Status: "failed", Detail: "exit status 1603"},
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if overall != model.MachineError {
		t.Fatalf("overall = %s, want ERROR", overall)
	}

	statuses, err := f.store.ListToolStatuses(ctx, f.machine.ID)
	if err != nil {
		t.Fatalf("ListToolStatuses: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Status != model.ToolFailed {
		t.Fatalf("tool statuses = %+v", statuses)
	}
	if statuses[0].Detail != "exit status 1603" {
		t.Fatalf("detail = %q", statuses[0].Detail)
	}
}

func TestSubmitCompletedRecomputes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// No checklist items exist, so a completed run leaves the machine
	// IN_PROGRESS rather than vacuously READY.
	overall, err := f.reporter.Submit(ctx, Report{
		MachineID: f.machine.ID,
		Status:    model.ReportCompleted,
		Tools: []ToolOutcome{
			{ToolID: f.tool.ID, Name: f.tool.Name, Status: "installed"},
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if overall != model.MachineInProgress {
		t.Fatalf("overall = %s, want IN_PROGRESS", overall)
	}

	statuses, _ := f.store.ListToolStatuses(ctx, f.machine.ID)
	if len(statuses) != 1 || statuses[0].Status != model.ToolInstalled {
		t.Fatalf("tool statuses = %+v", statuses)
	}
}

func TestSubmitCompletedClearsError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.reporter.Submit(ctx, Report{
		MachineID: f.machine.ID,
		Status:    model.ReportFailed,
	}); err != nil {
		t.Fatalf("failed Submit: %v", err)
	}

	overall, err := f.reporter.Submit(ctx, Report{
		MachineID: f.machine.ID,
		Status:    model.ReportCompleted,
	})
	if err != nil {
		t.Fatalf("completed Submit: %v", err)
	}
	if overall != model.MachineInProgress {
		t.Fatalf("overall = %s, want IN_PROGRESS after recovery", overall)
	}
}

func TestSubmitByHostname(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.reporter.Submit(ctx, Report{
		Hostname: "WS-REPORT",
		Status:   model.ReportCompleted,
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	reports, err := f.reporter.History(ctx, f.machine.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
}

func TestSubmitAppendsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, status := range []model.ReportStatus{model.ReportFailed, model.ReportCompleted} {
		if _, err := f.reporter.Submit(ctx, Report{MachineID: f.machine.ID, Status: status}); err != nil {
			t.Fatalf("Submit(%s): %v", status, err)
		}
	}

	reports, err := f.reporter.History(ctx, f.machine.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	if reports[0].Status != model.ReportFailed || reports[1].Status != model.ReportCompleted {
		t.Fatalf("history out of order: %s, %s", reports[0].Status, reports[1].Status)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.reporter.Submit(ctx, Report{MachineID: f.machine.ID, Status: "done"}); !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("err = %v, want ErrInvalidOutcome", err)
	}
	if _, err := f.reporter.Submit(ctx, Report{MachineID: uuid.New(), Status: model.ReportCompleted}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestToolStatusMapping(t *testing.T) {
	tests := []struct {
		in   string
		want model.ToolInstallStatus
	}{
		{"installed", model.ToolInstalled},
		{"SUCCESS", model.ToolInstalled},
		{"failed", model.ToolFailed},
		{"Error", model.ToolFailed},
		{"skipped", model.ToolPending},
		{"", model.ToolPending},
	}
	for _, tc := range tests {
		if got := toolStatus(tc.in); got != tc.want {
			t.Fatalf("toolStatus(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
