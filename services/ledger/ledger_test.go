package ledger

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
	ledger  *Ledger
	store   *store.MemoryStore
	machine model.Machine
	items   []model.ChecklistItem
}

func newFixture(t *testing.T, cfg Config, itemNames ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()

	items := make([]model.ChecklistItem, 0, len(itemNames))
	for i, name := range itemNames {
		item := model.ChecklistItem{ID: uuid.New(), Name: name, Order: i}
		if err := st.SaveChecklistItem(ctx, &item); err != nil {
			t.Fatalf("SaveChecklistItem: %v", err)
		}
		items = append(items, item)
	}

	reg, err := registry.New(st)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	res, err := reg.CheckIn(ctx, registry.CheckInRequest{Hostname: "ws-ledger"})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	l, err := New(st, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{ledger: l, store: st, machine: res.Machine, items: items}
}

func TestApplyBatchRejectsUnknownItemWholesale(t *testing.T) {
	f := newFixture(t, Config{}, "bios", "domain")
	ctx := context.Background()

	_, err := f.ledger.ApplyBatch(ctx, f.machine.ID, []Entry{
		{ItemID: f.items[0].ID, Status: model.ChecklistCompleted},
		{ItemID: uuid.New(), Status: model.ChecklistCompleted},
	})
	if !errors.Is(err, ErrUnknownChecklistItem) {
		t.Fatalf("err = %v, want ErrUnknownChecklistItem", err)
	}

	// The valid entry must not have been applied.
	rows, err := f.store.ListChecklistStatuses(ctx, f.machine.ID)
	if err != nil {
		t.Fatalf("ListChecklistStatuses: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("partial batch applied: %d rows", len(rows))
	}
}

func TestApplyBatchSkipsUnknownWhenAllowed(t *testing.T) {
	f := newFixture(t, Config{AllowUnknownItems: true}, "bios")
	ctx := context.Background()

	res, err := f.ledger.ApplyBatch(ctx, f.machine.ID, []Entry{
		{ItemID: f.items[0].ID, Status: model.ChecklistCompleted},
		{ItemID: uuid.New(), Status: model.ChecklistCompleted},
	})
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if res.Applied != 1 || res.Skipped != 1 {
		t.Fatalf("applied=%d skipped=%d, want 1/1", res.Applied, res.Skipped)
	}
}

func TestApplyBatchRejectsInvalidStatus(t *testing.T) {
	f := newFixture(t, Config{}, "bios")
	_, err := f.ledger.ApplyBatch(context.Background(), f.machine.ID, []Entry{
		{ItemID: f.items[0].ID, Status: "DONE"},
	})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestApplyBatchUnknownMachine(t *testing.T) {
	f := newFixture(t, Config{}, "bios")
	_, err := f.ledger.ApplyBatch(context.Background(), uuid.New(), []Entry{
		{ItemID: f.items[0].ID, Status: model.ChecklistCompleted},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApplyBatchLastWriteWins(t *testing.T) {
	f := newFixture(t, Config{}, "bios")
	ctx := context.Background()

	res, err := f.ledger.ApplyBatch(ctx, f.machine.ID, []Entry{
		{ItemID: f.items[0].ID, Status: model.ChecklistCompleted},
		{ItemID: f.items[0].ID, Status: model.ChecklistInProgress, Notes: "redo"},
	})
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if res.Applied != 2 {
		t.Fatalf("applied = %d, want 2", res.Applied)
	}
	// A duplicate item surfaces once in the result, with its final value.
	if len(res.Updated) != 1 {
		t.Fatalf("updated = %d rows, want 1", len(res.Updated))
	}
	if res.Updated[0].Status != model.ChecklistInProgress || res.Updated[0].Notes != "redo" {
		t.Fatalf("updated row = %+v, want the later entry", res.Updated[0])
	}

	rows, err := f.store.ListChecklistStatuses(ctx, f.machine.ID)
	if err != nil {
		t.Fatalf("ListChecklistStatuses: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Status != model.ChecklistInProgress || rows[0].Notes != "redo" {
		t.Fatalf("later entry did not win: %+v", rows[0])
	}
}

func TestApplyBatchRecomputesOnce(t *testing.T) {
	f := newFixture(t, Config{}, "bios", "domain")
	ctx := context.Background()

	dept := model.Department{ID: uuid.New(), Name: "Engineering"}
	if err := f.store.SaveDepartment(ctx, &dept); err != nil {
		t.Fatalf("SaveDepartment: %v", err)
	}
	reg, _ := registry.New(f.store)
	if _, err := reg.AssignDepartment(ctx, f.machine.ID, dept.ID); err != nil {
		t.Fatalf("AssignDepartment: %v", err)
	}

	res, err := f.ledger.ApplyBatch(ctx, f.machine.ID, []Entry{
		{ItemID: f.items[0].ID, Status: model.ChecklistCompleted},
		{ItemID: f.items[1].ID, Status: model.ChecklistCompleted},
	})
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if res.OverallStatus != model.MachineReady {
		t.Fatalf("overall = %s, want READY", res.OverallStatus)
	}

	m, _ := f.store.GetMachine(ctx, f.machine.ID)
	if m.OverallStatus != model.MachineReady {
		t.Fatalf("persisted overall = %s, want READY", m.OverallStatus)
	}
}

func TestApplyBatchEmptyStillRecomputes(t *testing.T) {
	f := newFixture(t, Config{}, "bios")
	res, err := f.ledger.ApplyBatch(context.Background(), f.machine.ID, nil)
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if res.Applied != 0 {
		t.Fatalf("applied = %d, want 0", res.Applied)
	}
	if res.OverallStatus != model.MachineInProgress {
		t.Fatalf("overall = %s, want IN_PROGRESS", res.OverallStatus)
	}
}

func TestSnapshotDefaultsToPending(t *testing.T) {
	f := newFixture(t, Config{}, "bios", "domain", "asset-tag")
	ctx := context.Background()

	if _, err := f.ledger.ApplyBatch(ctx, f.machine.ID, []Entry{
		{ItemID: f.items[1].ID, Status: model.ChecklistCompleted},
	}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	snap, err := f.ledger.Snapshot(ctx, f.machine.ID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 3 {
		t.Fatalf("snapshot has %d entries, want 3", len(snap))
	}
	for i, want := range []model.ChecklistStatus{
		model.ChecklistPending,
		model.ChecklistCompleted,
		model.ChecklistPending,
	} {
		if snap[i].Status != want {
			t.Fatalf("snap[%d].Status = %s, want %s", i, snap[i].Status, want)
		}
	}
	// Canonical order follows the catalog sort key, not write order.
	if snap[0].Item.Name != "bios" || snap[2].Item.Name != "asset-tag" {
		t.Fatalf("snapshot not in catalog order: %s, %s, %s",
			snap[0].Item.Name, snap[1].Item.Name, snap[2].Item.Name)
	}
}
