// Package ledger applies bulk checklist-status updates. A batch is validated
// as a whole, applied last-write-wins in request order, and followed by
// exactly one status recompute for the machine.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"prepd/pkg/model"
	"prepd/pkg/store"
	"prepd/services/registry"
)

// ErrUnknownChecklistItem rejects a batch referencing an item id not in the
// catalog. Nothing from the batch is applied.
var ErrUnknownChecklistItem = errors.New("ledger: unknown checklist item")

// ErrInvalidStatus rejects a batch carrying a status outside the accepted set.
var ErrInvalidStatus = errors.New("ledger: invalid checklist status")

// Config tunes batch validation.
type Config struct {
	// AllowUnknownItems silently skips entries whose item id is not in the
	// catalog instead of rejecting the whole batch. Off by default: a stale
	// client should find out its catalog is out of date.
	AllowUnknownItems bool
}

// Ledger owns the per-machine checklist state.
type Ledger struct {
	store store.Store
	cfg   Config
}

// New constructs a Ledger.
func New(st store.Store, cfg Config) (*Ledger, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	return &Ledger{store: st, cfg: cfg}, nil
}

// Entry is one requested (item, status) write.
type Entry struct {
	ItemID uuid.UUID
	Status model.ChecklistStatus
	Notes  string
}

// BatchResult summarizes an applied batch. Updated holds the resulting row
// per distinct item, in first-seen batch order; a duplicate item id surfaces
// once with its final value.
type BatchResult struct {
	Applied       int
	Skipped       int
	Updated       []model.MachineChecklistStatus
	OverallStatus model.MachineStatus
}

// ApplyBatch validates and applies a bulk update for one machine. Duplicate
// item ids within the batch are legal; the later entry wins. The machine's
// overall status is recomputed once, after all writes, in the same unit of
// work.
func (l *Ledger) ApplyBatch(ctx context.Context, machineID uuid.UUID, entries []Entry) (BatchResult, error) {
	for _, e := range entries {
		if !model.ValidChecklistStatus(e.Status) {
			return BatchResult{}, fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
		}
	}

	var result BatchResult
	err := l.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetMachine(ctx, machineID); err != nil {
			return err
		}

		items, err := tx.ListChecklistItems(ctx)
		if err != nil {
			return err
		}
		known := make(map[uuid.UUID]struct{}, len(items))
		for _, item := range items {
			known[item.ID] = struct{}{}
		}

		if !l.cfg.AllowUnknownItems {
			for _, e := range entries {
				if _, ok := known[e.ItemID]; !ok {
					return fmt.Errorf("%w: %s", ErrUnknownChecklistItem, e.ItemID)
				}
			}
		}

		pos := make(map[uuid.UUID]int, len(entries))
		for _, e := range entries {
			if _, ok := known[e.ItemID]; !ok {
				result.Skipped++
				continue
			}
			row := model.MachineChecklistStatus{
				MachineID:       machineID,
				ChecklistItemID: e.ItemID,
				Status:          e.Status,
				Notes:           e.Notes,
			}
			if err := tx.UpsertChecklistStatus(ctx, &row); err != nil {
				return err
			}
			result.Applied++
			if i, ok := pos[e.ItemID]; ok {
				result.Updated[i] = row
			} else {
				pos[e.ItemID] = len(result.Updated)
				result.Updated = append(result.Updated, row)
			}
		}

		status, err := registry.Recompute(ctx, tx, machineID)
		if err != nil {
			return err
		}
		result.OverallStatus = status
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

// Snapshot returns the machine's full checklist in canonical catalog order,
// substituting PENDING for items the ledger has never seen.
func (l *Ledger) Snapshot(ctx context.Context, machineID uuid.UUID) ([]ItemState, error) {
	var out []ItemState
	err := l.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetMachine(ctx, machineID); err != nil {
			return err
		}
		items, err := tx.ListChecklistItems(ctx)
		if err != nil {
			return err
		}
		rows, err := tx.ListChecklistStatuses(ctx, machineID)
		if err != nil {
			return err
		}
		out = Overlay(items, rows)
		return nil
	})
	return out, err
}

// ItemState is one catalog item joined with the machine's recorded status.
type ItemState struct {
	Item   model.ChecklistItem
	Status model.ChecklistStatus
	Notes  string
}

// Overlay joins the item catalog with a machine's ledger rows, defaulting
// missing rows to PENDING. Input catalog order is preserved.
func Overlay(items []model.ChecklistItem, rows []model.MachineChecklistStatus) []ItemState {
	byItem := make(map[uuid.UUID]model.MachineChecklistStatus, len(rows))
	for _, row := range rows {
		byItem[row.ChecklistItemID] = row
	}
	out := make([]ItemState, 0, len(items))
	for _, item := range items {
		state := ItemState{Item: item, Status: model.ChecklistPending}
		if row, ok := byItem[item.ID]; ok {
			state.Status = row.Status
			state.Notes = row.Notes
		}
		out = append(out, state)
	}
	return out
}
