package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"prepd/pkg/bus"
	"prepd/pkg/model"
	"prepd/pkg/store"
	"prepd/services/ledger"
)

// handleChecklistStatus applies a bulk checklist update. The batch is all or
// nothing: an unknown item id or invalid status rejects every entry, so a
// retry of the same payload is safe and complete.
func (a *API) handleChecklistStatus(w http.ResponseWriter, r *http.Request) {
	machineID, err := pathUUID(r, "machineID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Statuses []struct {
			ChecklistItemID uuid.UUID             `json:"checklist_item_id"`
			Status          model.ChecklistStatus `json:"status"`
			Notes           string                `json:"notes"`
		} `json:"checklist_statuses"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	entries := make([]ledger.Entry, 0, len(req.Statuses))
	for _, u := range req.Statuses {
		entries = append(entries, ledger.Entry{ItemID: u.ChecklistItemID, Status: u.Status, Notes: u.Notes})
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	result, err := a.ledger.ApplyBatch(ctx, machineID, entries)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, errors.New("machine not found"))
		return
	case errors.Is(err, ledger.ErrUnknownChecklistItem), errors.Is(err, ledger.ErrInvalidStatus):
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	checklistEntriesTotal.Add(float64(result.Applied))
	a.publishJSON(bus.SubjectChecklistUpdated, map[string]any{
		"machine_id":     machineID,
		"applied":        result.Applied,
		"overall_status": result.OverallStatus,
	})

	updated := make([]map[string]any, 0, len(result.Updated))
	for _, row := range result.Updated {
		updated = append(updated, map[string]any{
			"checklist_item_id": row.ChecklistItemID,
			"status":            row.Status,
			"notes":             row.Notes,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"updated_checklist_items": updated,
		"overall_status":          result.OverallStatus,
	})
}

func (a *API) handleChecklistSnapshot(w http.ResponseWriter, r *http.Request) {
	machineID, err := pathUUID(r, "machineID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	snap, err := a.ledger.Snapshot(ctx, machineID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, errors.New("machine not found"))
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"checklist": checklistPayload(snap)})
}
