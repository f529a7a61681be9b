package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"prepd/pkg/store"
	"prepd/services/assignor"
	"prepd/services/ledger"
)

// handleTasks serves the agent work order. The X-Hostname header, when
// present, takes precedence over the path id: hostname is the agent's stable
// identity and survives database rebuilds and reimaging.
func (a *API) handleTasks(w http.ResponseWriter, r *http.Request) {
	ref := assignor.MachineRef{Hostname: strings.TrimSpace(r.Header.Get("X-Hostname"))}
	if id, err := uuid.Parse(chi.URLParam(r, "machineID")); err == nil {
		ref.ID = id
	} else if ref.Hostname == "" {
		respondError(w, http.StatusBadRequest, errors.New("valid machineID or X-Hostname is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	manifest, err := a.assignor.Tasks(ctx, ref)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, errors.New("machine not found"))
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, manifestPayload(manifest))
}

func manifestPayload(m assignor.Manifest) map[string]any {
	return map[string]any{
		"machine":        m.Machine,
		"department":     m.Department,
		"required_tools": toolTasks(m.RequiredTools),
		"assigned_tools": toolTasks(m.AssignedTools),
		"checklist":      checklistPayload(m.Checklist),
	}
}

func toolTasks(tasks []assignor.ToolTask) []map[string]any {
	out := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, map[string]any{
			"id":           task.Tool.ID,
			"name":         task.Tool.Name,
			"description":  task.Tool.Description,
			"version":      task.Tool.Version,
			"optional":     task.Tool.Optional,
			"download_url": task.DownloadURL,
		})
	}
	return out
}

func checklistPayload(states []ledger.ItemState) []map[string]any {
	out := make([]map[string]any, 0, len(states))
	for _, state := range states {
		out = append(out, map[string]any{
			"id":             state.Item.ID,
			"name":           state.Item.Name,
			"description":    state.Item.Description,
			"order":          state.Item.Order,
			"is_critical":    state.Item.IsCritical,
			"current_status": state.Status,
			"notes":          state.Notes,
		})
	}
	return out
}
