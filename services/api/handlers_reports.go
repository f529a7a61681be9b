package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"prepd/pkg/bus"
	"prepd/pkg/model"
	"prepd/pkg/store"
	"prepd/services/reporter"
)

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MachineID uuid.UUID              `json:"machine_id"`
		Hostname  string                 `json:"hostname"`
		Status    model.ReportStatus     `json:"status"`
		Tools     []reporter.ToolOutcome `json:"tools"`
		Facts     map[string]any         `json:"facts"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	overall, err := a.reporter.Submit(ctx, reporter.Report{
		MachineID: req.MachineID,
		Hostname:  req.Hostname,
		Status:    req.Status,
		Tools:     req.Tools,
		Facts:     req.Facts,
	})
	switch {
	case errors.Is(err, reporter.ErrInvalidOutcome):
		respondError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, errors.New("machine not found"))
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	reportsTotal.WithLabelValues(string(req.Status)).Inc()
	a.publishJSON(bus.SubjectReportSubmitted, map[string]any{
		"machine_id":     req.MachineID,
		"hostname":       req.Hostname,
		"status":         req.Status,
		"overall_status": overall,
	})

	respondJSON(w, http.StatusCreated, map[string]any{"overall_status": overall})
}

func (a *API) handleReportHistory(w http.ResponseWriter, r *http.Request) {
	machineID, err := pathUUID(r, "machineID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	reports, err := a.reporter.History(ctx, machineID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, errors.New("machine not found"))
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reports": reports})
}
