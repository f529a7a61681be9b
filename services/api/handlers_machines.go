package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"prepd/pkg/bus"
	"prepd/pkg/model"
	"prepd/pkg/store"
	"prepd/services/registry"
)

func (a *API) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hostname  string         `json:"hostname"`
		IPAddress string         `json:"ip_address"`
		Facts     map[string]any `json:"facts"`
		IsLead    bool           `json:"is_lead"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	res, err := a.registry.CheckIn(ctx, registry.CheckInRequest{
		Hostname:  req.Hostname,
		IPAddress: req.IPAddress,
		Facts:     req.Facts,
		IsLead:    req.IsLead,
	})
	if err != nil {
		if errors.Is(err, registry.ErrHostnameRequired) {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	checkinsTotal.Inc()
	a.publishJSON(bus.SubjectMachineCheckin, map[string]any{
		"machine_id": res.Machine.ID,
		"hostname":   res.Machine.Hostname,
		"created":    res.Created,
	})

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, map[string]any{"machine": res.Machine})
}

func (a *API) handleLookupMachine(w http.ResponseWriter, r *http.Request) {
	hostname := strings.TrimSpace(r.URL.Query().Get("hostname"))
	if hostname == "" {
		respondError(w, http.StatusBadRequest, errors.New("hostname query parameter is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	m, err := a.assignor.Lookup(ctx, hostname)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, fmt.Errorf("machine with hostname %s not found", hostname))
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"machine": m})
}

func (a *API) handleGetMachine(w http.ResponseWriter, r *http.Request) {
	machineID, err := pathUUID(r, "machineID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	m, err := a.store.GetMachine(ctx, machineID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, fmt.Errorf("machine %s not found", machineID))
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"machine": m})
}

type machineSummary struct {
	ID                 uuid.UUID           `json:"id"`
	Hostname           string              `json:"hostname"`
	IPAddress          string              `json:"ip_address,omitempty"`
	OverallStatus      model.MachineStatus `json:"overall_status"`
	Department         string              `json:"department,omitempty"`
	IsLead             bool                `json:"is_lead"`
	LastCheckin        time.Time           `json:"last_checkin"`
	ChecklistCompleted int                 `json:"checklist_completed"`
	ChecklistTotal     int                 `json:"checklist_total"`
}

func (a *API) handleListMachines(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	machines, err := a.store.ListMachines(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	items, err := a.store.ListChecklistItems(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	depts, err := a.store.ListDepartments(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	deptNames := make(map[uuid.UUID]string, len(depts))
	for _, d := range depts {
		deptNames[d.ID] = d.Name
	}

	summaries := make([]machineSummary, 0, len(machines))
	for _, m := range machines {
		s := machineSummary{
			ID:             m.ID,
			Hostname:       m.Hostname,
			IPAddress:      m.IPAddress,
			OverallStatus:  m.OverallStatus,
			IsLead:         m.IsLead,
			LastCheckin:    m.LastCheckin,
			ChecklistTotal: len(items),
		}
		if m.DepartmentID != nil {
			s.Department = deptNames[*m.DepartmentID]
		}
		rows, err := a.store.ListChecklistStatuses(ctx, m.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		for _, row := range rows {
			if row.Status == model.ChecklistCompleted {
				s.ChecklistCompleted++
			}
		}
		summaries = append(summaries, s)
	}
	respondJSON(w, http.StatusOK, map[string]any{"machines": summaries})
}

func (a *API) handleAssignDepartment(w http.ResponseWriter, r *http.Request) {
	machineID, err := pathUUID(r, "machineID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		DepartmentID uuid.UUID `json:"department_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.DepartmentID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("department_id is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	dept, err := a.registry.AssignDepartment(ctx, machineID, req.DepartmentID)
	switch {
	case errors.Is(err, registry.ErrAlreadyAssigned):
		respondError(w, http.StatusConflict, err)
		return
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"machine_id": machineID,
		"department": dept,
	})
}

func (a *API) handleExtraTools(w http.ResponseWriter, r *http.Request) {
	machineID, err := pathUUID(r, "machineID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		ToolIDs []uuid.UUID `json:"tool_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	err = a.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.GetMachine(ctx, machineID); err != nil {
			return err
		}
		tools, err := tx.GetTools(ctx, req.ToolIDs)
		if err != nil {
			return err
		}
		if len(tools) != len(dedupe(req.ToolIDs)) {
			return errUnknownTool
		}
		for _, t := range tools {
			if !t.Optional {
				return fmt.Errorf("%w: %s", errToolNotOptional, t.Name)
			}
		}
		return tx.ReplaceExtraTools(ctx, machineID, req.ToolIDs)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, errUnknownTool), errors.Is(err, errToolNotOptional):
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	m, err := a.store.GetMachine(ctx, machineID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"machine": m})
}

var (
	errUnknownTool     = errors.New("unknown tool id in request")
	errToolNotOptional = errors.New("tool is not optional")
)

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
