// Package reporter ingests end-of-run installation reports from agents. A
// report is append-only history; its side effects are per-tool status upserts
// and one machine status transition.
package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"prepd/pkg/model"
	"prepd/pkg/store"
	"prepd/services/registry"
)

// ErrInvalidOutcome rejects a report whose aggregate status is neither
// completed nor failed.
var ErrInvalidOutcome = errors.New("reporter: invalid report status")

// Reporter persists installation reports and applies their lifecycle effects.
type Reporter struct {
	store store.Store
}

// New constructs a Reporter.
func New(st store.Store) (*Reporter, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	return &Reporter{store: st}, nil
}

// ToolOutcome is the agent's verdict on one tool.
type ToolOutcome struct {
	ToolID uuid.UUID `json:"tool_id"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
}

// Report is one agent run's outcome. Machines are referenced by id or by
// hostname; hostname wins when both are present.
type Report struct {
	MachineID uuid.UUID
	Hostname  string
	Status    model.ReportStatus
	Tools     []ToolOutcome
	Facts     map[string]any
}

// Submit records the report and transitions the machine: a failed run marks
// it ERROR, a completed run triggers a status recompute. Per-tool outcomes
// are upserted independently so one bad installer never hides the rest.
func (r *Reporter) Submit(ctx context.Context, report Report) (model.MachineStatus, error) {
	if report.Status != model.ReportCompleted && report.Status != model.ReportFailed {
		return "", fmt.Errorf("%w: %q", ErrInvalidOutcome, report.Status)
	}

	var overall model.MachineStatus
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		m, err := resolveMachine(ctx, tx, report)
		if err != nil {
			return err
		}

		if len(report.Facts) > 0 {
			facts := datatypes.JSONMap{}
			for k, v := range report.Facts {
				facts[k] = v
			}
			m.Facts = facts
			if err := tx.UpdateMachine(ctx, &m); err != nil {
				return err
			}
		}

		rawTools, err := json.Marshal(report.Tools)
		if err != nil {
			return err
		}
		row := model.InstallationReport{
			MachineID:      m.ID,
			Status:         report.Status,
			InstalledTools: datatypes.JSON(rawTools),
			Facts:          m.Facts,
		}
		if err := tx.AppendReport(ctx, &row); err != nil {
			return err
		}

		for _, outcome := range report.Tools {
			if outcome.ToolID == uuid.Nil {
				continue // catalog-less tools live only in the report blob
			}
			if err := tx.UpsertToolStatus(ctx, &model.MachineToolStatus{
				MachineID: m.ID,
				ToolID:    outcome.ToolID,
				Status:    toolStatus(outcome.Status),
				Detail:    outcome.Detail,
			}); err != nil {
				return err
			}
		}

		if report.Status == model.ReportFailed {
			overall = model.MachineError
			m.OverallStatus = model.MachineError
			return tx.UpdateMachine(ctx, &m)
		}

		overall, err = registry.Recompute(ctx, tx, m.ID)
		return err
	})
	if err != nil {
		return "", err
	}
	return overall, nil
}

// History returns the machine's reports, oldest first.
func (r *Reporter) History(ctx context.Context, machineID uuid.UUID) ([]model.InstallationReport, error) {
	if _, err := r.store.GetMachine(ctx, machineID); err != nil {
		return nil, err
	}
	return r.store.ListReports(ctx, machineID)
}

func resolveMachine(ctx context.Context, tx store.Store, report Report) (model.Machine, error) {
	if h := strings.TrimSpace(report.Hostname); h != "" {
		return tx.GetMachineByHostname(ctx, h)
	}
	if report.MachineID == uuid.Nil {
		return model.Machine{}, store.ErrNotFound
	}
	return tx.GetMachine(ctx, report.MachineID)
}

func toolStatus(s string) model.ToolInstallStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "installed", "success", "completed", "ok":
		return model.ToolInstalled
	case "failed", "error":
		return model.ToolFailed
	default:
		return model.ToolPending
	}
}
