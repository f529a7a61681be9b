// Package registry owns the machine lifecycle: check-in identity, the
// one-time department assignment with its tool cascade, and the derivation of
// a machine's overall status from checklist state.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"prepd/pkg/model"
	"prepd/pkg/store"
)

// ErrAlreadyAssigned is returned when a machine with a department is assigned
// a different one. Re-assigning the same department is a no-op success.
var ErrAlreadyAssigned = errors.New("registry: machine already assigned to a department")

// ErrHostnameRequired is returned for a check-in without a hostname.
var ErrHostnameRequired = errors.New("registry: hostname is required")

// Registry coordinates machine lifecycle operations against the shared store.
type Registry struct {
	store store.Store
}

// New constructs a Registry.
func New(st store.Store) (*Registry, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	return &Registry{store: st}, nil
}

// CheckInRequest carries the identity and facts an agent gathers locally.
type CheckInRequest struct {
	Hostname  string
	IPAddress string
	Facts     map[string]any
	IsLead    bool
}

// CheckInResult reports the machine after a check-in and whether the row was
// created by this call.
type CheckInResult struct {
	Machine model.Machine
	Created bool
}

// CheckIn upserts a machine keyed by hostname. A new machine starts PENDING
// and is immediately advanced to IN_PROGRESS; an existing one only has its
// address, facts, and check-in timestamp refreshed.
func (r *Registry) CheckIn(ctx context.Context, req CheckInRequest) (CheckInResult, error) {
	hostname := strings.ToLower(strings.TrimSpace(req.Hostname))
	if hostname == "" {
		return CheckInResult{}, ErrHostnameRequired
	}

	var result CheckInResult
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		now := time.Now().UTC()

		existing, err := tx.GetMachineByHostname(ctx, hostname)
		switch {
		case errors.Is(err, store.ErrNotFound):
			m := model.Machine{
				ID:            uuid.New(),
				Hostname:      hostname,
				IPAddress:     req.IPAddress,
				Facts:         toJSONMap(req.Facts),
				OverallStatus: model.MachinePending,
				IsLead:        req.IsLead,
				LastCheckin:   now,
			}
			// A known machine has always begun work: advance immediately.
			m.OverallStatus = model.MachineInProgress
			if err := tx.CreateMachine(ctx, &m); err != nil {
				return err
			}
			result = CheckInResult{Machine: m, Created: true}
			return nil
		case err != nil:
			return err
		}

		existing.IPAddress = req.IPAddress
		existing.Facts = toJSONMap(req.Facts)
		existing.LastCheckin = now
		if err := tx.UpdateMachine(ctx, &existing); err != nil {
			return err
		}
		result = CheckInResult{Machine: existing}
		return nil
	})
	if err != nil {
		return CheckInResult{}, err
	}
	return result, nil
}

// AssignDepartment performs the one-time department assignment. On first
// success it stamps the assignment time and replaces the machine's cascaded
// tool bundle with the department's required-tool set (full replace, never
// union, so re-running after catalog edits cannot accumulate stale tools).
func (r *Registry) AssignDepartment(ctx context.Context, machineID, departmentID uuid.UUID) (model.Department, error) {
	var dept model.Department
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		m, err := tx.GetMachine(ctx, machineID)
		if err != nil {
			return fmt.Errorf("machine %s: %w", machineID, err)
		}

		dept, err = tx.GetDepartment(ctx, departmentID)
		if err != nil {
			return fmt.Errorf("department %s: %w", departmentID, err)
		}

		if m.DepartmentID != nil {
			if *m.DepartmentID == departmentID {
				return nil
			}
			return ErrAlreadyAssigned
		}

		now := time.Now().UTC()
		m.DepartmentID = &departmentID
		m.AssignedAt = &now
		if err := tx.UpdateMachine(ctx, &m); err != nil {
			return err
		}

		required := dept.RequiredTools()
		bundle := make([]uuid.UUID, 0, len(required))
		for _, t := range required {
			bundle = append(bundle, t.ID)
		}
		if err := tx.ReplaceDepartmentTools(ctx, m.ID, bundle); err != nil {
			return err
		}

		_, err = Recompute(ctx, tx, m.ID)
		return err
	})
	if err != nil {
		return model.Department{}, err
	}
	return dept, nil
}

// RecomputeStatus derives and persists the machine's overall status from the
// current ledger and department state.
func (r *Registry) RecomputeStatus(ctx context.Context, machineID uuid.UUID) (model.MachineStatus, error) {
	var status model.MachineStatus
	err := r.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		status, err = Recompute(ctx, tx, machineID)
		return err
	})
	return status, err
}

// MarkError flags the machine as failed. ERROR is never derived; it is set
// only by an explicit signal such as a failed installation report, and cleared
// by the next recompute once the condition is corrected.
func (r *Registry) MarkError(ctx context.Context, machineID uuid.UUID) error {
	return r.store.Transaction(ctx, func(tx store.Store) error {
		return markError(ctx, tx, machineID)
	})
}

func markError(ctx context.Context, tx store.Store, machineID uuid.UUID) error {
	m, err := tx.GetMachine(ctx, machineID)
	if err != nil {
		return err
	}
	if m.OverallStatus == model.MachineError {
		return nil
	}
	m.OverallStatus = model.MachineError
	return tx.UpdateMachine(ctx, &m)
}

// Recompute runs the status derivation against the provided store view so
// callers already inside a transaction (ledger batches, reports) recompute
// exactly once without opening a nested unit of work.
func Recompute(ctx context.Context, tx store.Store, machineID uuid.UUID) (model.MachineStatus, error) {
	m, err := tx.GetMachine(ctx, machineID)
	if err != nil {
		return "", err
	}

	items, err := tx.ListChecklistItems(ctx)
	if err != nil {
		return "", err
	}
	rows, err := tx.ListChecklistStatuses(ctx, machineID)
	if err != nil {
		return "", err
	}

	status := DeriveStatus(m.DepartmentID != nil, items, rows)
	// A machine that has checked in has begun work; never derive it back to
	// PENDING. PENDING survives only for rows created ahead of first contact.
	if status == model.MachinePending && !m.LastCheckin.IsZero() {
		status = model.MachineInProgress
	}
	if status == m.OverallStatus {
		return status, nil
	}
	m.OverallStatus = status
	if err := tx.UpdateMachine(ctx, &m); err != nil {
		return "", err
	}
	return status, nil
}

// DeriveStatus is the pure status derivation: READY iff a department is
// assigned and every catalog item has a COMPLETED row; IN_PROGRESS iff a
// department is assigned or any item is COMPLETED; otherwise PENDING. An
// empty catalog never yields READY.
func DeriveStatus(departmentAssigned bool, items []model.ChecklistItem, rows []model.MachineChecklistStatus) model.MachineStatus {
	completed := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		if row.Status == model.ChecklistCompleted {
			completed[row.ChecklistItemID] = struct{}{}
		}
	}

	allCompleted := len(items) > 0
	for _, item := range items {
		if _, ok := completed[item.ID]; !ok {
			allCompleted = false
			break
		}
	}

	switch {
	case departmentAssigned && allCompleted:
		return model.MachineReady
	case departmentAssigned || len(completed) > 0:
		return model.MachineInProgress
	default:
		return model.MachinePending
	}
}

func toJSONMap(src map[string]any) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range src {
		out[k] = v
	}
	return out
}
