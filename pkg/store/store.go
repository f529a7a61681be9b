// Package store defines the persistence layer shared by the prepd services.
//
// The interface is implemented by a gorm/Postgres store for production and by
// an in-memory store used in dev mode and tests.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"prepd/pkg/model"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the shared transactional store behind the stateless request
// handlers. Per-row uniqueness constraints (hostname, (machine, item),
// (machine, tool)) are the only serialization points; concurrent writes to
// the same machine are last-write-wins.
type Store interface {
	// Catalog reference data.
	SaveDepartment(ctx context.Context, dept *model.Department) error
	GetDepartment(ctx context.Context, id uuid.UUID) (model.Department, error)
	ListDepartments(ctx context.Context) ([]model.Department, error)
	SaveTool(ctx context.Context, tool *model.ProductivityTool) error
	GetTools(ctx context.Context, ids []uuid.UUID) ([]model.ProductivityTool, error)
	ListTools(ctx context.Context, onlyOptional bool) ([]model.ProductivityTool, error)
	SaveChecklistItem(ctx context.Context, item *model.ChecklistItem) error
	// ListChecklistItems returns the catalog in canonical order: sort order
	// ascending, name breaking ties.
	ListChecklistItems(ctx context.Context) ([]model.ChecklistItem, error)

	// Machines.
	CreateMachine(ctx context.Context, m *model.Machine) error
	UpdateMachine(ctx context.Context, m *model.Machine) error
	GetMachine(ctx context.Context, id uuid.UUID) (model.Machine, error)
	GetMachineByHostname(ctx context.Context, hostname string) (model.Machine, error)
	ListMachines(ctx context.Context) ([]model.Machine, error)
	ReplaceDepartmentTools(ctx context.Context, machineID uuid.UUID, toolIDs []uuid.UUID) error
	ReplaceExtraTools(ctx context.Context, machineID uuid.UUID, toolIDs []uuid.UUID) error

	// Checklist ledger.
	ListChecklistStatuses(ctx context.Context, machineID uuid.UUID) ([]model.MachineChecklistStatus, error)
	UpsertChecklistStatus(ctx context.Context, row *model.MachineChecklistStatus) error

	// Tool install tracking and reports.
	UpsertToolStatus(ctx context.Context, row *model.MachineToolStatus) error
	ListToolStatuses(ctx context.Context, machineID uuid.UUID) ([]model.MachineToolStatus, error)
	AppendReport(ctx context.Context, report *model.InstallationReport) error
	ListReports(ctx context.Context, machineID uuid.UUID) ([]model.InstallationReport, error)

	// Transaction runs fn against a store view whose writes commit or roll
	// back as a unit.
	Transaction(ctx context.Context, fn func(Store) error) error
}
