// Package model defines the entities shared between the prepd control plane
// services and their persistence layer.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MachineStatus is the overall preparation state of a machine.
type MachineStatus string

const (
	MachinePending    MachineStatus = "PENDING"
	MachineInProgress MachineStatus = "IN_PROGRESS"
	MachineReady      MachineStatus = "READY"
	MachineError      MachineStatus = "ERROR"
)

// ChecklistStatus is the per-machine state of a single checklist item.
type ChecklistStatus string

const (
	ChecklistPending       ChecklistStatus = "PENDING"
	ChecklistInProgress    ChecklistStatus = "IN_PROGRESS"
	ChecklistCompleted     ChecklistStatus = "COMPLETED"
	ChecklistNotApplicable ChecklistStatus = "N_A"
)

// ValidChecklistStatus reports whether s is one of the accepted ledger states.
func ValidChecklistStatus(s ChecklistStatus) bool {
	switch s {
	case ChecklistPending, ChecklistInProgress, ChecklistCompleted, ChecklistNotApplicable:
		return true
	default:
		return false
	}
}

// ToolInstallStatus is the per-machine state of a single tool installation.
type ToolInstallStatus string

const (
	ToolPending   ToolInstallStatus = "PENDING"
	ToolInstalled ToolInstallStatus = "INSTALLED"
	ToolFailed    ToolInstallStatus = "FAILED"
)

// ReportStatus is the aggregate outcome an agent attaches to an
// installation report.
type ReportStatus string

const (
	ReportCompleted ReportStatus = "completed"
	ReportFailed    ReportStatus = "failed"
)

// ProductivityTool is an installable software package. Tools flagged optional
// are assignable per machine; the rest are department requirements.
type ProductivityTool struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"type:text;uniqueIndex;not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	DownloadLink string    `gorm:"type:text" json:"download_link"`
	Version      string    `gorm:"type:text" json:"version"`
	Optional     bool      `gorm:"not null;default:false" json:"optional"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime" json:"-"`
	UpdatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime" json:"-"`
}

func (ProductivityTool) TableName() string { return "productivity_tools" }

// Department is an organizational unit carrying a default tool bundle.
type Department struct {
	ID          uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string             `gorm:"type:text;uniqueIndex;not null" json:"name"`
	Description string             `gorm:"type:text" json:"description"`
	Tools       []ProductivityTool `gorm:"many2many:department_tools" json:"tools,omitempty"`
	CreatedAt   time.Time          `gorm:"type:timestamptz;not null;default:now();autoCreateTime" json:"-"`
	UpdatedAt   time.Time          `gorm:"type:timestamptz;not null;default:now();autoUpdateTime" json:"-"`
}

func (Department) TableName() string { return "departments" }

// RequiredTools returns the department's tool bundle filtered to the
// non-optional entries.
func (d Department) RequiredTools() []ProductivityTool {
	out := make([]ProductivityTool, 0, len(d.Tools))
	for _, t := range d.Tools {
		if !t.Optional {
			out = append(out, t)
		}
	}
	return out
}

// ChecklistItem is a non-software setup task tracked per machine. Order is
// the canonical presentation key; ties break on name.
type ChecklistItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"type:text;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Order       int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	IsCritical  bool      `gorm:"not null;default:false" json:"is_critical"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime" json:"-"`
}

func (ChecklistItem) TableName() string { return "checklist_items" }

// Machine is a workstation being prepared. Hostname is the stable identity
// key; hardware facts are informational only.
//
// DepartmentTools holds the bundle cascaded from the assigned department,
// ExtraTools the administrator-picked additions. The two sets are kept apart
// so a re-cascade can never erase hand-picked extras; agents see the merged
// list.
type Machine struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	Hostname        string             `gorm:"type:text;uniqueIndex;not null" json:"hostname"`
	IPAddress       string             `gorm:"type:text" json:"ip_address"`
	Facts           datatypes.JSONMap  `gorm:"type:jsonb" json:"facts"`
	OverallStatus   MachineStatus      `gorm:"type:text;not null;default:'PENDING'" json:"overall_status"`
	IsLead          bool               `gorm:"not null;default:false" json:"is_lead"`
	LastCheckin     time.Time          `gorm:"type:timestamptz" json:"last_checkin"`
	DepartmentID    *uuid.UUID         `gorm:"type:uuid" json:"department_id,omitempty"`
	AssignedAt      *time.Time         `gorm:"type:timestamptz" json:"assigned_at,omitempty"`
	DepartmentTools []ProductivityTool `gorm:"many2many:machine_department_tools" json:"department_tools,omitempty"`
	ExtraTools      []ProductivityTool `gorm:"many2many:machine_extra_tools" json:"extra_tools,omitempty"`
	CreatedAt       time.Time          `gorm:"type:timestamptz;not null;default:now();autoCreateTime" json:"-"`
	UpdatedAt       time.Time          `gorm:"type:timestamptz;not null;default:now();autoUpdateTime" json:"-"`
}

func (Machine) TableName() string { return "machines" }

// AssignedTools merges the cascaded bundle with the extras, de-duplicated by
// tool id, preserving bundle-first ordering.
func (m Machine) AssignedTools() []ProductivityTool {
	seen := make(map[uuid.UUID]struct{}, len(m.DepartmentTools)+len(m.ExtraTools))
	out := make([]ProductivityTool, 0, len(m.DepartmentTools)+len(m.ExtraTools))
	for _, set := range [][]ProductivityTool{m.DepartmentTools, m.ExtraTools} {
		for _, t := range set {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// MachineChecklistStatus is the ledger row for one (machine, checklist item)
// pair. Rows are created lazily on first write; absence means PENDING.
type MachineChecklistStatus struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	MachineID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_machine_item" json:"machine_id"`
	ChecklistItemID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_machine_item" json:"checklist_item_id"`
	Status          ChecklistStatus `gorm:"type:text;not null;default:'PENDING'" json:"status"`
	Notes           string          `gorm:"type:text" json:"notes"`
	UpdatedAt       time.Time       `gorm:"type:timestamptz;not null;default:now();autoUpdateTime" json:"last_updated"`
}

func (MachineChecklistStatus) TableName() string { return "machine_checklist_statuses" }

// MachineToolStatus tracks the install outcome of one tool on one machine.
type MachineToolStatus struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	MachineID uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_machine_tool" json:"machine_id"`
	ToolID    uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_machine_tool" json:"tool_id"`
	Status    ToolInstallStatus `gorm:"type:text;not null;default:'PENDING'" json:"status"`
	Detail    string            `gorm:"type:text" json:"detail"`
	UpdatedAt time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime" json:"last_updated"`
}

func (MachineToolStatus) TableName() string { return "machine_tool_statuses" }

// InstallationReport is an append-only log row submitted by an agent after an
// install run. Tool identifiers are stored raw so catalog edits never orphan
// history.
type InstallationReport struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	MachineID      uuid.UUID         `gorm:"type:uuid;not null;index" json:"machine_id"`
	Status         ReportStatus      `gorm:"type:text;not null" json:"status"`
	InstalledTools datatypes.JSON    `gorm:"type:jsonb" json:"installed_tools"`
	Facts          datatypes.JSONMap `gorm:"type:jsonb" json:"facts,omitempty"`
	CreatedAt      time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime" json:"created_at"`
}

func (InstallationReport) TableName() string { return "installation_reports" }
