package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"prepd/pkg/model"
)

// errDuplicateHostname mirrors the unique constraint violation the database
// store raises for a second machine with the same hostname.
var errDuplicateHostname = errors.New("store: hostname already exists")

// MemoryStore is an in-memory Store for dev mode and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	departments map[uuid.UUID]model.Department
	tools       map[uuid.UUID]model.ProductivityTool
	items       map[uuid.UUID]model.ChecklistItem
	machines    map[uuid.UUID]model.Machine
	byHostname  map[string]uuid.UUID
	deptTools   map[uuid.UUID][]uuid.UUID // department id -> catalog bundle
	bundleTools map[uuid.UUID][]uuid.UUID // machine id -> cascaded bundle
	extraTools  map[uuid.UUID][]uuid.UUID // machine id -> admin extras
	ledger      map[uuid.UUID]map[uuid.UUID]model.MachineChecklistStatus
	toolStatus  map[uuid.UUID]map[uuid.UUID]model.MachineToolStatus
	reports     map[uuid.UUID][]model.InstallationReport
}

// NewMemory constructs an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		departments: make(map[uuid.UUID]model.Department),
		tools:       make(map[uuid.UUID]model.ProductivityTool),
		items:       make(map[uuid.UUID]model.ChecklistItem),
		machines:    make(map[uuid.UUID]model.Machine),
		byHostname:  make(map[string]uuid.UUID),
		deptTools:   make(map[uuid.UUID][]uuid.UUID),
		bundleTools: make(map[uuid.UUID][]uuid.UUID),
		extraTools:  make(map[uuid.UUID][]uuid.UUID),
		ledger:      make(map[uuid.UUID]map[uuid.UUID]model.MachineChecklistStatus),
		toolStatus:  make(map[uuid.UUID]map[uuid.UUID]model.MachineToolStatus),
		reports:     make(map[uuid.UUID][]model.InstallationReport),
	}
}

func (s *MemoryStore) SaveDepartment(_ context.Context, dept *model.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dept.ID == uuid.Nil {
		dept.ID = uuid.New()
	}
	stored := *dept
	stored.Tools = nil
	toolIDs := make([]uuid.UUID, 0, len(dept.Tools))
	for _, t := range dept.Tools {
		toolIDs = append(toolIDs, t.ID)
	}
	s.departments[dept.ID] = stored
	s.deptTools[dept.ID] = toolIDs
	return nil
}

func (s *MemoryStore) GetDepartment(_ context.Context, id uuid.UUID) (model.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dept, ok := s.departments[id]
	if !ok {
		return model.Department{}, ErrNotFound
	}
	dept.Tools = s.toolsByIDLocked(s.deptTools[id])
	return dept, nil
}

func (s *MemoryStore) ListDepartments(_ context.Context) ([]model.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Department, 0, len(s.departments))
	for id, dept := range s.departments {
		dept.Tools = s.toolsByIDLocked(s.deptTools[id])
		out = append(out, dept)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) SaveTool(_ context.Context, tool *model.ProductivityTool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tool.ID == uuid.Nil {
		tool.ID = uuid.New()
	}
	s.tools[tool.ID] = *tool
	return nil
}

func (s *MemoryStore) GetTools(_ context.Context, ids []uuid.UUID) ([]model.ProductivityTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toolsByIDLocked(ids), nil
}

func (s *MemoryStore) ListTools(_ context.Context, onlyOptional bool) ([]model.ProductivityTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ProductivityTool, 0, len(s.tools))
	for _, t := range s.tools {
		if onlyOptional && !t.Optional {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) SaveChecklistItem(_ context.Context, item *model.ChecklistItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	s.items[item.ID] = *item
	return nil
}

func (s *MemoryStore) ListChecklistItems(_ context.Context) ([]model.ChecklistItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ChecklistItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemoryStore) CreateMachine(_ context.Context, m *model.Machine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	key := strings.ToLower(m.Hostname)
	if _, exists := s.byHostname[key]; exists {
		return errDuplicateHostname
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	stored := *m
	stored.DepartmentTools = nil
	stored.ExtraTools = nil
	s.machines[m.ID] = stored
	s.byHostname[key] = m.ID
	return nil
}

func (s *MemoryStore) UpdateMachine(_ context.Context, m *model.Machine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.machines[m.ID]; !ok {
		return ErrNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	stored := *m
	stored.DepartmentTools = nil
	stored.ExtraTools = nil
	s.machines[m.ID] = stored
	return nil
}

func (s *MemoryStore) GetMachine(_ context.Context, id uuid.UUID) (model.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.machines[id]
	if !ok {
		return model.Machine{}, ErrNotFound
	}
	return s.hydrateMachineLocked(m), nil
}

func (s *MemoryStore) GetMachineByHostname(_ context.Context, hostname string) (model.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHostname[strings.ToLower(hostname)]
	if !ok {
		return model.Machine{}, ErrNotFound
	}
	return s.hydrateMachineLocked(s.machines[id]), nil
}

func (s *MemoryStore) ListMachines(_ context.Context) ([]model.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Machine, 0, len(s.machines))
	for _, m := range s.machines {
		out = append(out, s.hydrateMachineLocked(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out, nil
}

func (s *MemoryStore) ReplaceDepartmentTools(_ context.Context, machineID uuid.UUID, toolIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.machines[machineID]; !ok {
		return ErrNotFound
	}
	s.bundleTools[machineID] = append([]uuid.UUID(nil), toolIDs...)
	return nil
}

func (s *MemoryStore) ReplaceExtraTools(_ context.Context, machineID uuid.UUID, toolIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.machines[machineID]; !ok {
		return ErrNotFound
	}
	s.extraTools[machineID] = append([]uuid.UUID(nil), toolIDs...)
	return nil
}

func (s *MemoryStore) ListChecklistStatuses(_ context.Context, machineID uuid.UUID) ([]model.MachineChecklistStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.ledger[machineID]
	out := make([]model.MachineChecklistStatus, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ChecklistItemID.String() < out[j].ChecklistItemID.String()
	})
	return out, nil
}

func (s *MemoryStore) UpsertChecklistStatus(_ context.Context, row *model.MachineChecklistStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.ledger[row.MachineID]
	if !ok {
		rows = make(map[uuid.UUID]model.MachineChecklistStatus)
		s.ledger[row.MachineID] = rows
	}
	if existing, ok := rows[row.ChecklistItemID]; ok {
		row.ID = existing.ID
	} else if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.UpdatedAt = time.Now().UTC()
	rows[row.ChecklistItemID] = *row
	return nil
}

func (s *MemoryStore) UpsertToolStatus(_ context.Context, row *model.MachineToolStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.toolStatus[row.MachineID]
	if !ok {
		rows = make(map[uuid.UUID]model.MachineToolStatus)
		s.toolStatus[row.MachineID] = rows
	}
	if existing, ok := rows[row.ToolID]; ok {
		row.ID = existing.ID
	} else if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.UpdatedAt = time.Now().UTC()
	rows[row.ToolID] = *row
	return nil
}

func (s *MemoryStore) ListToolStatuses(_ context.Context, machineID uuid.UUID) ([]model.MachineToolStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.toolStatus[machineID]
	out := make([]model.MachineToolStatus, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolID.String() < out[j].ToolID.String() })
	return out, nil
}

func (s *MemoryStore) AppendReport(_ context.Context, report *model.InstallationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	s.reports[report.MachineID] = append(s.reports[report.MachineID], *report)
	return nil
}

func (s *MemoryStore) ListReports(_ context.Context, machineID uuid.UUID) ([]model.InstallationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.InstallationReport(nil), s.reports[machineID]...), nil
}

// Transaction runs fn directly: every individual operation is already
// serialized by the store mutex, which is enough for dev/test use.
func (s *MemoryStore) Transaction(_ context.Context, fn func(Store) error) error {
	return fn(s)
}

func (s *MemoryStore) hydrateMachineLocked(m model.Machine) model.Machine {
	m.DepartmentTools = s.toolsByIDLocked(s.bundleTools[m.ID])
	m.ExtraTools = s.toolsByIDLocked(s.extraTools[m.ID])
	return m
}

func (s *MemoryStore) toolsByIDLocked(ids []uuid.UUID) []model.ProductivityTool {
	out := make([]model.ProductivityTool, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.tools[id]; ok {
			out = append(out, t)
		}
	}
	return out
}
