package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"prepd/pkg/model"
)

// DBStore is the gorm/Postgres implementation of Store.
type DBStore struct {
	orm *gorm.DB
}

// NewDB wraps an open gorm handle.
func NewDB(orm *gorm.DB) *DBStore {
	return &DBStore{orm: orm}
}

func (s *DBStore) SaveDepartment(ctx context.Context, dept *model.Department) error {
	if dept.ID == uuid.Nil {
		dept.ID = uuid.New()
	}
	orm := s.orm.WithContext(ctx)
	if err := orm.Omit("Tools").Save(dept).Error; err != nil {
		return err
	}
	return orm.Model(dept).Association("Tools").Replace(dept.Tools)
}

func (s *DBStore) GetDepartment(ctx context.Context, id uuid.UUID) (model.Department, error) {
	var dept model.Department
	err := s.orm.WithContext(ctx).Preload("Tools").First(&dept, "id = ?", id).Error
	if err != nil {
		return model.Department{}, translate(err)
	}
	return dept, nil
}

func (s *DBStore) ListDepartments(ctx context.Context) ([]model.Department, error) {
	var depts []model.Department
	err := s.orm.WithContext(ctx).Preload("Tools").Order("name asc").Find(&depts).Error
	return depts, err
}

func (s *DBStore) SaveTool(ctx context.Context, tool *model.ProductivityTool) error {
	if tool.ID == uuid.Nil {
		tool.ID = uuid.New()
	}
	return s.orm.WithContext(ctx).Save(tool).Error
}

func (s *DBStore) GetTools(ctx context.Context, ids []uuid.UUID) ([]model.ProductivityTool, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tools []model.ProductivityTool
	err := s.orm.WithContext(ctx).Where("id IN ?", ids).Find(&tools).Error
	return tools, err
}

func (s *DBStore) ListTools(ctx context.Context, onlyOptional bool) ([]model.ProductivityTool, error) {
	q := s.orm.WithContext(ctx).Order("name asc")
	if onlyOptional {
		q = q.Where("optional = ?", true)
	}
	var tools []model.ProductivityTool
	err := q.Find(&tools).Error
	return tools, err
}

func (s *DBStore) SaveChecklistItem(ctx context.Context, item *model.ChecklistItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return s.orm.WithContext(ctx).Save(item).Error
}

func (s *DBStore) ListChecklistItems(ctx context.Context) ([]model.ChecklistItem, error) {
	var items []model.ChecklistItem
	err := s.orm.WithContext(ctx).Order("sort_order asc, name asc").Find(&items).Error
	return items, err
}

func (s *DBStore) CreateMachine(ctx context.Context, m *model.Machine) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return s.orm.WithContext(ctx).Omit("DepartmentTools", "ExtraTools").Create(m).Error
}

func (s *DBStore) UpdateMachine(ctx context.Context, m *model.Machine) error {
	return s.orm.WithContext(ctx).Omit("DepartmentTools", "ExtraTools").Save(m).Error
}

func (s *DBStore) GetMachine(ctx context.Context, id uuid.UUID) (model.Machine, error) {
	var m model.Machine
	err := s.orm.WithContext(ctx).
		Preload("DepartmentTools").
		Preload("ExtraTools").
		First(&m, "id = ?", id).Error
	if err != nil {
		return model.Machine{}, translate(err)
	}
	return m, nil
}

func (s *DBStore) GetMachineByHostname(ctx context.Context, hostname string) (model.Machine, error) {
	var m model.Machine
	err := s.orm.WithContext(ctx).
		Preload("DepartmentTools").
		Preload("ExtraTools").
		Where("lower(hostname) = lower(?)", hostname).
		First(&m).Error
	if err != nil {
		return model.Machine{}, translate(err)
	}
	return m, nil
}

func (s *DBStore) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	err := s.orm.WithContext(ctx).
		Preload("DepartmentTools").
		Preload("ExtraTools").
		Order("hostname asc").
		Find(&machines).Error
	return machines, err
}

func (s *DBStore) ReplaceDepartmentTools(ctx context.Context, machineID uuid.UUID, toolIDs []uuid.UUID) error {
	return s.replaceTools(ctx, machineID, "DepartmentTools", toolIDs)
}

func (s *DBStore) ReplaceExtraTools(ctx context.Context, machineID uuid.UUID, toolIDs []uuid.UUID) error {
	return s.replaceTools(ctx, machineID, "ExtraTools", toolIDs)
}

func (s *DBStore) replaceTools(ctx context.Context, machineID uuid.UUID, assoc string, toolIDs []uuid.UUID) error {
	tools, err := s.GetTools(ctx, toolIDs)
	if err != nil {
		return err
	}
	m := model.Machine{ID: machineID}
	return s.orm.WithContext(ctx).Model(&m).Association(assoc).Replace(tools)
}

func (s *DBStore) ListChecklistStatuses(ctx context.Context, machineID uuid.UUID) ([]model.MachineChecklistStatus, error) {
	var rows []model.MachineChecklistStatus
	err := s.orm.WithContext(ctx).Where("machine_id = ?", machineID).Find(&rows).Error
	return rows, err
}

func (s *DBStore) UpsertChecklistStatus(ctx context.Context, row *model.MachineChecklistStatus) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.UpdatedAt = time.Now().UTC()
	return s.orm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "machine_id"}, {Name: "checklist_item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "notes", "updated_at"}),
	}).Create(row).Error
}

func (s *DBStore) UpsertToolStatus(ctx context.Context, row *model.MachineToolStatus) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	row.UpdatedAt = time.Now().UTC()
	return s.orm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "machine_id"}, {Name: "tool_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "detail", "updated_at"}),
	}).Create(row).Error
}

func (s *DBStore) ListToolStatuses(ctx context.Context, machineID uuid.UUID) ([]model.MachineToolStatus, error) {
	var rows []model.MachineToolStatus
	err := s.orm.WithContext(ctx).Where("machine_id = ?", machineID).Find(&rows).Error
	return rows, err
}

func (s *DBStore) AppendReport(ctx context.Context, report *model.InstallationReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	return s.orm.WithContext(ctx).Create(report).Error
}

func (s *DBStore) ListReports(ctx context.Context, machineID uuid.UUID) ([]model.InstallationReport, error) {
	var reports []model.InstallationReport
	err := s.orm.WithContext(ctx).
		Where("machine_id = ?", machineID).
		Order("created_at desc").
		Find(&reports).Error
	return reports, err
}

func (s *DBStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DBStore{orm: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
