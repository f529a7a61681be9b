package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"prepd/pkg/model"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// auditEntry backs the audit trail written by the audit ingestor. It is not a
// shared domain type; only raw SQL in services/audit touches it.
type auditEntry struct {
	ID      int64             `gorm:"type:bigserial;primaryKey"`
	Actor   string            `gorm:"type:text;not null"`
	Action  string            `gorm:"type:text;not null"`
	Obj     string            `gorm:"type:text"`
	Details datatypes.JSONMap `gorm:"type:jsonb"`
	At      time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (auditEntry) TableName() string { return "audit" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).AutoMigrate(
		&model.ProductivityTool{},
		&model.Department{},
		&model.ChecklistItem{},
		&model.Machine{},
		&model.MachineChecklistStatus{},
		&model.MachineToolStatus{},
		&model.InstallationReport{},
		&auditEntry{},
	)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&auditEntry{},
		&model.InstallationReport{},
		&model.MachineToolStatus{},
		&model.MachineChecklistStatus{},
		&model.Machine{},
		&model.ChecklistItem{},
		&model.Department{},
		&model.ProductivityTool{},
		"machine_department_tools",
		"machine_extra_tools",
		"department_tools",
	)
}
