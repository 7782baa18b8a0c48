package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Place struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"type:text;not null"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type Table struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID        uuid.UUID `gorm:"type:uuid;not null;index"`
	PlaceID        uuid.UUID `gorm:"type:uuid;not null;index"`
	Name           string    `gorm:"type:text;not null"`
	Capacity       int       `gorm:"not null"`
	Status         string    `gorm:"type:text;not null;default:'empty'"`
	NumberOfPeople int       `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt      time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Place          Place     `gorm:"foreignKey:PlaceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"type:text;not null"`
	Color     string    `gorm:"type:text"`
	SortOrder int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type Menu struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID     uuid.UUID `gorm:"type:uuid;not null;index"`
	CategoryID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Name        string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text"`
	Price       float64   `gorm:"type:numeric(10,2);not null"`
	Available   bool      `gorm:"not null;default:true"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
	Category    Category  `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Order struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID     uuid.UUID `gorm:"type:uuid;not null;index"`
	TableID     uuid.UUID `gorm:"type:uuid;index"`
	OrderNumber string    `gorm:"type:text;not null"`
	Status      string    `gorm:"type:text;not null;default:'pending'"`
	TotalAmount float64   `gorm:"type:numeric(10,2);not null;default:0"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type HistoryLog struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey"`
	StoreID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	UserID     uuid.UUID         `gorm:"type:uuid;not null"`
	Action     string            `gorm:"type:text;not null"`
	EntityKind string            `gorm:"type:text;not null;index:idx_history_logs_entity"`
	EntityID   uuid.UUID         `gorm:"type:uuid;index:idx_history_logs_entity"`
	EntityName string            `gorm:"type:text"`
	Details    string            `gorm:"type:text"`
	Before     datatypes.JSONMap `gorm:"column:before_snapshot;type:jsonb"`
	After      datatypes.JSONMap `gorm:"column:after_snapshot;type:jsonb"`
	Undoable   bool              `gorm:"not null;default:false"`
	UndoneAt   *time.Time        `gorm:"type:timestamptz"`
	UndoneBy   *uuid.UUID        `gorm:"type:uuid"`
	CreatedAt  time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime;index"`
}

func (HistoryLog) TableName() string { return "history_logs" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&Place{},
		&Table{},
		&Category{},
		&Menu{},
		&Order{},
		&HistoryLog{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	if err := m.CreateConstraint(&Table{}, "Place"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Menu{}, "Category"); err != nil {
		return err
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Migrator().DropTable(
		&HistoryLog{},
		&Order{},
		&Menu{},
		&Category{},
		&Table{},
		&Place{},
	); err != nil {
		return err
	}

	return nil
}
