package store

import (
	"time"

	"github.com/google/uuid"
)

// Domain rows the history adapters operate on. The CRUD services owning
// these tables live outside this repository; adapters only ever rewrite the
// mutable fields captured in snapshots.

type Place struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"type:text;not null"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (Place) TableName() string { return "places" }

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
}

func (Table) TableName() string { return "tables" }

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Name      string    `gorm:"type:text;not null"`
	Color     string    `gorm:"type:text"`
	SortOrder int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (Category) TableName() string { return "categories" }

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
}

func (Menu) TableName() string { return "menus" }

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

func (Order) TableName() string { return "orders" }
