package history

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type logModel struct {
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

func (logModel) TableName() string { return "history_logs" }

func (m logModel) toAPI() LogEntry {
	return LogEntry{
		ID:         m.ID,
		StoreID:    m.StoreID,
		UserID:     m.UserID,
		Action:     Action(m.Action),
		EntityKind: EntityKind(m.EntityKind),
		EntityID:   m.EntityID,
		EntityName: m.EntityName,
		Details:    m.Details,
		Before:     snapshotFromJSONMap(m.Before),
		After:      snapshotFromJSONMap(m.After),
		Undoable:   m.Undoable,
		UndoneAt:   m.UndoneAt,
		UndoneBy:   m.UndoneBy,
		CreatedAt:  m.CreatedAt,
	}
}

func snapshotFromJSONMap(src datatypes.JSONMap) Snapshot {
	if len(src) == 0 {
		return nil
	}
	out := make(Snapshot, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func snapshotToJSONMap(src Snapshot) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for k, v := range src {
		out[k] = v
	}
	return out
}
