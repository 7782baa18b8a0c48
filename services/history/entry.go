package history

import (
	"time"

	"github.com/google/uuid"
)

// Action is the kind of mutation a log entry records.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionUndo marks compensating entries written after a successful undo.
	// Such entries are never undoable themselves.
	ActionUndo Action = "undo"
)

// Valid reports whether a is one of the recordable actions. ActionUndo is
// reserved for entries the orchestrator writes itself.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// EntityKind tags which adapter interprets an entry's snapshots.
type EntityKind string

const (
	KindPlace       EntityKind = "place"
	KindTable       EntityKind = "table"
	KindMenu        EntityKind = "menu"
	KindCategory    EntityKind = "category"
	KindOrderStatus EntityKind = "order-status"
)

// Snapshot is an opaque structured capture of entity state. The journal
// stores it verbatim; only the matching adapter interprets its shape.
type Snapshot map[string]any

// Clone returns a shallow copy so callers and the journal never share a map.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// LogEntry is one recorded mutation with enough data to reverse it.
type LogEntry struct {
	ID         uuid.UUID  `json:"id"`
	StoreID    uuid.UUID  `json:"storeId"`
	UserID     uuid.UUID  `json:"userId"`
	Action     Action     `json:"action"`
	EntityKind EntityKind `json:"entityType"`
	EntityID   uuid.UUID  `json:"entityId"`
	EntityName string     `json:"entityName,omitempty"`
	Details    string     `json:"details,omitempty"`
	Before     Snapshot   `json:"beforeSnapshot,omitempty"`
	After      Snapshot   `json:"afterSnapshot,omitempty"`
	Undoable   bool       `json:"undoable"`
	UndoneAt   *time.Time `json:"undoneAt,omitempty"`
	UndoneBy   *uuid.UUID `json:"undoneBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}
