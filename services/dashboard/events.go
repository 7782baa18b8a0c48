package dashboard

import (
	"time"

	"github.com/google/uuid"

	"posd/services/history"
)

const (
	EventLogCreated = "log:created"
	EventLogUndone  = "log:undone"
)

// Event is the wire shape of a dashboard notification.
type Event struct {
	Event      string         `json:"event"`
	StoreID    uuid.UUID      `json:"storeId"`
	EntityType string         `json:"entityType"`
	EntityID   uuid.UUID      `json:"entityId"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// StoreTopic is the per-store subject every journal event lands on.
func StoreTopic(storeID uuid.UUID) string {
	return "pos.store." + storeID.String() + ".logs"
}

// TableTopic narrows to a single table so floor displays can subscribe to
// just their own seat.
func TableTopic(tableID uuid.UUID) string {
	return "pos.table." + tableID.String() + ".logs"
}

func logCreatedEvent(e history.LogEntry) Event {
	return Event{
		Event:      EventLogCreated,
		StoreID:    e.StoreID,
		EntityType: string(e.EntityKind),
		EntityID:   e.EntityID,
		Timestamp:  e.CreatedAt,
		Payload: map[string]any{
			"logId":      e.ID,
			"action":     e.Action,
			"entityName": e.EntityName,
			"details":    e.Details,
			"undoable":   e.Undoable,
		},
	}
}

func logUndoneEvent(e history.LogEntry, restored history.Snapshot) Event {
	ts := time.Now().UTC()
	if e.UndoneAt != nil {
		ts = *e.UndoneAt
	}
	return Event{
		Event:      EventLogUndone,
		StoreID:    e.StoreID,
		EntityType: string(e.EntityKind),
		EntityID:   e.EntityID,
		Timestamp:  ts,
		Payload: map[string]any{
			"logId":         e.ID,
			"action":        e.Action,
			"entityName":    e.EntityName,
			"restoredState": restored,
		},
	}
}
