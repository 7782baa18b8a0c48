package store

import (
	"fmt"

	"github.com/google/uuid"

	"posd/services/history"
)

// Snapshot field accessors. Snapshots round-trip through jsonb, so numbers
// may arrive as float64 even when recorded as ints, and ids as strings.

func snapString(snap history.Snapshot, key string) (string, bool) {
	v, ok := snap[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func snapInt(snap history.Snapshot, key string) (int, bool) {
	switch v := snap[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func snapFloat(snap history.Snapshot, key string) (float64, bool) {
	switch v := snap[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func snapBool(snap history.Snapshot, key string) (bool, bool) {
	v, ok := snap[key].(bool)
	return v, ok
}

func snapUUID(snap history.Snapshot, key string) (uuid.UUID, bool) {
	switch v := snap[key].(type) {
	case uuid.UUID:
		return v, v != uuid.Nil
	case string:
		id, err := uuid.Parse(v)
		return id, err == nil
	default:
		return uuid.Nil, false
	}
}

func invalidSnapshot(kind history.EntityKind, field string) error {
	return fmt.Errorf("%w: %s snapshot missing %s", history.ErrInvalidSnapshot, kind, field)
}

// recreateID reuses the snapshot's original id when present; the caller
// falls back to a fresh id if that row already exists again.
func recreateID(snap history.Snapshot) uuid.UUID {
	if id, ok := snapUUID(snap, "id"); ok {
		return id
	}
	return uuid.New()
}
