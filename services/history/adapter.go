package history

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityAdapter is the per-entity-kind strategy the orchestrator dispatches
// to when reversing an entry. Implementations own their snapshot schema and
// must reject malformed snapshots with ErrInvalidSnapshot before writing
// anything. The tx handle is the journal transaction, so adapter writes
// commit or roll back together with the entry's consumed flag.
type EntityAdapter interface {
	// Recreate materializes an entity from a snapshot and returns its id.
	// Used to undo a delete; the store may assign a fresh id.
	Recreate(ctx context.Context, tx *gorm.DB, snap Snapshot) (uuid.UUID, error)

	// Restore overwrites the entity's mutable fields to match the snapshot.
	// Used to undo an update. Last-known-good, not a merge.
	Restore(ctx context.Context, tx *gorm.DB, entityID uuid.UUID, snap Snapshot) error

	// Remove deletes the entity. Used to undo a create.
	Remove(ctx context.Context, tx *gorm.DB, entityID uuid.UUID) error
}
