package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// undoJournal is the slice of the Journal the orchestrator needs. Tests
// substitute an in-memory implementation.
type undoJournal interface {
	Get(ctx context.Context, id uuid.UUID) (LogEntry, error)
	ConsumeUndo(ctx context.Context, id uuid.UUID, undoneAt time.Time, undoneBy uuid.UUID, fn func(tx *gorm.DB) error) error
	Append(ctx context.Context, req AppendRequest) (LogEntry, error)
	Invalidate(storeID uuid.UUID)
}

// UndoResult is what a successful reversal hands back to the caller. EntityID
// is the live id: for an undone delete the store may have assigned a fresh
// one, and that id, not the stale original, is reported everywhere.
type UndoResult struct {
	EntityKind EntityKind `json:"entityType"`
	EntityID   uuid.UUID  `json:"entityId"`
	Restored   Snapshot   `json:"restoredState,omitempty"`
}

// Orchestrator drives the LOGGED -> UNDONE transition: eligibility gate,
// adapter dispatch, atomic consumption, notification.
type Orchestrator struct {
	journal   undoJournal
	registry  *Registry
	sink      EventSink
	deadlines DeadlinePolicy
	now       func() time.Time
	log       zerolog.Logger
}

func NewOrchestrator(journal undoJournal, registry *Registry, sink EventSink, deadlines DeadlinePolicy, log zerolog.Logger) (*Orchestrator, error) {
	if journal == nil {
		return nil, errors.New("journal is required")
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if deadlines.Default <= 0 {
		return nil, errors.New("default undo deadline is required")
	}
	if sink == nil {
		sink = NopSink{}
	}

	return &Orchestrator{
		journal:   journal,
		registry:  registry,
		sink:      sink,
		deadlines: deadlines,
		now:       time.Now,
		log:       log,
	}, nil
}

// Undo reverses the entry identified by logID. The adapter write and the
// entry's consumed flag commit in one transaction: a failure anywhere leaves
// the entry undoable and the entity untouched. Retries are the caller's
// responsibility; a retry after an unacknowledged commit safely observes
// ErrAlreadyUndone.
func (o *Orchestrator) Undo(ctx context.Context, logID, requesterID uuid.UUID) (UndoResult, error) {
	entry, err := o.journal.Get(ctx, logID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			undoAttempts.WithLabelValues(outcomeNotFound).Inc()
		} else {
			undoAttempts.WithLabelValues(outcomeError).Inc()
		}
		return UndoResult{}, err
	}

	now := o.now().UTC()
	if err := EligibilityReason(entry, now, o.deadlines.For(entry.EntityKind)); err != nil {
		undoAttempts.WithLabelValues(eligibilityOutcome(err)).Inc()
		return UndoResult{}, fmt.Errorf("entry %s: %w", logID, err)
	}

	adapter, err := o.registry.Resolve(entry.EntityKind)
	if err != nil {
		// A missing adapter is a deployment gap, not a client mistake.
		o.log.Error().Str("entity_kind", string(entry.EntityKind)).Str("log_id", logID.String()).
			Msg("undo requested for unregistered entity kind")
		undoAttempts.WithLabelValues(outcomeUnknownEntity).Inc()
		return UndoResult{}, err
	}

	result := UndoResult{EntityKind: entry.EntityKind, EntityID: entry.EntityID}

	err = o.journal.ConsumeUndo(ctx, logID, now, requesterID, func(tx *gorm.DB) error {
		switch entry.Action {
		case ActionCreate:
			return adapter.Remove(ctx, tx, entry.EntityID)
		case ActionUpdate:
			if len(entry.Before) == 0 {
				return fmt.Errorf("%w: update entry has no before snapshot", ErrInvalidSnapshot)
			}
			result.Restored = entry.Before
			return adapter.Restore(ctx, tx, entry.EntityID, entry.Before)
		case ActionDelete:
			if len(entry.Before) == 0 {
				return fmt.Errorf("%w: delete entry has no before snapshot", ErrInvalidSnapshot)
			}
			newID, err := adapter.Recreate(ctx, tx, entry.Before)
			if err != nil {
				return err
			}
			result.EntityID = newID
			result.Restored = entry.Before
			return nil
		default:
			return fmt.Errorf("%w: action %q", ErrNotUndoable, entry.Action)
		}
	})
	if err != nil {
		undoAttempts.WithLabelValues(undoFailureOutcome(err)).Inc()
		return UndoResult{}, err
	}

	o.journal.Invalidate(entry.StoreID)

	// Compensating audit entry: records that the undo happened, with the
	// snapshots swapped. Never undoable itself. Best-effort; the undo has
	// already committed.
	if _, err := o.journal.Append(ctx, AppendRequest{
		StoreID:    entry.StoreID,
		UserID:     requesterID,
		Action:     ActionUndo,
		EntityKind: entry.EntityKind,
		EntityID:   result.EntityID,
		EntityName: entry.EntityName,
		Details:    fmt.Sprintf("undo of %s %s", entry.Action, logID),
		Before:     entry.After,
		After:      entry.Before,
	}); err != nil {
		o.log.Warn().Err(err).Str("log_id", logID.String()).Msg("failed to append compensating undo entry")
	}

	undone := entry
	undone.Undoable = false
	undone.UndoneAt = &now
	undone.UndoneBy = &requesterID
	undone.EntityID = result.EntityID
	o.sink.LogUndone(ctx, undone, result.Restored)

	undoAttempts.WithLabelValues(outcomeOK).Inc()

	return result, nil
}

func eligibilityOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyUndone):
		return outcomeAlreadyUndone
	case errors.Is(err, ErrExpired):
		return outcomeExpired
	default:
		return outcomeNonUndoable
	}
}

func undoFailureOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyUndone):
		return outcomeAlreadyUndone
	case errors.Is(err, ErrInvalidSnapshot):
		return outcomeInvalidSnapshot
	case errors.Is(err, ErrConflict):
		return outcomeConflict
	default:
		return outcomeError
	}
}
