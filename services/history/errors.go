package history

import "errors"

// Failure kinds surfaced by the journal and orchestrator. Callers branch with
// errors.Is; the HTTP layer maps each to a distinct status and sub-code so a
// rejected undo is always explainable.
var (
	// ErrNotFound means the referenced log entry does not exist.
	ErrNotFound = errors.New("log entry not found")

	// ErrAlreadyUndone means the entry was consumed by an earlier undo.
	ErrAlreadyUndone = errors.New("entry already undone")

	// ErrExpired means the undo deadline has passed.
	ErrExpired = errors.New("undo deadline expired")

	// ErrNotUndoable means the entry was recorded as non-reversible.
	ErrNotUndoable = errors.New("entry marked non-undoable")

	// ErrUnknownEntity means no adapter is registered for the entry's kind.
	// This is a deployment gap, not a client mistake.
	ErrUnknownEntity = errors.New("no adapter registered for entity kind")

	// ErrInvalidSnapshot means a snapshot failed the adapter's schema
	// validation and no write was attempted.
	ErrInvalidSnapshot = errors.New("snapshot failed validation")

	// ErrConflict means the underlying entity was concurrently mutated or
	// deleted in a way that makes restoration impossible. The entry stays
	// undoable; the caller may retry once the conflict is resolved.
	ErrConflict = errors.New("entity state conflicts with restoration")
)
