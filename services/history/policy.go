package history

import "time"

// DeadlinePolicy supplies the undo window per entity kind. The window is a
// parameter of every eligibility check, never global state, so tenants or
// kinds can carry different deadlines.
type DeadlinePolicy struct {
	Default time.Duration
	PerKind map[EntityKind]time.Duration
}

// For returns the window applying to kind.
func (p DeadlinePolicy) For(kind EntityKind) time.Duration {
	if d, ok := p.PerKind[kind]; ok && d > 0 {
		return d
	}
	return p.Default
}

// IsUndoable reports whether e can still be undone at now given the deadline.
// Pure and side-effect free; called both when listing undoable actions and as
// the authoritative gate inside the orchestrator.
func IsUndoable(e LogEntry, now time.Time, deadline time.Duration) bool {
	return e.Undoable && e.UndoneAt == nil && now.Sub(e.CreatedAt) <= deadline
}

// EligibilityReason returns nil when e is undoable, otherwise the specific
// ineligibility error. Already-undone wins over expiry so a consumed entry
// past its deadline still reports what actually happened to it.
func EligibilityReason(e LogEntry, now time.Time, deadline time.Duration) error {
	switch {
	case e.UndoneAt != nil:
		return ErrAlreadyUndone
	case !e.Undoable:
		return ErrNotUndoable
	case now.Sub(e.CreatedAt) > deadline:
		return ErrExpired
	default:
		return nil
	}
}
