package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// fakeJournal models the row lock with a mutex so concurrent ConsumeUndo
// calls race the same way the real compare-and-set does.
type fakeJournal struct {
	mu      sync.Mutex
	entries map[uuid.UUID]LogEntry
	appends []AppendRequest

	appendErr   error
	invalidated int
}

func newFakeJournal(entries ...LogEntry) *fakeJournal {
	f := &fakeJournal{entries: make(map[uuid.UUID]LogEntry)}
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return f
}

func (f *fakeJournal) Get(_ context.Context, id uuid.UUID) (LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return LogEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

func (f *fakeJournal) ConsumeUndo(_ context.Context, id uuid.UUID, undoneAt time.Time, undoneBy uuid.UUID, fn func(tx *gorm.DB) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok || !e.Undoable || e.UndoneAt != nil {
		return ErrAlreadyUndone
	}
	if err := fn(nil); err != nil {
		return err
	}
	e.Undoable = false
	e.UndoneAt = &undoneAt
	e.UndoneBy = &undoneBy
	f.entries[id] = e
	return nil
}

func (f *fakeJournal) Append(_ context.Context, req AppendRequest) (LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return LogEntry{}, f.appendErr
	}
	f.appends = append(f.appends, req)
	return LogEntry{ID: uuid.New(), Action: req.Action, EntityKind: req.EntityKind}, nil
}

func (f *fakeJournal) Invalidate(uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

type fakeAdapter struct {
	removed    []uuid.UUID
	restored   []uuid.UUID
	recreated  []Snapshot
	recreateID uuid.UUID
	err        error
}

func (a *fakeAdapter) Recreate(_ context.Context, _ *gorm.DB, snap Snapshot) (uuid.UUID, error) {
	if a.err != nil {
		return uuid.Nil, a.err
	}
	a.recreated = append(a.recreated, snap)
	return a.recreateID, nil
}

func (a *fakeAdapter) Restore(_ context.Context, _ *gorm.DB, id uuid.UUID, _ Snapshot) error {
	if a.err != nil {
		return a.err
	}
	a.restored = append(a.restored, id)
	return nil
}

func (a *fakeAdapter) Remove(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	if a.err != nil {
		return a.err
	}
	a.removed = append(a.removed, id)
	return nil
}

type recordingSink struct {
	created []LogEntry
	undone  []LogEntry
}

func (s *recordingSink) LogCreated(_ context.Context, e LogEntry) { s.created = append(s.created, e) }
func (s *recordingSink) LogUndone(_ context.Context, e LogEntry, _ Snapshot) {
	s.undone = append(s.undone, e)
}

func newTestOrchestrator(t *testing.T, journal *fakeJournal, adapter EntityAdapter, sink EventSink, now time.Time) *Orchestrator {
	t.Helper()

	reg := NewRegistry()
	if adapter != nil {
		if err := reg.Register(KindTable, adapter); err != nil {
			t.Fatal(err)
		}
	}

	o, err := NewOrchestrator(journal, reg, sink, DeadlinePolicy{Default: 30 * time.Minute}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	o.now = func() time.Time { return now }
	return o
}

func tableEntry(action Action, createdAt time.Time) LogEntry {
	return LogEntry{
		ID:         uuid.New(),
		StoreID:    uuid.New(),
		UserID:     uuid.New(),
		Action:     action,
		EntityKind: KindTable,
		EntityID:   uuid.New(),
		Before:     Snapshot{"name": "T1", "capacity": 4},
		After:      Snapshot{"name": "T1", "capacity": 6},
		Undoable:   true,
		CreatedAt:  createdAt,
	}
}

func TestUndoCreateRemovesEntity(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := tableEntry(ActionCreate, now.Add(-5*time.Minute))
	entry.Before = nil

	journal := newFakeJournal(entry)
	adapter := &fakeAdapter{}
	sink := &recordingSink{}
	o := newTestOrchestrator(t, journal, adapter, sink, now)

	requester := uuid.New()
	result, err := o.Undo(context.Background(), entry.ID, requester)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}

	if len(adapter.removed) != 1 || adapter.removed[0] != entry.EntityID {
		t.Fatalf("removed = %v, want [%s]", adapter.removed, entry.EntityID)
	}
	if result.EntityID != entry.EntityID || result.EntityKind != KindTable {
		t.Fatalf("result = %+v", result)
	}

	stored := journal.entries[entry.ID]
	if stored.Undoable || stored.UndoneAt == nil || *stored.UndoneBy != requester {
		t.Fatalf("entry not consumed: %+v", stored)
	}

	if len(sink.undone) != 1 {
		t.Fatalf("sink notified %d times, want 1", len(sink.undone))
	}
	if journal.invalidated == 0 {
		t.Fatal("cache was not invalidated")
	}
}

func TestUndoUpdateRestoresBefore(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := tableEntry(ActionUpdate, now.Add(-10*time.Minute))

	journal := newFakeJournal(entry)
	adapter := &fakeAdapter{}
	o := newTestOrchestrator(t, journal, adapter, nil, now)

	result, err := o.Undo(context.Background(), entry.ID, uuid.New())
	if err != nil {
		t.Fatalf("undo: %v", err)
	}

	if len(adapter.restored) != 1 || adapter.restored[0] != entry.EntityID {
		t.Fatalf("restored = %v", adapter.restored)
	}
	if result.Restored["capacity"] != 4 {
		t.Fatalf("restored snapshot = %v, want the before state", result.Restored)
	}
}

func TestUndoDeleteRecreatesWithNewID(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := tableEntry(ActionDelete, now.Add(-time.Minute))
	entry.After = nil

	newID := uuid.New()
	journal := newFakeJournal(entry)
	adapter := &fakeAdapter{recreateID: newID}
	o := newTestOrchestrator(t, journal, adapter, nil, now)

	result, err := o.Undo(context.Background(), entry.ID, uuid.New())
	if err != nil {
		t.Fatalf("undo: %v", err)
	}

	// The recreated entity may carry a fresh id; that id is what gets
	// reported, not the stale original.
	if result.EntityID != newID {
		t.Fatalf("result.EntityID = %s, want %s", result.EntityID, newID)
	}
	if len(journal.appends) != 1 || journal.appends[0].EntityID != newID {
		t.Fatalf("compensating append = %+v", journal.appends)
	}
}

func TestUndoWritesCompensatingEntry(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := tableEntry(ActionUpdate, now.Add(-10*time.Minute))

	journal := newFakeJournal(entry)
	o := newTestOrchestrator(t, journal, &fakeAdapter{}, nil, now)

	if _, err := o.Undo(context.Background(), entry.ID, uuid.New()); err != nil {
		t.Fatalf("undo: %v", err)
	}

	if len(journal.appends) != 1 {
		t.Fatalf("appends = %d, want 1", len(journal.appends))
	}
	comp := journal.appends[0]
	if comp.Action != ActionUndo {
		t.Fatalf("compensating action = %q, want undo", comp.Action)
	}
	// Snapshots are swapped: the undo moved the entity from After back to
	// Before.
	if comp.Before["capacity"] != 6 || comp.After["capacity"] != 4 {
		t.Fatalf("compensating snapshots not swapped: before=%v after=%v", comp.Before, comp.After)
	}
}

func TestUndoAppendFailureDoesNotFailUndo(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := tableEntry(ActionUpdate, now.Add(-10*time.Minute))

	journal := newFakeJournal(entry)
	journal.appendErr = errors.New("journal down")
	o := newTestOrchestrator(t, journal, &fakeAdapter{}, nil, now)

	if _, err := o.Undo(context.Background(), entry.ID, uuid.New()); err != nil {
		t.Fatalf("undo should succeed despite audit append failure, got %v", err)
	}
}

func TestUndoIneligible(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	undoneAt := now.Add(-time.Minute)
	requester := uuid.New()

	expired := tableEntry(ActionUpdate, now.Add(-31*time.Minute))
	consumed := tableEntry(ActionUpdate, now.Add(-5*time.Minute))
	consumed.Undoable = false
	consumed.UndoneAt = &undoneAt
	nonUndoable := tableEntry(ActionUpdate, now.Add(-5*time.Minute))
	nonUndoable.Undoable = false

	tests := []struct {
		name    string
		entry   LogEntry
		wantErr error
	}{
		{"expired", expired, ErrExpired},
		{"already undone", consumed, ErrAlreadyUndone},
		{"non-undoable", nonUndoable, ErrNotUndoable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			journal := newFakeJournal(tt.entry)
			adapter := &fakeAdapter{}
			o := newTestOrchestrator(t, journal, adapter, nil, now)

			_, err := o.Undo(context.Background(), tt.entry.ID, requester)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if len(adapter.removed)+len(adapter.restored)+len(adapter.recreated) != 0 {
				t.Fatal("adapter was called for an ineligible entry")
			}
		})
	}
}

func TestUndoNotFound(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	o := newTestOrchestrator(t, newFakeJournal(), &fakeAdapter{}, nil, now)

	_, err := o.Undo(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestUndoUnknownEntityKind(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := tableEntry(ActionUpdate, now.Add(-5*time.Minute))
	entry.EntityKind = "ghost"

	journal := newFakeJournal(entry)
	o := newTestOrchestrator(t, journal, &fakeAdapter{}, nil, now)

	_, err := o.Undo(context.Background(), entry.ID, uuid.New())
	if !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("error = %v, want ErrUnknownEntity", err)
	}
	if stored := journal.entries[entry.ID]; !stored.Undoable {
		t.Fatal("entry must stay undoable when no adapter exists")
	}
}

func TestUndoUpdateMissingBeforeSnapshot(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := tableEntry(ActionUpdate, now.Add(-5*time.Minute))
	entry.Before = nil

	journal := newFakeJournal(entry)
	o := newTestOrchestrator(t, journal, &fakeAdapter{}, nil, now)

	_, err := o.Undo(context.Background(), entry.ID, uuid.New())
	if !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("error = %v, want ErrInvalidSnapshot", err)
	}
	if stored := journal.entries[entry.ID]; !stored.Undoable {
		t.Fatal("failed undo must leave the entry undoable")
	}
}

func TestUndoAdapterConflictLeavesEntryUndoable(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := tableEntry(ActionUpdate, now.Add(-5*time.Minute))

	journal := newFakeJournal(entry)
	adapter := &fakeAdapter{err: fmt.Errorf("%w: table gone", ErrConflict)}
	sink := &recordingSink{}
	o := newTestOrchestrator(t, journal, adapter, sink, now)

	_, err := o.Undo(context.Background(), entry.ID, uuid.New())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}

	if stored := journal.entries[entry.ID]; !stored.Undoable || stored.UndoneAt != nil {
		t.Fatalf("entry must roll back to undoable: %+v", stored)
	}
	if len(sink.undone) != 0 {
		t.Fatal("sink must not fire for a failed undo")
	}
	if len(journal.appends) != 0 {
		t.Fatal("no compensating entry for a failed undo")
	}
}

func TestUndoSecondAttemptAlreadyUndone(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := tableEntry(ActionUpdate, now.Add(-5*time.Minute))

	journal := newFakeJournal(entry)
	o := newTestOrchestrator(t, journal, &fakeAdapter{}, nil, now)

	if _, err := o.Undo(context.Background(), entry.ID, uuid.New()); err != nil {
		t.Fatalf("first undo: %v", err)
	}
	_, err := o.Undo(context.Background(), entry.ID, uuid.New())
	if !errors.Is(err, ErrAlreadyUndone) {
		t.Fatalf("second undo error = %v, want ErrAlreadyUndone", err)
	}
}

func TestUndoConcurrentAtMostOnce(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	entry := tableEntry(ActionUpdate, now.Add(-5*time.Minute))

	journal := newFakeJournal(entry)
	adapter := &fakeAdapter{}
	o := newTestOrchestrator(t, journal, adapter, nil, now)

	const callers = 2
	errs := make(chan error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Undo(context.Background(), entry.ID, uuid.New())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, alreadyUndone int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyUndone):
			alreadyUndone++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 || alreadyUndone != 1 {
		t.Fatalf("outcomes = %d success, %d already-undone; want exactly one of each",
			succeeded, alreadyUndone)
	}
	if len(adapter.restored) != 1 {
		t.Fatalf("adapter wrote %d times, want exactly once", len(adapter.restored))
	}
}
