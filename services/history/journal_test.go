package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"posd/pkg/cache"
)

// The hot undoable listing is memoized, but deadlines keep running while a
// listing sits in the cache. These tests drive List through the cache-hit
// path only, so no database is needed.

func newCachedJournal(t *testing.T, now *time.Time) (*Journal, *cache.Cache) {
	t.Helper()

	c := cache.New(cache.Options{})
	t.Cleanup(c.Close)

	j := &Journal{
		deadlines: DeadlinePolicy{Default: 30 * time.Minute},
		cache:     c,
		cacheTTL:  time.Hour,
		now:       func() time.Time { return *now },
	}
	return j, c
}

func TestListCacheHitReappliesDeadline(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	j, c := newCachedJournal(t, &now)

	storeID := uuid.New()
	fresh := tableEntry(ActionUpdate, now.Add(-5*time.Minute))
	nearDeadline := tableEntry(ActionUpdate, now.Add(-29*time.Minute))
	f := Filter{StoreID: storeID, UndoableOnly: true, Limit: 20}

	c.Set(keyUndoable(storeID, f.Limit), []LogEntry{fresh, nearDeadline}, time.Hour)

	entries, err := j.List(context.Background(), f)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want both while inside the window", len(entries))
	}

	// Two minutes later the cached listing is still live, but the older
	// entry's window has lapsed.
	now = now.Add(2 * time.Minute)

	entries, err = j.List(context.Background(), f)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want the expired entry filtered out", len(entries))
	}
	if entries[0].ID != fresh.ID {
		t.Fatalf("surviving entry = %s, want %s", entries[0].ID, fresh.ID)
	}
}

func TestListCacheHitDropsConsumedEntry(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	j, c := newCachedJournal(t, &now)

	storeID := uuid.New()
	undoneAt := now.Add(-time.Minute)
	consumed := tableEntry(ActionUpdate, now.Add(-5*time.Minute))
	consumed.Undoable = false
	consumed.UndoneAt = &undoneAt
	f := Filter{StoreID: storeID, UndoableOnly: true, Limit: 20}

	c.Set(keyUndoable(storeID, f.Limit), []LogEntry{consumed}, time.Hour)

	entries, err := j.List(context.Background(), f)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %d, want consumed entry filtered out", len(entries))
	}
}

func TestInvalidateDropsUndoableListings(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	j, c := newCachedJournal(t, &now)

	storeID := uuid.New()
	other := uuid.New()
	c.Set(keyUndoable(storeID, 20), []LogEntry{}, time.Hour)
	c.Set(keyUndoable(storeID, 50), []LogEntry{}, time.Hour)
	c.Set(keyUndoable(other, 20), []LogEntry{}, time.Hour)

	j.Invalidate(storeID)

	if _, ok := c.Get(keyUndoable(storeID, 20)); ok {
		t.Fatal("store listing should be invalidated")
	}
	if _, ok := c.Get(keyUndoable(storeID, 50)); ok {
		t.Fatal("all limits for the store should be invalidated")
	}
	if _, ok := c.Get(keyUndoable(other, 20)); !ok {
		t.Fatal("other stores' listings must survive")
	}
}
