package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"posd/pkg/cache"
)

const defaultListLimit = 50

func keyUndoable(storeID uuid.UUID, limit int) string {
	return fmt.Sprintf("undo:actions:%s:%d", storeID, limit)
}

// AppendRequest carries everything a mutating operation reports when it asks
// the journal to record itself. Snapshots are copied before persisting; the
// journal never mutates or retains the caller's maps.
type AppendRequest struct {
	StoreID    uuid.UUID
	UserID     uuid.UUID
	Action     Action
	EntityKind EntityKind
	EntityID   uuid.UUID
	EntityName string
	Details    string
	Before     Snapshot
	After      Snapshot

	// NonUndoable records the entry as permanently non-reversible.
	NonUndoable bool
}

// Filter narrows List results. Zero fields are ignored.
type Filter struct {
	StoreID    uuid.UUID
	EntityKind EntityKind
	EntityID   uuid.UUID
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int

	// UndoableOnly applies the eligibility policy server-side: only entries
	// that an undo call would currently accept are returned.
	UndoableOnly bool
}

// Journal is the append-only store of log entries. All mutations go through
// Append and ConsumeUndo; retention cleanup lives in the Sweeper.
type Journal struct {
	orm       *gorm.DB
	deadlines DeadlinePolicy
	cache     *cache.Cache
	cacheTTL  time.Duration
	now       func() time.Time
}

// JournalConfig wires optional collaborators. Cache is advisory and may be
// nil; correctness never depends on a hit.
type JournalConfig struct {
	Deadlines DeadlinePolicy
	Cache     *cache.Cache
	CacheTTL  time.Duration
}

func NewJournal(orm *gorm.DB, cfg JournalConfig) (*Journal, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if cfg.Deadlines.Default <= 0 {
		return nil, errors.New("default undo deadline is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.TTLShort
	}

	return &Journal{
		orm:       orm,
		deadlines: cfg.Deadlines,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		now:       time.Now,
	}, nil
}

// Append assigns id and createdAt, persists atomically, and returns the
// stored entry. Entries default to undoable; NonUndoable and the
// compensating undo action are the only exceptions.
func (j *Journal) Append(ctx context.Context, req AppendRequest) (LogEntry, error) {
	if req.StoreID == uuid.Nil {
		return LogEntry{}, errors.New("store id is required")
	}
	if req.UserID == uuid.Nil {
		return LogEntry{}, errors.New("user id is required")
	}
	if !req.Action.Valid() && req.Action != ActionUndo {
		return LogEntry{}, fmt.Errorf("invalid action %q", req.Action)
	}
	if req.EntityKind == "" {
		return LogEntry{}, errors.New("entity kind is required")
	}

	undoable := !req.NonUndoable && req.Action != ActionUndo

	model := logModel{
		ID:         uuid.New(),
		StoreID:    req.StoreID,
		UserID:     req.UserID,
		Action:     string(req.Action),
		EntityKind: string(req.EntityKind),
		EntityID:   req.EntityID,
		EntityName: req.EntityName,
		Details:    req.Details,
		Before:     snapshotToJSONMap(req.Before.Clone()),
		After:      snapshotToJSONMap(req.After.Clone()),
		Undoable:   undoable,
		CreatedAt:  j.now().UTC(),
	}

	if err := j.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return LogEntry{}, err
	}

	j.Invalidate(req.StoreID)

	return model.toAPI(), nil
}

// Get fetches a single entry by id.
func (j *Journal) Get(ctx context.Context, id uuid.UUID) (LogEntry, error) {
	var model logModel
	err := j.orm.WithContext(ctx).Where("id = ?", id).First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return LogEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return LogEntry{}, err
	}
	return model.toAPI(), nil
}

// List returns entries matching the filter, newest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]LogEntry, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}

	cacheKey, cacheable := j.listCacheKey(f)
	if cacheable {
		if v, ok := j.cache.Get(cacheKey); ok {
			if entries, ok := v.([]LogEntry); ok {
				// Deadlines keep running while a listing sits in the
				// cache, so eligibility is re-applied on every hit.
				return j.stillUndoable(entries), nil
			}
		}
	}

	q := j.orm.WithContext(ctx).Model(&logModel{})
	if f.StoreID != uuid.Nil {
		q = q.Where("store_id = ?", f.StoreID)
	}
	if f.EntityKind != "" {
		q = q.Where("entity_kind = ?", f.EntityKind)
	}
	if f.EntityID != uuid.Nil {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("created_at <= ?", f.Until)
	}

	now := j.now().UTC()
	if f.UndoableOnly {
		// The SQL cutoff uses the widest configured window; the exact
		// per-kind deadline is applied below so kinds with shorter windows
		// never leak through.
		q = q.Where("undoable AND undone_at IS NULL AND created_at > ?", now.Add(-j.maxWindow()))
	}

	var models []logModel
	if err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&models).Error; err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, len(models))
	for _, m := range models {
		e := m.toAPI()
		if f.UndoableOnly && !IsUndoable(e, now, j.deadlines.For(e.EntityKind)) {
			continue
		}
		entries = append(entries, e)
	}

	if cacheable {
		j.cache.Set(cacheKey, entries, j.cacheTTL)
	}

	return entries, nil
}

// ConsumeUndo flips the entry to consumed and runs fn inside the same
// transaction. The flip is a compare-and-set against undoable/undone_at, so
// of two concurrent calls exactly one proceeds and the other observes
// ErrAlreadyUndone. If fn fails the flip rolls back and the entry remains
// undoable.
func (j *Journal) ConsumeUndo(ctx context.Context, id uuid.UUID, undoneAt time.Time, undoneBy uuid.UUID, fn func(tx *gorm.DB) error) error {
	return j.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&logModel{}).
			Where("id = ? AND undoable AND undone_at IS NULL", id).
			Updates(map[string]any{
				"undoable":  false,
				"undone_at": undoneAt,
				"undone_by": undoneBy,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyUndone
		}
		return fn(tx)
	})
}

// Invalidate drops the store's cached undoable listings.
func (j *Journal) Invalidate(storeID uuid.UUID) {
	if j.cache == nil {
		return
	}
	_, _ = j.cache.DeleteByPattern(fmt.Sprintf("undo:actions:%s:*", storeID))
}

// stillUndoable re-filters a cached listing against the current clock.
func (j *Journal) stillUndoable(entries []LogEntry) []LogEntry {
	now := j.now().UTC()
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		if IsUndoable(e, now, j.deadlines.For(e.EntityKind)) {
			out = append(out, e)
		}
	}
	return out
}

func (j *Journal) listCacheKey(f Filter) (string, bool) {
	if j.cache == nil || !f.UndoableOnly {
		return "", false
	}
	// Only the plain per-store undoable listing is hot enough to memoize.
	if f.StoreID == uuid.Nil || f.EntityKind != "" || f.EntityID != uuid.Nil ||
		f.Offset != 0 || !f.Since.IsZero() || !f.Until.IsZero() {
		return "", false
	}
	return keyUndoable(f.StoreID, f.Limit), true
}

func (j *Journal) maxWindow() time.Duration {
	max := j.deadlines.Default
	for _, d := range j.deadlines.PerKind {
		if d > max {
			max = d
		}
	}
	return max
}
