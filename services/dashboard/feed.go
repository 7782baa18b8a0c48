package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"posd/pkg/bus"
	"posd/pkg/cache"
)

const (
	feedSubject = "pos.store.*.logs"
	feedDurable = "dashboard-feed"

	defaultFeedDepth = 50
)

func keyActivity(storeID uuid.UUID) string {
	return "dashboard:activity:" + storeID.String()
}

// Feed consumes journal events off the durable stream and keeps a bounded
// per-store recent-activity view in the cache. The view is a convenience,
// not a source of truth: after an outage clients resynchronize from the
// journal's list endpoint.
type Feed struct {
	bus   *bus.Bus
	cache *cache.Cache
	depth int
	ttl   time.Duration
	log   zerolog.Logger

	subMu sync.Mutex
	sub   io.Closer
}

func NewFeed(b *bus.Bus, c *cache.Cache, log zerolog.Logger) (*Feed, error) {
	if b == nil {
		return nil, errors.New("bus is required")
	}
	if c == nil {
		return nil, errors.New("cache is required")
	}
	return &Feed{bus: b, cache: c, depth: defaultFeedDepth, ttl: cache.TTLMedium, log: log}, nil
}

// Start subscribes to journal events and processes them until ctx ends.
func (f *Feed) Start(ctx context.Context) error {
	sub, err := f.bus.Subscribe(ctx, feedSubject, feedDurable, f.handleEvent)
	if err != nil {
		return err
	}

	f.subMu.Lock()
	f.sub = sub
	f.subMu.Unlock()

	return nil
}

// Close stops the underlying subscription if it was created.
func (f *Feed) Close() error {
	f.subMu.Lock()
	defer f.subMu.Unlock()

	if f.sub == nil {
		return nil
	}
	err := f.sub.Close()
	f.sub = nil
	return err
}

func (f *Feed) handleEvent(ctx context.Context, data []byte) error {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		// Poison messages are dropped, not redelivered forever.
		f.log.Warn().Err(err).Msg("discarding undecodable dashboard event")
		return nil
	}
	if evt.StoreID == uuid.Nil {
		return nil
	}

	recent := append([]Event{evt}, f.Recent(evt.StoreID)...)
	if len(recent) > f.depth {
		recent = recent[:f.depth]
	}
	f.cache.Set(keyActivity(evt.StoreID), recent, f.ttl)

	return nil
}

// Recent returns the cached activity view for a store, newest first.
func (f *Feed) Recent(storeID uuid.UUID) []Event {
	v, ok := f.cache.Get(keyActivity(storeID))
	if !ok {
		return nil
	}
	events, ok := v.([]Event)
	if !ok {
		return nil
	}
	return events
}

// Routes exposes the activity view over HTTP.
func (f *Feed) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/v1/activity/{storeID}", f.handleActivity)

	return r
}

func (f *Feed) handleActivity(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(chi.URLParam(r, "storeID"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	events := f.Recent(storeID)
	if events == nil {
		events = []Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"activity": events, "count": len(events)})
}
