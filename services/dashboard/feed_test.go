package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"posd/pkg/cache"
)

func newTestFeed(t *testing.T, depth int) *Feed {
	t.Helper()

	c := cache.New(cache.Options{})
	t.Cleanup(c.Close)

	return &Feed{cache: c, depth: depth, ttl: cache.TTLMedium, log: zerolog.Nop()}
}

func eventBytes(t *testing.T, evt Event) []byte {
	t.Helper()
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestFeedHandleEvent(t *testing.T) {
	feed := newTestFeed(t, 2)
	storeID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		evt := Event{
			Event:     EventLogCreated,
			StoreID:   storeID,
			EntityID:  uuid.New(),
			Timestamp: time.Date(2026, 8, 1, 12, i, 0, 0, time.UTC),
		}
		if err := feed.handleEvent(ctx, eventBytes(t, evt)); err != nil {
			t.Fatalf("handle event: %v", err)
		}
	}

	recent := feed.Recent(storeID)
	if len(recent) != 2 {
		t.Fatalf("recent = %d events, want trimmed to 2", len(recent))
	}
	// Newest first.
	if !recent[0].Timestamp.After(recent[1].Timestamp) {
		t.Fatalf("events out of order: %v then %v", recent[0].Timestamp, recent[1].Timestamp)
	}
}

func TestFeedDropsPoisonMessages(t *testing.T) {
	feed := newTestFeed(t, 10)

	// Returning nil acks the message; a poison payload must not be
	// redelivered forever.
	if err := feed.handleEvent(context.Background(), []byte("{not json")); err != nil {
		t.Fatalf("poison message should be dropped, got %v", err)
	}
	if err := feed.handleEvent(context.Background(), eventBytes(t, Event{})); err != nil {
		t.Fatalf("event without store id should be dropped, got %v", err)
	}
}

func TestFeedActivityEndpoint(t *testing.T) {
	feed := newTestFeed(t, 10)
	storeID := uuid.New()

	evt := Event{Event: EventLogCreated, StoreID: storeID, EntityID: uuid.New(), Timestamp: time.Now().UTC()}
	if err := feed.handleEvent(context.Background(), eventBytes(t, evt)); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(feed.Routes())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/v1/activity/" + storeID.String())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Activity []Event `json:"activity"`
		Count    int     `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 || len(body.Activity) != 1 {
		t.Fatalf("body = %+v", body)
	}

	t.Run("unknown store is empty not missing", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/v1/activity/" + uuid.New().String())
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("malformed store id", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/v1/activity/nope")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})
}
