package cache

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache(t *testing.T, opts Options) (*Cache, *time.Time) {
	t.Helper()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	opts.Now = func() time.Time { return now }
	c := New(opts)
	t.Cleanup(c.Close)
	return c, &now
}

func TestSetGet(t *testing.T) {
	c, _ := newTestCache(t, Options{})

	c.Set("k", 42, TTLShort)
	v, ok := c.Get("k")
	if !ok || v != 42 {
		t.Fatalf("Get = (%v, %v), want (42, true)", v, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatal("unexpected hit for missing key")
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("stats = (%d, %d), want (1, 1)", hits, misses)
	}
}

func TestExpiry(t *testing.T) {
	c, now := newTestCache(t, Options{})

	c.Set("k", "v", 30*time.Second)

	*now = now.Add(29 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired early")
	}

	*now = now.Add(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d after lazy expiry, want 0", c.Len())
	}
}

func TestNonPositiveTTLFallsBack(t *testing.T) {
	c, now := newTestCache(t, Options{})

	c.Set("k", "v", 0)

	*now = now.Add(TTLMedium - time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should still be live inside the medium tier")
	}
}

func TestEviction(t *testing.T) {
	c, _ := newTestCache(t, Options{MaxEntries: 3})

	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("k%d", i), i, TTLLong)
	}

	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if _, ok := c.Get("k0"); ok {
		t.Fatal("oldest insertion should have been evicted")
	}
	if _, ok := c.Get("k3"); !ok {
		t.Fatal("newest insertion should survive")
	}
}

func TestSetRefreshesInsertionOrder(t *testing.T) {
	c, _ := newTestCache(t, Options{MaxEntries: 2})

	c.Set("a", 1, TTLLong)
	c.Set("b", 2, TTLLong)
	c.Set("a", 3, TTLLong) // now newest
	c.Set("c", 4, TTLLong) // evicts b

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 3 {
		t.Fatalf("a = (%v, %v), want (3, true)", v, ok)
	}
}

func TestDeleteByPattern(t *testing.T) {
	c, _ := newTestCache(t, Options{})

	c.Set("undo:actions:store-1:20", 1, TTLLong)
	c.Set("undo:actions:store-1:50", 2, TTLLong)
	c.Set("undo:actions:store-2:20", 3, TTLLong)
	c.Set("dashboard:activity:store-1", 4, TTLLong)

	n, err := c.DeleteByPattern("undo:actions:store-1:*")
	if err != nil {
		t.Fatalf("delete by pattern: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted = %d, want 2", n)
	}
	if _, ok := c.Get("undo:actions:store-2:20"); !ok {
		t.Fatal("other store's keys must survive")
	}
	if _, ok := c.Get("dashboard:activity:store-1"); !ok {
		t.Fatal("non-matching keys must survive")
	}

	t.Run("malformed pattern", func(t *testing.T) {
		n, err := c.DeleteByPattern("undo:actions:[")
		if err == nil {
			t.Fatal("malformed pattern should error")
		}
		if n != 0 {
			t.Fatalf("deleted = %d on malformed pattern, want 0", n)
		}
		if _, ok := c.Get("undo:actions:store-2:20"); !ok {
			t.Fatal("malformed pattern must remove nothing")
		}
	})
}

func TestSweep(t *testing.T) {
	c, now := newTestCache(t, Options{})

	c.Set("short", 1, 30*time.Second)
	c.Set("long", 2, time.Hour)

	*now = now.Add(time.Minute)
	if n := c.Sweep(); n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache(t, Options{})

	c.Set("k", 1, TTLShort)
	if !c.Delete("k") {
		t.Fatal("delete should report present key")
	}
	if c.Delete("k") {
		t.Fatal("second delete should report missing key")
	}
}
