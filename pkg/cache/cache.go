package cache

import (
	"container/list"
	"path"
	"sync"
	"time"
)

// Default TTL tiers. Short suits real-time listings, medium ordinary reads,
// long near-static data. Services may override all three via configuration.
const (
	TTLShort  = 30 * time.Second
	TTLMedium = 5 * time.Minute
	TTLLong   = time.Hour
)

const (
	defaultMaxEntries    = 10000
	defaultSweepInterval = time.Minute
)

type entry struct {
	key       string
	value     any
	expiresAt time.Time
	elem      *list.Element
}

// Cache is a bounded in-memory key/value store with per-entry TTL and glob
// pattern invalidation. Expired entries are dropped lazily on access and by a
// periodic sweep. When the configured maximum size is exceeded the oldest
// insertion is evicted. The cache is advisory: callers must always be able to
// satisfy a miss from the backing store.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // front = oldest insertion

	maxEntries int
	now        func() time.Time

	hits   uint64
	misses uint64

	done chan struct{}
	once sync.Once
}

// Options tunes a Cache. Zero values fall back to package defaults.
type Options struct {
	MaxEntries    int
	SweepInterval time.Duration

	// Now overrides the clock; tests use it to step time deterministically.
	Now func() time.Time
}

// New creates a Cache and starts its sweep goroutine. Callers own the
// lifecycle and must Close it on shutdown.
func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache{
		entries:    make(map[string]*entry),
		order:      list.New(),
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		done:       make(chan struct{}),
	}

	go c.sweepLoop(opts.SweepInterval)

	return c
}

// Close stops the sweep goroutine. The cache stays usable afterwards.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
}

// Set stores value under key for ttl. A non-positive ttl falls back to the
// medium tier. Setting an existing key refreshes its insertion position.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = TTLMedium
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.order.Remove(old.elem)
		delete(c.entries, key)
	}

	e := &entry{key: key, value: value, expiresAt: c.now().Add(ttl)}
	e.elem = c.order.PushBack(e)
	c.entries[key] = e

	for len(c.entries) > c.maxEntries {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*entry)
		c.order.Remove(oldest)
		delete(c.entries, evicted.key)
	}
}

// Get returns the value stored under key. Expired entries are removed on
// access and reported as misses.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if !e.expiresAt.After(c.now()) {
		c.order.Remove(e.elem)
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	c.hits++
	return e.value, true
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.Remove(e.elem)
	delete(c.entries, key)
	return true
}

// DeleteByPattern removes every key matching the glob pattern (path.Match
// syntax, '*' wildcards) and returns how many were dropped. A malformed
// pattern is an error and removes nothing.
func (c *Cache) DeleteByPattern(pattern string) (int, error) {
	// path.Match's error depends only on the pattern, so it can be rejected
	// up front before any key is touched.
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deleted := 0
	for key, e := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			c.order.Remove(e.elem)
			delete(c.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Sweep removes all expired entries now and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	deleted := 0
	for key, e := range c.entries {
		if !e.expiresAt.After(now) {
			c.order.Remove(e.elem)
			delete(c.entries, key)
			deleted++
		}
	}
	return deleted
}

// Len reports the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports cumulative hit/miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
