// Package cache provides named TTL caches with optional disk persistence.
//
// An entry is valid while now - createdAt < ttl. Stale entries are treated as
// absent and purged lazily on the next access. When persistence is enabled the
// cache is hydrated from disk at construction and re-serialized after every
// mutation; disk failures are logged and the cache keeps operating in memory.
package cache

import (
	"sync"
	"time"

	"github.com/kyraven-io/marketguard/logger"
)

// entry is a single cached value with its expiry metadata.
type entry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
}

// valid reports whether the entry is still within its TTL at the given time.
func (e entry) valid(now time.Time) bool {
	return now.Sub(e.createdAt) < e.ttl
}

// Config configures a cache instance.
type Config struct {
	// Persist enables disk persistence for this cache.
	Persist bool
	// PersistDir is the directory for the persistence file.
	// Defaults to DefaultPersistDir when empty.
	PersistDir string
}

// Cache is a keyed TTL-bounded store. All methods are safe for concurrent use;
// the lock is scoped to this instance so unrelated caches never contend.
type Cache struct {
	name       string
	persist    bool
	persistDir string

	mu      sync.Mutex
	entries map[string]entry

	flusher *flusher
	log     *logger.Logger
}

// Stats describes the current contents of a cache. Introspection only.
type Stats struct {
	Name           string `json:"name"`
	ValidEntries   int    `json:"valid_entries"`
	InvalidEntries int    `json:"invalid_entries"`
	TotalEntries   int    `json:"total_entries"`
	Persistent     bool   `json:"persistent"`
	PersistDir     string `json:"persist_dir,omitempty"`
}

// New creates a cache. A persistent cache is hydrated from disk immediately;
// entries whose TTL elapsed before load are discarded. A missing or malformed
// persistence file degrades to an empty cache with a logged error.
func New(name string, cfg Config) *Cache {
	c := &Cache{
		name:    name,
		persist: cfg.Persist,
		entries: make(map[string]entry),
		log:     logger.WithComponent("cache").WithFields(map[string]interface{}{logger.FieldCacheName: name}),
	}

	if cfg.Persist {
		c.persistDir = cfg.PersistDir
		if c.persistDir == "" {
			c.persistDir = DefaultPersistDir()
		}
		c.loadFromDisk()
		c.flusher = newFlusher(c)
	}

	return c
}

// Name returns the cache name.
func (c *Cache) Name() string { return c.name }

// Get returns the value for key if an entry exists and is still valid.
// A stale entry is removed and reported as absent.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !e.valid(time.Now()) {
		delete(c.entries, key)
		c.markDirty()
		return nil, false
	}
	return e.value, true
}

// Set inserts or overwrites the entry for key with createdAt = now.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, createdAt: time.Now(), ttl: ttl}
	c.mu.Unlock()
	c.markDirty()
}

// Delete removes a single entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()
	if ok {
		c.markDirty()
	}
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	c.markDirty()
}

// Stats returns a snapshot of the cache contents. It never mutates the cache.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	s := Stats{
		Name:       c.name,
		Persistent: c.persist,
		PersistDir: c.persistDir,
	}
	for _, e := range c.entries {
		if e.valid(now) {
			s.ValidEntries++
		} else {
			s.InvalidEntries++
		}
	}
	s.TotalEntries = s.ValidEntries + s.InvalidEntries
	return s
}

// Close flushes any pending persistence write and stops the background writer.
// Required before process exit for correctness of the next cold start.
func (c *Cache) Close() {
	if c.flusher != nil {
		c.flusher.close()
	}
}

// markDirty schedules a persistence write if persistence is enabled.
func (c *Cache) markDirty() {
	if c.flusher != nil {
		c.flusher.notify()
	}
}

// snapshot copies the currently valid entries for serialization.
func (c *Cache) snapshot() map[string]entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	out := make(map[string]entry, len(c.entries))
	for k, e := range c.entries {
		if e.valid(now) {
			out[k] = e
		}
	}
	return out
}
