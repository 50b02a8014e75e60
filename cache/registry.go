package cache

import "sync"

// Registry owns the name -> Cache table. Caches are created lazily on first
// reference and live for the registry's lifetime. The registry is the single
// source of truth for administrative introspection; guarded operations reach
// their cache only through their wrapper, never through the registry.
type Registry struct {
	mu     sync.Mutex
	caches map[string]*Cache

	// baseDir is the persistence directory handed to persistent caches.
	baseDir string
}

// NewRegistry creates an empty cache registry. baseDir may be empty to use
// the per-cache default.
func NewRegistry(baseDir string) *Registry {
	return &Registry{
		caches:  make(map[string]*Cache),
		baseDir: baseDir,
	}
}

// Get returns the named cache, creating it on first reference. The persist
// flag only takes effect at creation; later calls return the existing
// instance unchanged.
func (r *Registry) Get(name string, persist bool) *Cache {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.caches[name]; ok {
		return c
	}
	c := New(name, Config{Persist: persist, PersistDir: r.baseDir})
	r.caches[name] = c
	return c
}

// All returns a snapshot of all caches by name.
func (r *Registry) All() map[string]*Cache {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*Cache, len(r.caches))
	for name, c := range r.caches {
		out[name] = c
	}
	return out
}

// Clear clears the named cache. Returns false if the name is unknown.
func (r *Registry) Clear(name string) bool {
	r.mu.Lock()
	c, ok := r.caches[name]
	r.mu.Unlock()

	if !ok {
		return false
	}
	c.Clear()
	return true
}

// ClearAll clears every cache.
func (r *Registry) ClearAll() {
	for _, c := range r.All() {
		c.Clear()
	}
}

// Stats returns per-cache statistics keyed by cache name.
func (r *Registry) Stats() map[string]Stats {
	all := r.All()
	out := make(map[string]Stats, len(all))
	for name, c := range all {
		out[name] = c.Stats()
	}
	return out
}

// Close flushes and stops every persistent cache. Call before process exit.
func (r *Registry) Close() {
	for _, c := range r.All() {
		c.Close()
	}
}
