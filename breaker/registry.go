package breaker

import "sync"

// Registry owns the name -> Breaker table. Breakers are created on first
// touch by the guard layer, not by the registry itself; the registry exists
// for administrative introspection and reset.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry creates an empty breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*Breaker)}
}

// GetOrCreate returns the named breaker, creating it from cfg on first touch.
// An existing breaker keeps its original configuration.
func (r *Registry) GetOrCreate(cfg Config) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[cfg.Name]; ok {
		return b
	}
	b := New(cfg)
	r.breakers[cfg.Name] = b
	return b
}

// Get returns the named breaker, or nil if unknown.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakers[name]
}

// All returns a snapshot of every breaker keyed by name.
func (r *Registry) All() map[string]Snapshot {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	out := make(map[string]Snapshot, len(breakers))
	for _, b := range breakers {
		out[b.Name()] = b.Snapshot()
	}
	return out
}

// Reset forces the named breaker back to closed. Returns false if the name
// is unknown.
func (r *Registry) Reset(name string) bool {
	b := r.Get(name)
	if b == nil {
		return false
	}
	b.Reset()
	return true
}
