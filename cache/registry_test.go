package cache

import (
	"testing"
	"time"
)

func TestRegistry_LazyCreate(t *testing.T) {
	r := NewRegistry("")

	c := r.Get("orders", false)
	if c == nil {
		t.Fatal("expected cache instance")
	}
	if again := r.Get("orders", false); again != c {
		t.Error("expected the same instance on repeated lookup")
	}
}

func TestRegistry_PersistFlagOnlyAtCreation(t *testing.T) {
	r := NewRegistry(t.TempDir())
	defer r.Close()

	c := r.Get("fees", true)
	if again := r.Get("fees", false); again != c {
		t.Error("expected existing instance regardless of persist flag")
	}
	if !c.Stats().Persistent {
		t.Error("expected cache to stay persistent")
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry("")

	r.Get("a", false).Set("k", 1, time.Minute)

	if !r.Clear("a") {
		t.Error("expected clear of known cache to succeed")
	}
	if r.Clear("unknown") {
		t.Error("expected clear of unknown cache to report false")
	}
	if stats := r.Stats()["a"]; stats.TotalEntries != 0 {
		t.Errorf("expected cleared cache to be empty, got %d entries", stats.TotalEntries)
	}
}

func TestRegistry_ClearAll(t *testing.T) {
	r := NewRegistry("")

	r.Get("a", false).Set("k", 1, time.Minute)
	r.Get("b", false).Set("k", 2, time.Minute)
	r.ClearAll()

	for name, stats := range r.Stats() {
		if stats.TotalEntries != 0 {
			t.Errorf("expected cache %s to be empty, got %d entries", name, stats.TotalEntries)
		}
	}
}
