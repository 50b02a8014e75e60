package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCache_PersistRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c := New("roundtrip", Config{Persist: true, PersistDir: dir})
	c.Set("key", "value", time.Minute)
	c.Close()

	if _, err := os.Stat(filepath.Join(dir, "roundtrip.json")); err != nil {
		t.Fatalf("expected persistence file, got %v", err)
	}

	reloaded := New("roundtrip", Config{Persist: true, PersistDir: dir})
	defer reloaded.Close()

	got, ok := reloaded.Get("key")
	if !ok {
		t.Fatal("expected entry to survive restart")
	}
	if got != "value" {
		t.Errorf("expected %q, got %v", "value", got)
	}
}

func TestCache_PersistSkipsExpiredOnLoad(t *testing.T) {
	dir := t.TempDir()

	c := New("expiry", Config{Persist: true, PersistDir: dir})
	c.Set("short", "gone", 10*time.Millisecond)
	c.Set("long", "kept", time.Minute)
	c.Close()

	time.Sleep(20 * time.Millisecond)

	reloaded := New("expiry", Config{Persist: true, PersistDir: dir})
	defer reloaded.Close()

	if _, ok := reloaded.Get("short"); ok {
		t.Error("expected expired entry to be discarded on load")
	}
	if _, ok := reloaded.Get("long"); !ok {
		t.Error("expected valid entry to survive load")
	}
}

func TestCache_PersistStructuredValue(t *testing.T) {
	dir := t.TempDir()

	original := map[string]any{
		"market": "BTC_USDT",
		"asks":   []any{[]any{"50000", "1.5"}},
	}

	c := New("structured", Config{Persist: true, PersistDir: dir})
	c.Set("key", original, time.Minute)
	c.Close()

	reloaded := New("structured", Config{Persist: true, PersistDir: dir})
	defer reloaded.Close()

	got, ok := reloaded.Get("key")
	if !ok {
		t.Fatal("expected entry to survive restart")
	}
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map value, got %T", got)
	}
	if m["market"] != "BTC_USDT" {
		t.Errorf("expected market BTC_USDT, got %v", m["market"])
	}
}

func TestCache_MalformedFileDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New("broken", Config{Persist: true, PersistDir: dir})
	defer c.Close()

	stats := c.Stats()
	if stats.TotalEntries != 0 {
		t.Errorf("expected empty cache from malformed file, got %d entries", stats.TotalEntries)
	}

	// Cache still works after the failed load.
	c.Set("key", "value", time.Minute)
	if _, ok := c.Get("key"); !ok {
		t.Error("expected cache to keep operating after failed load")
	}
}

func TestCache_MissingFileIsNotAnError(t *testing.T) {
	c := New("fresh", Config{Persist: true, PersistDir: t.TempDir()})
	defer c.Close()

	if stats := c.Stats(); stats.TotalEntries != 0 {
		t.Errorf("expected empty cache, got %d entries", stats.TotalEntries)
	}
}

func TestCache_CloseFlushesPendingWrite(t *testing.T) {
	dir := t.TempDir()

	c := New("flush", Config{Persist: true, PersistDir: dir})
	for i := 0; i < 100; i++ {
		c.Set("key", i, time.Minute)
	}
	c.Close()

	reloaded := New("flush", Config{Persist: true, PersistDir: dir})
	defer reloaded.Close()

	got, ok := reloaded.Get("key")
	if !ok {
		t.Fatal("expected final write to be flushed on close")
	}
	// JSON numbers decode as float64.
	if got != float64(99) {
		t.Errorf("expected latest value 99, got %v", got)
	}
}
