package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/kyraven-io/marketguard/errors"
)

// persistedEntry is the on-disk representation of a cache entry. Timestamps
// and TTLs are stored as seconds since epoch / plain seconds so the file stays
// readable and language-neutral.
type persistedEntry struct {
	Value     any     `json:"value"`
	Timestamp float64 `json:"timestamp"`
	TTL       float64 `json:"ttl"`
}

// DefaultPersistDir returns the default persistence directory,
// ~/.marketguard/cache.
func DefaultPersistDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".marketguard", "cache")
	}
	return filepath.Join(home, ".marketguard", "cache")
}

// file returns the persistence file path for this cache.
func (c *Cache) file() string {
	return filepath.Join(c.persistDir, c.name+".json")
}

// persistToDisk serializes all currently valid entries to the cache file.
// Failures are logged, never raised: the cache continues in-memory-only.
func (c *Cache) persistToDisk() {
	snap := c.snapshot()

	out := make(map[string]persistedEntry, len(snap))
	for k, e := range snap {
		out[k] = persistedEntry{
			Value:     e.value,
			Timestamp: float64(e.createdAt.UnixNano()) / float64(time.Second),
			TTL:       e.ttl.Seconds(),
		}
	}

	if err := os.MkdirAll(c.persistDir, 0o755); err != nil {
		c.log.WithError(errors.Persistence(c.name, err)).Error("cache persist failed")
		return
	}

	data, err := json.Marshal(out)
	if err != nil {
		c.log.WithError(errors.Persistence(c.name, err)).Error("cache persist failed")
		return
	}

	// Write-then-rename so a crash mid-write never leaves a truncated file.
	tmp := c.file() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		c.log.WithError(errors.Persistence(c.name, err)).Error("cache persist failed")
		return
	}
	if err := os.Rename(tmp, c.file()); err != nil {
		c.log.WithError(errors.Persistence(c.name, err)).Error("cache persist failed")
	}
}

// loadFromDisk hydrates the cache from its persistence file. Only entries
// still valid under their TTL at load time are retained. A missing file is
// not an error; a malformed one degrades to an empty cache.
func (c *Cache) loadFromDisk() {
	data, err := os.ReadFile(c.file())
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.WithError(errors.Persistence(c.name, err)).Error("cache load failed")
		}
		return
	}

	var in map[string]persistedEntry
	if err := json.Unmarshal(data, &in); err != nil {
		c.log.WithError(errors.Persistence(c.name, err)).Error("cache load failed")
		return
	}

	now := time.Now()
	loaded := 0
	for k, pe := range in {
		e := entry{
			value:     pe.Value,
			createdAt: time.Unix(0, int64(pe.Timestamp*float64(time.Second))),
			ttl:       time.Duration(pe.TTL * float64(time.Second)),
		}
		if e.valid(now) {
			c.entries[k] = e
			loaded++
		}
	}

	c.log.Debug("cache hydrated from disk", map[string]interface{}{
		"entries": loaded,
		"skipped": len(in) - loaded,
	})
}

// flusher serializes persistence writes on a background goroutine so cache
// mutations never block on disk I/O. Close performs a final synchronous write.
type flusher struct {
	cache *Cache
	dirty chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

func newFlusher(c *Cache) *flusher {
	f := &flusher{
		cache: c,
		dirty: make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *flusher) run() {
	defer close(f.done)
	for {
		select {
		case <-f.dirty:
			f.cache.persistToDisk()
		case <-f.stop:
			// Drain one pending notification before the final flush.
			select {
			case <-f.dirty:
			default:
			}
			f.cache.persistToDisk()
			return
		}
	}
}

// notify coalesces pending write requests; the latest snapshot wins.
func (f *flusher) notify() {
	select {
	case f.dirty <- struct{}{}:
	default:
	}
}

func (f *flusher) close() {
	close(f.stop)
	<-f.done
}
