package cachemanager

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultDedupeWindow is how long a repeated identical line stays suppressed.
// The simulation prints per-frame diagnostics; anything repeating faster than
// this would otherwise drown the log.
const DefaultDedupeWindow = 2 * time.Second

// OutputDeduper suppresses repeated identical output lines within a sliding
// window. Each repeat refreshes the window, so a line spamming every frame
// is logged once until it goes quiet. Safe for concurrent use.
type OutputDeduper struct {
	cache      CacheManager[string, struct{}]
	window     time.Duration
	suppressed atomic.Int64
}

// NewOutputDeduper creates a deduper with the given suppression window.
// A non-positive window falls back to the default.
func NewOutputDeduper(window time.Duration) *OutputDeduper {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &OutputDeduper{
		cache:  NewInMemoryCacheManager[string, struct{}]("sim-output-dedupe", window, time.Minute),
		window: window,
	}
}

// Seen records the key and reports whether it was already observed within
// the window. A hit extends the window.
func (d *OutputDeduper) Seen(key string) bool {
	ctx := context.Background()
	if _, dup := d.cache.GetWithRefresh(ctx, key, d.window); dup {
		d.suppressed.Add(1)
		return true
	}
	d.cache.Set(ctx, key, struct{}{}, d.window)
	return false
}

// Suppressed returns how many lines were held back so far.
func (d *OutputDeduper) Suppressed() int64 {
	return d.suppressed.Load()
}

// Reset clears the window state and the suppression counter.
func (d *OutputDeduper) Reset() {
	_ = d.cache.Flush(context.Background())
	d.suppressed.Store(0)
}
