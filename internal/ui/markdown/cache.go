package markdown

import (
	"context"
	"fmt"
	"time"

	"github.com/orbitctl/orbitctl/internal/cachemanager"
)

// cacheTTL bounds how long a rendered document stays cached. Renders are
// keyed by width, so a resize simply misses and re-renders.
const cacheTTL = 10 * time.Minute

// renderInput carries one render request through the read-through loader.
type renderInput struct {
	width    int
	style    string
	markdown string
}

// CachedRenderer memoizes glamour renders. The help overlay re-renders the
// protocol reference on every open; glamour is slow enough to stutter the UI,
// so renders are cached per (width, style).
type CachedRenderer struct {
	cache *cachemanager.ReadThroughCache[string, string, renderInput]
}

// NewCachedRenderer builds a cached renderer backed by an in-memory TTL cache.
func NewCachedRenderer() *CachedRenderer {
	store := cachemanager.NewInMemoryCacheManager[string, string]("markdown", cacheTTL, time.Minute)
	return &CachedRenderer{
		cache: cachemanager.NewReadThroughCache(store, renderDocument, false),
	}
}

// Render returns the document rendered at the given width and style,
// from cache when possible.
func (c *CachedRenderer) Render(ctx context.Context, doc string, width int, style string) (string, error) {
	key := fmt.Sprintf("%d:%s:%d", width, style, len(doc))
	return c.cache.Get(ctx, key, renderInput{width: width, style: style, markdown: doc}, cacheTTL)
}

// renderDocument is the cache-miss loader.
func renderDocument(_ context.Context, in renderInput) (string, error) {
	r, err := New(in.width, in.style)
	if err != nil {
		return "", err
	}
	return r.Render(in.markdown)
}
