package metadata

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tech-news-daily/apptrack/internal/sensortower"
)

// Cache memoizes identifier resolution for one run. A singleflight group
// collapses concurrent misses for the same key into a single resolution, so
// each identifier costs at most one network round-trip per run.
type Cache struct {
	mu      sync.RWMutex
	entries map[sensortower.AppID]AppMetadata
	group   singleflight.Group
}

// NewCache creates an empty per-run cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[sensortower.AppID]AppMetadata),
	}
}

// Get returns the cached record for id, if present.
func (c *Cache) Get(id sensortower.AppID) (AppMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	meta, ok := c.entries[id]
	return meta, ok
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Resolve returns the record for id, running resolve at most once per key
// even when concurrent callers miss together. A failed resolution caches the
// sentinel record so a permanently broken identifier is not retried within
// the run.
func (c *Cache) Resolve(ctx context.Context, id sensortower.AppID, resolve func(context.Context) (AppMetadata, error)) AppMetadata {
	if meta, ok := c.Get(id); ok {
		return meta
	}

	result, _, _ := c.group.Do(string(id), func() (any, error) {
		// A previous flight may have populated the entry between the
		// miss above and this call.
		if meta, ok := c.Get(id); ok {
			return meta, nil
		}

		meta, err := resolve(ctx)
		if err != nil {
			log.Warn().
				Err(err).
				Str("app_id", string(id)).
				Msg("Metadata resolution failed, caching sentinel")
			meta = Sentinel()
		}

		c.mu.Lock()
		c.entries[id] = meta
		c.mu.Unlock()

		return meta, nil
	})

	return result.(AppMetadata)
}
