package metadata

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tech-news-daily/apptrack/internal/sensortower"
)

// defaultWorkers bounds concurrent metadata lookups. The API's pacing
// limiter is the real throughput ceiling; the pool just caps in-flight work.
const defaultWorkers = 5

// Dispatcher fans metadata lookups out across a bounded worker pool.
type Dispatcher struct {
	cache    *Cache
	resolver *Resolver
	workers  int
}

// NewDispatcher creates a dispatcher over the given cache and resolver.
func NewDispatcher(cache *Cache, resolver *Resolver, workers int) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Dispatcher{
		cache:    cache,
		resolver: resolver,
		workers:  workers,
	}
}

// ResolveAll resolves every identifier in ids and returns a mapping covering
// the full (deduplicated) input set. Cached identifiers are answered
// directly; the rest are fanned out to the worker pool. Failed resolutions
// surface as sentinel records, never as missing keys.
func (d *Dispatcher) ResolveAll(ctx context.Context, ids []sensortower.AppID) map[sensortower.AppID]AppMetadata {
	results := make(map[sensortower.AppID]AppMetadata, len(ids))

	seen := make(map[sensortower.AppID]struct{}, len(ids))
	var uncached []sensortower.AppID
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if meta, ok := d.cache.Get(id); ok {
			results[id] = meta
		} else {
			uncached = append(uncached, id)
		}
	}

	log.Debug().
		Int("identifiers", len(seen)).
		Int("cached", len(results)).
		Int("uncached", len(uncached)).
		Msg("Dispatching metadata lookups")

	if len(uncached) == 0 {
		return results
	}

	jobs := make(chan sensortower.AppID)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				meta := d.cache.Resolve(ctx, id, func(ctx context.Context) (AppMetadata, error) {
					return d.resolver.Resolve(ctx, id)
				})

				mu.Lock()
				results[id] = meta
				mu.Unlock()
			}
		}()
	}

	for _, id := range uncached {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	return results
}
