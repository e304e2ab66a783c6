package redis

import (
	"context"
	"time"
)

// HitRecorder receives cache hit/miss observations.  The prometheus
// collector satisfies it; nil disables recording.
type HitRecorder interface {
	IncCacheHit(hit bool)
}

// ValuationResultCache adapts Cache to the valuation service's
// read-through port, pinning the TTL and reporting hit rates.
type ValuationResultCache struct {
	cache Cache
	ttl   time.Duration
	hits  HitRecorder
}

// NewValuationResultCache wraps the cache for valuation results.  A zero
// TTL uses the cache default.
func NewValuationResultCache(cache Cache, ttl time.Duration, hits HitRecorder) *ValuationResultCache {
	return &ValuationResultCache{cache: cache, ttl: ttl, hits: hits}
}

func (a *ValuationResultCache) GetOrSet(ctx context.Context, key string, dest interface{}, fetch func(ctx context.Context) (interface{}, error)) error {
	fetched := false
	err := a.cache.GetOrSet(ctx, key, dest, a.ttl, func(ctx context.Context) (interface{}, error) {
		fetched = true
		return fetch(ctx)
	})
	if a.hits != nil && err == nil {
		a.hits.IncCacheHit(!fetched)
	}
	return err
}
