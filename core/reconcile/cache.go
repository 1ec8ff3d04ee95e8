package reconcile

import (
	"context"
	"sync"
	"time"

	"catalog-sync/core/catalog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ReconcileCache holds pre-built indices for fast targeted reconciliation.
type ReconcileCache struct {
	// LocalIndex is the local snapshot indexed by listing id.
	LocalIndex map[int64]catalog.Record

	// MirrorIndex is the mirrored snapshot indexed by listing id. It is nil
	// when nothing has been published.
	MirrorIndex map[int64]catalog.Record

	// LocalData and MirrorData are the raw documents the indices were built from.
	LocalData  []byte
	MirrorData []byte

	// Built is the timestamp when this cache was built.
	Built time.Time

	// TTL is the time-to-live for this cache.
	TTL time.Duration
}

// IsExpired returns true if this cache has expired at now.
func (c *ReconcileCache) IsExpired(now time.Time) bool {
	if c.TTL == 0 {
		return true // No caching
	}
	return now.Sub(c.Built) > c.TTL
}

// cacheStore holds all reconcile caches keyed by spec cache key.
type cacheStore struct {
	mu     sync.RWMutex
	caches map[string]*ReconcileCache
	sf     singleflight.Group
}

// globalCacheStore is the singleton cache store for all reconcile operations.
var globalCacheStore = &cacheStore{
	caches: make(map[string]*ReconcileCache),
}

// BuildCache loads both sides concurrently. It does NOT store the cache; use
// GetOrBuildCache for that.
func BuildCache(ctx context.Context, spec *Spec) (*ReconcileCache, error) {
	cache := &ReconcileCache{TTL: spec.CacheTTL}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cache.LocalIndex, cache.LocalData, err = loadLocal(spec.Local)
		return err
	})
	g.Go(func() error {
		var err error
		cache.MirrorIndex, cache.MirrorData, err = loadMirror(gctx, spec.Mirror)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cache.Built = spec.clock().Now()
	return cache, nil
}

// GetOrBuildCache retrieves a cache for the given spec from the store,
// or builds a new one if it doesn't exist or has expired.
// Uses singleflight to prevent cache stampedes.
func GetOrBuildCache(ctx context.Context, spec *Spec) (*ReconcileCache, error) {
	cacheKey := spec.CacheKey()
	now := spec.clock().Now()

	// Fast path: check if cache exists and is fresh
	globalCacheStore.mu.RLock()
	cache, exists := globalCacheStore.caches[cacheKey]
	globalCacheStore.mu.RUnlock()

	if exists && !cache.IsExpired(now) {
		return cache, nil
	}

	result, err, _ := globalCacheStore.sf.Do(cacheKey, func() (any, error) {
		globalCacheStore.mu.RLock()
		cache, exists := globalCacheStore.caches[cacheKey]
		globalCacheStore.mu.RUnlock()

		if exists && !cache.IsExpired(now) {
			return cache, nil
		}

		newCache, err := BuildCache(ctx, spec)
		if err != nil {
			return nil, err
		}

		globalCacheStore.mu.Lock()
		globalCacheStore.caches[cacheKey] = newCache
		globalCacheStore.mu.Unlock()

		return newCache, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*ReconcileCache), nil
}

// InvalidateCache removes the cache for the given spec from the store.
func InvalidateCache(spec *Spec) {
	cacheKey := spec.CacheKey()
	globalCacheStore.mu.Lock()
	delete(globalCacheStore.caches, cacheKey)
	globalCacheStore.mu.Unlock()
}
