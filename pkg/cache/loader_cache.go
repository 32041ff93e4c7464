// Package cache provides a small read-through cache: LRU storage in front of
// a load callback, with singleflight so concurrent misses for one key share a
// single load. It backs the query-embedding cache (keyed by query text) and
// the active-model cache (keyed by model kind).
package cache

import (
	"context"

	"github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// LoaderCache caches values of type V under keys of type K. Keys are mapped
// through keyFn to the string form LRU and singleflight need.
type LoaderCache[K comparable, V any] struct {
	lru   *lru.Cache[string, V]
	group singleflight.Group
	keyFn func(K) string
}

// NewLoaderCache creates a cache holding at most maxEntries values; older
// entries are evicted LRU-first.
func NewLoaderCache[K comparable, V any](maxEntries int, keyFn func(K) string) (*LoaderCache[K, V], error) {
	lruCache, err := lru.New[string, V](maxEntries)
	if err != nil {
		return nil, err
	}

	return &LoaderCache[K, V]{
		lru:   lruCache,
		keyFn: keyFn,
	}, nil
}

// Get returns the cached value for key, loading and storing it on a miss.
// Load errors are returned to every coalesced caller and nothing is cached.
func (c *LoaderCache[K, V]) Get(ctx context.Context, key K, load func(context.Context, K) (V, error)) (V, error) {
	v, _, err := c.GetWithStats(ctx, key, load)

	return v, err
}

// GetWithStats is Get plus a hit/miss flag, so callers can record cache
// metrics without this package knowing about them. A burst of concurrent
// misses for one key runs load once; the rest wait and share the result.
func (c *LoaderCache[K, V]) GetWithStats(ctx context.Context, key K, load func(context.Context, K) (V, error)) (V, bool, error) {
	keyStr := c.keyFn(key)
	if v, ok := c.lru.Get(keyStr); ok {
		return v, true, nil
	}

	val, err, _ := c.group.Do(keyStr, func() (any, error) {
		loaded, loadErr := load(ctx, key)
		if loadErr != nil {
			return zero[V](), loadErr
		}

		c.lru.Add(keyStr, loaded)

		return loaded, nil
	})
	if err != nil {
		return zero[V](), false, err
	}

	return val.(V), false, nil
}

func zero[V any]() (z V) { return z }

// Invalidate removes the entry for key. Used after model activation so the
// next inference loads the promoted version.
func (c *LoaderCache[K, V]) Invalidate(key K) {
	c.lru.Remove(c.keyFn(key))
}

// InvalidateAll empties the cache.
func (c *LoaderCache[K, V]) InvalidateAll() {
	c.lru.Purge()
}

// Len returns the number of cached entries.
func (c *LoaderCache[K, V]) Len() int {
	return c.lru.Len()
}
