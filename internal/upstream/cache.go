package upstream

import (
	"context"
	"time"

	"github.com/bissquit/garden-console/internal/pkg/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCacheSize = 256

// snapshotCache keeps recent catalog snapshots. A nil cache is valid and
// always misses. Cached slices are shared between callers and must not be
// modified.
type snapshotCache struct {
	lru *expirable.LRU[string, any]
}

func newSnapshotCache(size int, ttl time.Duration) *snapshotCache {
	if ttl <= 0 {
		return nil
	}
	if size <= 0 {
		size = defaultCacheSize
	}
	return &snapshotCache{lru: expirable.NewLRU[string, any](size, nil, ttl)}
}

func (c *snapshotCache) purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// cached returns the value stored under key or loads and stores it.
// Errors are never cached.
func cached[T any](ctx context.Context, c *snapshotCache, kind, key string, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}

	if v, ok := c.lru.Get(key); ok {
		if typed, ok := v.(T); ok {
			metrics.CacheRequests.WithLabelValues(kind, "hit").Inc()
			return typed, nil
		}
	}
	metrics.CacheRequests.WithLabelValues(kind, "miss").Inc()

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.lru.Add(key, v)
	return v, nil
}
