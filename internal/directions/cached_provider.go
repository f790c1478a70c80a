package directions

import (
	"context"
	"sync"
	"time"

	"github.com/ridematch/scheduler/internal/common/cache"
	"github.com/ridematch/scheduler/internal/geo"
)

// CachedProvider wraps a Provider with a two-level cache keyed by the
// canonical waypoint string (spec §4.2 Caching, §5 shared-resource model):
// an in-process sync.Map (L1, process-lifetime, exact match) backed by
// Redis (L2), so a restarted or second process still hits cache for
// waypoint sequences solved earlier the same day. A single in-flight call
// per key is coalesced with a per-key mutex so concurrent identical
// requests don't duplicate provider calls.
type CachedProvider struct {
	inner Provider
	redis *cache.RedisCache

	l1 sync.Map // string -> *Route

	keyLocksMu sync.Mutex
	keyLocks   map[string]*sync.Mutex
}

// NewCachedProvider wraps inner with an L1/L2 cache. redis may be nil, in
// which case only the in-process L1 is used.
func NewCachedProvider(inner Provider, redis *cache.RedisCache) *CachedProvider {
	return &CachedProvider{
		inner:    inner,
		redis:    redis,
		keyLocks: make(map[string]*sync.Mutex),
	}
}

// GetRouteDetails returns the cached route for waypoints if present at
// either cache level, else calls the wrapped provider and populates both
// levels.
func (c *CachedProvider) GetRouteDetails(ctx context.Context, waypoints []geo.Coordinate) (*Route, error) {
	key := geo.CanonicalKey(waypoints)

	if v, ok := c.l1.Load(key); ok {
		return v.(*Route), nil
	}

	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	// Re-check L1 after acquiring the per-key lock: another goroutine may
	// have populated it while we waited.
	if v, ok := c.l1.Load(key); ok {
		return v.(*Route), nil
	}

	if c.redis != nil {
		var route Route
		if err := c.redis.Get(ctx, c.redis.DirectionsKey(key), &route); err == nil {
			c.l1.Store(key, &route)
			return &route, nil
		}
	}

	route, err := c.inner.GetRouteDetails(ctx, waypoints)
	if err != nil {
		return nil, err
	}

	c.l1.Store(key, route)
	if c.redis != nil {
		_ = c.redis.Set(ctx, c.redis.DirectionsKey(key), route, 24*time.Hour)
	}

	return route, nil
}

func (c *CachedProvider) keyLock(key string) *sync.Mutex {
	c.keyLocksMu.Lock()
	defer c.keyLocksMu.Unlock()
	l, ok := c.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.keyLocks[key] = l
	}
	return l
}
