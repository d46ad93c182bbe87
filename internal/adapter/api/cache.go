package api

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/ecogrid-engine/internal/domain"
	"github.com/couchcryptid/ecogrid-engine/internal/observability"
)

// CachedDetailSource wraps a PropertyDetailSource with an in-memory LRU cache
// keyed by coordinates. Failed lookups are not cached.
type CachedDetailSource struct {
	inner   domain.PropertyDetailSource
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedDetailSource creates a cache decorator around a detail source.
// metrics may be nil.
func NewCachedDetailSource(inner domain.PropertyDetailSource, maxEntries int, metrics *observability.Metrics) *CachedDetailSource {
	return &CachedDetailSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedDetailSource) PropertyDetails(ctx context.Context, at domain.Coordinates) (domain.PropertyDetails, error) {
	key := fmt.Sprintf("%.6f,%.6f", at.Latitude, at.Longitude)
	if details, ok := c.cache.get(key); ok {
		c.record("hit")
		return details, nil
	}
	c.record("miss")

	details, err := c.inner.PropertyDetails(ctx, at)
	if err != nil {
		return details, err
	}
	c.cache.put(key, details)
	return details, nil
}

func (c *CachedDetailSource) record(result string) {
	if c.metrics != nil {
		c.metrics.DetailCache.WithLabelValues(result).Inc()
	}
}

// lruCache is a thread-safe LRU of property records. The front of order is
// the most recently used entry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List
	entries    map[string]*list.Element
}

type cacheEntry struct {
	key   string
	value domain.PropertyDetails
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (domain.PropertyDetails, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.PropertyDetails{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *lruCache) put(key string, value domain.PropertyDetails) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, value: value})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
