package server

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/cellneigh/internal/grid"
)

// resultCache is a concurrent-safe LRU cache of computed neighbourhoods
// with TTL expiration. Cached values are shared and must not be modified.
type resultCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front=newest, back=oldest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type cacheEntry struct {
	key       string
	nb        *grid.Neighborhood
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

func newResultCache(maxEntries int, ttl time.Duration) *resultCache {
	return &resultCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// cacheKey identifies a neighbourhood by its lattice and rank. The lattice
// fixes rows and cols, so equal keys always describe equal results.
func cacheKey(l grid.Lattice, rank int) string {
	e := l.Extent
	return fmt.Sprintf("%g,%g,%g,%g/%g/%d", e.XMin, e.XMax, e.YMin, e.YMax, l.CellSize, rank)
}

func (c *resultCache) get(key string) *grid.Neighborhood {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil
	}
	entry := el.Value.(*cacheEntry)
	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses.Add(1)
		return nil
	}

	c.order.MoveToFront(el)
	c.hits.Add(1)
	return entry.nb
}

func (c *resultCache) put(key string, nb *grid.Neighborhood) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value = &cacheEntry{key: key, nb: nb, createdAt: time.Now()}
		c.order.MoveToFront(el)
		return
	}

	for len(c.entries) >= c.maxEntries && c.order.Len() > 0 {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, nb: nb, createdAt: time.Now()})
}

func (c *resultCache) stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}
