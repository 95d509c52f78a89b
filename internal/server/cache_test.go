package server

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cellneigh/internal/grid"
)

func testNeighborhood(t *testing.T, cols int) *grid.Neighborhood {
	t.Helper()
	l, err := grid.NewLattice(grid.Extent{XMin: 0, XMax: float64(cols), YMin: 0, YMax: 1}, 1)
	require.NoError(t, err)
	nb, err := grid.Compute(l, 1, grid.Options{})
	require.NoError(t, err)
	return nb
}

func TestResultCache_BasicGetPut(t *testing.T) {
	cache := newResultCache(10, time.Hour)
	nb := testNeighborhood(t, 2)
	key := cacheKey(nb.Lattice, 1)

	assert.Nil(t, cache.get(key))

	cache.put(key, nb)
	assert.Same(t, nb, cache.get(key))

	// Different rank is a different key.
	assert.Nil(t, cache.get(cacheKey(nb.Lattice, 2)))

	stats := cache.stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.InDelta(t, 1.0/3.0, stats.HitRate, 1e-9)
}

func TestResultCache_TTLExpiration(t *testing.T) {
	cache := newResultCache(10, 50*time.Millisecond)
	nb := testNeighborhood(t, 2)

	cache.put("k", nb)
	assert.NotNil(t, cache.get("k"))

	time.Sleep(60 * time.Millisecond)
	assert.Nil(t, cache.get("k"))
	assert.Equal(t, 0, cache.stats().Entries)
}

func TestResultCache_LRUEviction(t *testing.T) {
	cache := newResultCache(3, time.Hour)
	nb := testNeighborhood(t, 2)

	cache.put("a", nb)
	cache.put("b", nb)
	cache.put("c", nb)

	// Touch "a" so "b" becomes the oldest.
	assert.NotNil(t, cache.get("a"))
	cache.put("d", nb)

	assert.Nil(t, cache.get("b"))
	assert.NotNil(t, cache.get("a"))
	assert.NotNil(t, cache.get("c"))
	assert.NotNil(t, cache.get("d"))
}

func TestResultCache_UpdateExisting(t *testing.T) {
	cache := newResultCache(2, time.Hour)
	first := testNeighborhood(t, 2)
	second := testNeighborhood(t, 3)

	cache.put("k", first)
	cache.put("k", second)
	assert.Same(t, second, cache.get("k"))
	assert.Equal(t, 1, cache.stats().Entries)
}

func TestResultCache_Concurrent(t *testing.T) {
	cache := newResultCache(16, time.Hour)
	nb := testNeighborhood(t, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("%d-%d", i, j%20)
				cache.put(key, nb)
				_ = cache.get(key)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.stats().Entries, 16)
}
