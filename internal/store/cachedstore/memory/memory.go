// Package memory implements an in-memory LRU cache backend.
package memory

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/cachedstore"
)

// Compile-time check that Backend implements cachedstore.Backend.
var _ cachedstore.Backend = (*Backend)(nil)

// Backend is a thread-safe in-memory cache backend with LRU eviction.
type Backend struct {
	cache     *lru.Cache[string, []byte]
	collector stats.Collector

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a new memory backend holding at most capacity entries.
// The collector is optional; if nil, a no-op collector is used.
func New(capacity int, collector stats.Collector) (*Backend, error) {
	c, err := lru.New[string, []byte](capacity)
	if err != nil {
		return nil, err
	}
	return &Backend{
		cache:     c,
		collector: stats.OrNoop(collector),
	}, nil
}

// Get retrieves data from the cache.
func (b *Backend) Get(key string) ([]byte, bool) {
	val, ok := b.cache.Get(key)
	if ok {
		b.hits.Add(1)
		b.collector.IncCounter(stats.MetricStoreCacheHits, 1)
		return val, true
	}
	b.misses.Add(1)
	b.collector.IncCounter(stats.MetricStoreCacheMisses, 1)
	return nil, false
}

// Set stores data in the cache, evicting the least recently used entry
// when full.
func (b *Backend) Set(key string, data []byte) {
	b.cache.Add(key, data)
	b.collector.SetGauge(stats.MetricStoreCacheSize, int64(b.cache.Len()))
}

// Remove drops key from the cache.
func (b *Backend) Remove(key string) {
	b.cache.Remove(key)
	b.collector.SetGauge(stats.MetricStoreCacheSize, int64(b.cache.Len()))
}

// Stats returns current cache statistics.
func (b *Backend) Stats() cachedstore.Stats {
	return cachedstore.Stats{
		Hits:   b.hits.Load(),
		Misses: b.misses.Load(),
		Size:   b.cache.Len(),
	}
}

// Len returns the number of items in the cache.
func (b *Backend) Len() int {
	return b.cache.Len()
}
