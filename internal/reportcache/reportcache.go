// Package reportcache stores finished game reports by canonical game key
// and makes sure each game is analyzed at most once at a time.
package reportcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/cachedstore"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/cachedstore/memory"
)

// ErrCacheMiss is returned when no report is stored under a key.
var ErrCacheMiss = errors.New("reportcache: cache miss")

// KeyPrefix is prepended to report keys in a store.
const KeyPrefix = "reports/"

// Cache holds reports by key.
type Cache interface {
	// Get returns the report stored under key or ErrCacheMiss.
	Get(ctx context.Context, key string) (*model.FullReport, error)

	// Put stores r under key.
	Put(ctx context.Context, key string, r *model.FullReport) error
}

// StoreCache keeps reports as JSON in a store.Store. Compression is the
// store's codec.
type StoreCache struct {
	store  store.Store
	logger *zap.Logger
}

var _ Cache = (*StoreCache)(nil)

// NewStoreCache returns a cache writing to st.
func NewStoreCache(st store.Store, logger *zap.Logger) *StoreCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreCache{store: st, logger: logger.Named("reportcache")}
}

// Get reads and decodes the report stored under key.
func (c *StoreCache) Get(ctx context.Context, key string) (*model.FullReport, error) {
	data, err := c.store.Get(ctx, KeyPrefix+key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", key, err)
	}
	return decode(key, data)
}

// Put validates and stores r under key.
func (c *StoreCache) Put(ctx context.Context, key string, r *model.FullReport) error {
	data, err := encode(r)
	if err != nil {
		return err
	}
	if err := c.store.Put(ctx, KeyPrefix+key, data); err != nil {
		return fmt.Errorf("writing report %s: %w", key, err)
	}
	c.logger.Debug("stored report", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// Close closes the underlying store.
func (c *StoreCache) Close() error {
	return c.store.Close()
}

// MemoryCache keeps encoded reports in an in-process LRU.
type MemoryCache struct {
	backend *memory.Backend
}

var _ Cache = (*MemoryCache)(nil)

// NewMemory returns a cache holding at most capacity reports.
func NewMemory(capacity int, collector stats.Collector) (*MemoryCache, error) {
	b, err := memory.New(capacity, collector)
	if err != nil {
		return nil, fmt.Errorf("creating report cache: %w", err)
	}
	return &MemoryCache{backend: b}, nil
}

// Get decodes the report held under key.
func (c *MemoryCache) Get(_ context.Context, key string) (*model.FullReport, error) {
	data, ok := c.backend.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return decode(key, data)
}

// Put stores r under key, evicting the least recently used report when
// full.
func (c *MemoryCache) Put(_ context.Context, key string, r *model.FullReport) error {
	data, err := encode(r)
	if err != nil {
		return err
	}
	c.backend.Set(key, data)
	return nil
}

// Stats returns hit, miss and size counters.
func (c *MemoryCache) Stats() cachedstore.Stats {
	return c.backend.Stats()
}

func encode(r *model.FullReport) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil report", model.ErrInvalidReport)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return data, nil
}

func decode(key string, data []byte) (*model.FullReport, error) {
	var r model.FullReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", key, err)
	}
	return &r, nil
}
