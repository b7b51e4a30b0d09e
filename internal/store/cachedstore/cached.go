package cachedstore

import (
	"context"

	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// Store wraps another Store with caching. Writes go through to the
// underlying store before the cache is updated.
type Store struct {
	underlying store.Store
	backend    Backend
}

// New creates a new cached store wrapping the given store.
func New(underlying store.Store, backend Backend) *Store {
	return &Store{
		underlying: underlying,
		backend:    backend,
	}
}

// Get reads a value, checking the cache first.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if data, ok := s.backend.Get(key); ok {
		return data, nil
	}

	data, err := s.underlying.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	s.backend.Set(key, data)
	return data, nil
}

// Put writes the value to the underlying store, then caches it.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := s.underlying.Put(ctx, key, data); err != nil {
		s.backend.Remove(key)
		return err
	}
	s.backend.Set(key, data)
	return nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.underlying.Close()
}

// Stats returns cache statistics.
func (s *Store) Stats() Stats {
	return s.backend.Stats()
}
