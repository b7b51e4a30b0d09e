// Package redisstore implements a Redis storage backend, suitable for sharing
// cached reports between several analysis servers.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Melvud/ChessAnalysis-sub000/internal/codec"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

const pingTimeout = 5 * time.Second

// Client is the subset of the go-redis client the store uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Store is a Redis storage backend.
type Store struct {
	client   Client
	prefix   string
	ttl      time.Duration
	codec    codec.Codec
	password string
	db       int
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets a key prefix for all operations.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = store.NormalizePrefix(prefix)
	}
}

// WithTTL expires values after ttl. Zero keeps values forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPassword sets the password used by New.
func WithPassword(password string) Option {
	return func(s *Store) {
		s.password = password
	}
}

// WithDB selects the Redis database used by New.
func WithDB(db int) Option {
	return func(s *Store) {
		s.db = db
	}
}

// New connects to the Redis server at addr and verifies the connection.
func New(ctx context.Context, addr string, c codec.Codec, opts ...Option) (*Store, error) {
	s := &Store{codec: c}
	for _, opt := range opts {
		opt(s)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: s.password,
		DB:       s.db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	s.client = client
	return s, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client Client, c codec.Codec, opts ...Option) *Store {
	s := &Store{client: client, codec: c}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get reads and decompresses the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}

	raw, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	data, err := codec.Decode(s.codec, raw)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", key, err)
	}
	return data, nil
}

// Put compresses data and stores it under key.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	compressed, err := codec.Encode(s.codec, data)
	if err != nil {
		return fmt.Errorf("compressing %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.redisKey(key), compressed, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) redisKey(key string) string {
	return s.prefix + key
}
