// Package store defines the key/value storage contract used for cached
// reports and evaluation database shards.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Melvud/ChessAnalysis-sub000/internal/codec"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("store: key not found")

// ErrInvalidKey is returned for keys that cannot be mapped to an object name.
var ErrInvalidKey = errors.New("store: invalid key")

// Store defines the interface for storage backends.
// Implementations handle path formats and compression internally.
type Store interface {
	// Get returns the decompressed value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Close releases any resources held by the store.
	Close() error
}

// ValidateKey checks that key is a relative slash-separated path without
// empty or dot segments.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// ObjectName returns the object name for key, with the codec extension.
func ObjectName(key string, c codec.Codec) string {
	if ext := c.Extension(); ext != "" {
		return key + "." + ext
	}
	return key
}

// NormalizePrefix returns prefix with exactly one trailing slash, or "".
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
