// Package shard defines how positions are distributed across the shards of
// an evaluation database.
package shard

import (
	"errors"
	"fmt"
)

// ErrUnknownStrategy is returned by ByName for an unregistered strategy.
var ErrUnknownStrategy = errors.New("shard: unknown strategy")

// Strategy maps FEN positions to shard IDs.
type Strategy interface {
	// Name identifies the strategy in a database manifest.
	Name() string

	// ShardID computes the shard ID for a given FEN position.
	// The returned value is in the range [0, totalShards).
	//
	// Positions that differ only in halfmove/fullmove counters map to the
	// same shard.
	ShardID(fen string, totalShards int) int
}

// Key returns the store key of shard id.
func Key(id int) string {
	return fmt.Sprintf("shards/%05d", id)
}

var registry = map[string]func() Strategy{}

// Register makes a strategy constructor available to ByName.
// It is meant to be called from init functions.
func Register(name string, fn func() Strategy) {
	registry[name] = fn
}

// ByName returns a new instance of the named strategy.
func ByName(name string) (Strategy, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return fn(), nil
}
