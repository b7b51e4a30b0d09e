// Package fnvshard spreads positions uniformly across shards by hashing the
// normalized FEN.
package fnvshard

import (
	"hash/fnv"

	"github.com/Melvud/ChessAnalysis-sub000/internal/fen"
	"github.com/Melvud/ChessAnalysis-sub000/internal/shard"
)

// Name is the manifest name of this strategy.
const Name = "fnv32"

func init() {
	shard.Register(Name, func() shard.Strategy { return New() })
}

// Strategy implements FNV-1a hash-based sharding.
type Strategy struct{}

var _ shard.Strategy = (*Strategy)(nil)

// New creates a new FNV-based sharding strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns the strategy name.
func (s *Strategy) Name() string {
	return Name
}

// ShardID hashes the normalized FEN. Invalid FENs are hashed as given.
func (s *Strategy) ShardID(fenStr string, totalShards int) int {
	if totalShards <= 1 {
		return 0
	}
	normalized, err := fen.Normalize(fenStr)
	if err != nil {
		normalized = fenStr
	}
	return int(Sum(normalized) % uint32(totalShards))
}

// Sum returns the FNV-1a 32-bit hash of s.
func Sum(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
