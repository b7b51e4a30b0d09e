// Package materialshard groups positions by material signature.
//
// Positions of one game tend to share material for long stretches, so a
// game's lookups hit few shards and a fronting cache stays warm.
package materialshard

import (
	"github.com/Melvud/ChessAnalysis-sub000/internal/fen"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/shard"
	"github.com/Melvud/ChessAnalysis-sub000/internal/shard/fnvshard"
)

// Name is the manifest name of this strategy.
const Name = "material"

func init() {
	shard.Register(Name, func() shard.Strategy { return New() })
}

// Strategy implements material-based sharding.
type Strategy struct{}

var _ shard.Strategy = (*Strategy)(nil)

// New creates a new material-based sharding strategy.
func New() *Strategy {
	return &Strategy{}
}

// Name returns the strategy name.
func (s *Strategy) Name() string {
	return Name
}

// ShardID reduces the material signature modulo totalShards.
// Unparseable FENs fall back to an FNV hash.
func (s *Strategy) ShardID(fenStr string, totalShards int) int {
	if totalShards <= 1 {
		return 0
	}
	mat, err := fen.ParseMaterial(fenStr)
	if err != nil {
		return int(fnvshard.Sum(fenStr) % uint32(totalShards))
	}
	side, err := fen.SideToMove(fenStr)
	if err != nil {
		return int(fnvshard.Sum(fenStr) % uint32(totalShards))
	}
	return int(Signature(mat, side) % uint32(totalShards))
}

// Signature packs the material counts and side to move into 23 bits:
//
//	bits 0-3   white queens, black queens (2 bits each, capped at 3)
//	bits 4-7   white rooks, black rooks (2 bits each, capped at 3)
//	bits 8-13  white minors, black minors (3 bits each, capped at 7)
//	bits 14-21 white pawns, black pawns (4 bits each)
//	bit  22    black to move
func Signature(m fen.Material, side model.Side) uint32 {
	var id uint32
	id |= capped(m.WhiteQueens, 3) << 0
	id |= capped(m.BlackQueens, 3) << 2
	id |= capped(m.WhiteRooks, 3) << 4
	id |= capped(m.BlackRooks, 3) << 6
	id |= capped(m.WhiteBishops+m.WhiteKnights, 7) << 8
	id |= capped(m.BlackBishops+m.BlackKnights, 7) << 11
	id |= capped(m.WhitePawns, 15) << 14
	id |= capped(m.BlackPawns, 15) << 18
	if side == model.Black {
		id |= 1 << 22
	}
	return id
}

func capped(n, limit int) uint32 {
	if n > limit {
		n = limit
	}
	return uint32(n)
}
