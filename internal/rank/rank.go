// Package rank orders candidate lines from the point of view of the side
// to move.
package rank

import (
	"sort"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

// tiers, best first.
const (
	tierWinningMate = iota
	tierCP
	tierLosingMate
	tierUnscored
)

// Rank returns White-relative lines sorted strongest first for side:
// winning mates (shorter first), then centipawn lines (best first), then
// losing mates (longer first), then unscored lines. Ties keep their
// incoming order. The input is not modified.
func Rank(lines []model.LineEval, side model.Side) []model.LineEval {
	out := append([]model.LineEval(nil), lines...)
	sign := side.Sign()
	sort.SliceStable(out, func(i, j int) bool {
		ti, ki := key(out[i], sign)
		tj, kj := key(out[j], sign)
		if ti != tj {
			return ti < tj
		}
		return ki < kj
	})
	return out
}

// key returns the tier of l and an ordering key within it, lower is better.
func key(l model.LineEval, sign int) (int, int) {
	switch {
	case l.Mate != nil && *l.Mate*sign > 0:
		return tierWinningMate, *l.Mate * sign
	case l.Mate != nil:
		// Mate 0 sorts with the losing mates, after any longer defence.
		return tierLosingMate, *l.Mate * sign
	case l.CP != nil:
		return tierCP, -*l.CP * sign
	default:
		return tierUnscored, 0
	}
}

// Eval returns e with its lines ranked for the side to move of e.FEN.
func Eval(e model.PositionEval) model.PositionEval {
	e.Lines = Rank(e.Lines, model.SideOf(e.FEN))
	return e
}
