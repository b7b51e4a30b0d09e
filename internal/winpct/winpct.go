// Package winpct converts engine scores to winning chances.
package winpct

import (
	"math"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

const (
	// cpCeiling bounds centipawn scores before conversion.
	cpCeiling = 1000

	// slope of the logistic fitted on lichess games.
	slope = -0.00368208
)

// FromCP returns White's winning chances, in [0,100], for a White-relative
// centipawn score.
func FromCP(cp int) float64 {
	c := float64(max(-cpCeiling, min(cpCeiling, cp)))
	return 50 + 50*(2/(1+math.Exp(slope*c))-1)
}

// FromMate returns White's winning chances for a White-relative mate
// score: 100 when White mates, 0 otherwise.
func FromMate(mate int) float64 {
	if mate > 0 {
		return 100
	}
	return 0
}

// FromLine returns White's winning chances for a White-relative line, or
// 50 for a line without a score.
func FromLine(l model.LineEval) float64 {
	switch {
	case l.Mate != nil:
		return FromMate(*l.Mate)
	case l.CP != nil:
		return FromCP(*l.CP)
	default:
		return 50
	}
}

// FromEval returns White's winning chances for the top line of e, or 50
// when e has no lines.
func FromEval(e model.PositionEval) float64 {
	top, ok := e.Top()
	if !ok {
		return 50
	}
	return FromLine(top)
}

// ForSide converts White's winning chances to side's.
func ForSide(white float64, side model.Side) float64 {
	if side == model.Black {
		return 100 - white
	}
	return white
}
