// Package pov converts raw oracle lines, scored for the side to move, into
// White-relative line evaluations.
package pov

import (
	"github.com/Melvud/ChessAnalysis-sub000/internal/fen"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
)

// Normalize returns the scored lines of a position White-relative. Lines
// without a score are dropped. A "mate 0" line means the side to move is
// mated and becomes a mate for the other side.
func Normalize(fenStr string, lines []oracle.Line) ([]model.LineEval, error) {
	side, err := fen.SideToMove(fenStr)
	if err != nil {
		return nil, err
	}
	return Convert(side, lines), nil
}

// Convert is Normalize for a known side to move.
func Convert(side model.Side, lines []oracle.Line) []model.LineEval {
	sign := side.Sign()
	out := make([]model.LineEval, 0, len(lines))
	for _, l := range lines {
		le := model.LineEval{
			PV:      append([]string(nil), l.PV...),
			Depth:   l.Depth,
			MultiPV: l.MultiPV,
		}
		switch {
		case l.Mate != nil && *l.Mate == 0:
			le.Mate = model.Int(-sign)
		case l.Mate != nil:
			le.Mate = model.Int(*l.Mate * sign)
		case l.CP != nil:
			le.CP = model.Int(*l.CP * sign)
		default:
			continue
		}
		out = append(out, le)
	}
	return out
}

// Flip negates every score of a line set, switching between the two
// sides' points of view.
func Flip(lines []model.LineEval) []model.LineEval {
	out := make([]model.LineEval, len(lines))
	for i, l := range lines {
		c := l.Clone()
		if c.CP != nil {
			*c.CP = -*c.CP
		}
		if c.Mate != nil {
			*c.Mate = -*c.Mate
		}
		out[i] = c
	}
	return out
}
