package depth

import (
	"context"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/pov"
	"github.com/Melvud/ChessAnalysis-sub000/internal/rank"
)

// Evaluate searches fen once at depth and returns its final, White-relative
// and ranked evaluation.
func Evaluate(ctx context.Context, o oracle.Oracle, fen string, ply, depth, multiPV int) (model.PositionEval, error) {
	b, err := oracle.Last(ctx, o, oracle.Request{FEN: fen, Depth: depth, MultiPV: multiPV})
	if err != nil {
		return model.PositionEval{}, err
	}
	return toEval(fen, ply, b.Lines)
}

func toEval(fen string, ply int, lines []oracle.Line) (model.PositionEval, error) {
	les, err := pov.Normalize(fen, lines)
	if err != nil {
		return model.PositionEval{}, oracle.Wrap("normalize", fen, err)
	}
	return model.PositionEval{FEN: fen, Ply: ply, Lines: rank.Rank(les, model.SideOf(fen))}, nil
}
