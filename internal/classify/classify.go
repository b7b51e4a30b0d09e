// Package classify grades played moves from the evaluations of the
// positions before and after them.
package classify

import (
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/winpct"
)

// Win% thresholds, in points from the mover's point of view.
const (
	blunderBelow    = -20
	mistakeBelow    = -10
	inaccuracyBelow = -5
	okayBelow       = -2

	// A brilliant or only move may give up at most this much.
	keepWithin = -2
	// Gain that turns a move into an outcome changer or the only good move.
	decisiveGain = 10
	// An alternative at or beyond this win% was already completely winning.
	completelyWinning = 97
)

// Input holds what the classifier knows about one played move.
type Input struct {
	// Before and After are the White-relative evaluations of the
	// positions before and after the move.
	Before model.PositionEval
	After  model.PositionEval

	// Played is the move in UCI notation, made from BeforeFEN.
	Played    string
	BeforeFEN string

	// PrevFEN and PrevUCI describe the opponent's move that led to
	// BeforeFEN. They are empty for the first move.
	PrevFEN string
	PrevUCI string

	// LegalMoves is the number of legal moves in BeforeFEN.
	LegalMoves int

	// InBook reports whether the position after the move is a named
	// opening position.
	InBook bool
}

// Result is a classification with the figures it was derived from.
type Result struct {
	Class     model.MoveClass
	WinBefore float64 // White's win% before the move
	WinAfter  float64 // White's win% after the move
	Delta     float64 // change of the mover's win%
}

// Classify grades the move described by in.
func Classify(in Input) model.MoveClass {
	return Evaluate(in).Class
}

// Evaluate grades the move described by in and reports the win% figures.
// It is a pure function of its input.
func Evaluate(in Input) Result {
	mover := model.SideOf(in.BeforeFEN)
	r := Result{
		WinBefore: winpct.FromEval(in.Before),
		WinAfter:  winpct.FromEval(in.After),
	}
	r.Delta = float64(mover.Sign()) * (r.WinAfter - r.WinBefore)
	r.Class = grade(in, r, mover)
	return r
}

func grade(in Input, r Result, mover model.Side) model.MoveClass {
	switch {
	case in.InBook:
		return model.Opening
	case in.LegalMoves == 1:
		return model.Forced
	case len(in.Before.Lines) == 0 || len(in.After.Lines) == 0:
		return model.Okay
	case in.Played == in.Before.BestMove():
		return model.Best
	}

	alt, hasAlt := alternative(in.Before, in.Played)
	if hasAlt && r.Delta >= keepWithin && !losingOrAlternativeWinning(r.WinAfter, alt, mover) {
		if IsSacrifice(in.BeforeFEN, in.Played, in.After.Lines[0].PV) {
			return model.Splendid
		}
		recapture := in.PrevFEN != "" && IsRecapture(in.PrevFEN, in.PrevUCI, in.Played)
		if !recapture && (changedOutcome(r, mover) || onlyGoodMove(r.WinAfter, alt, mover)) {
			return model.Perfect
		}
	}
	return ByDelta(r.Delta)
}

// ByDelta grades a move by the change of the mover's win% alone.
func ByDelta(delta float64) model.MoveClass {
	switch {
	case delta < blunderBelow:
		return model.Blunder
	case delta < mistakeBelow:
		return model.Mistake
	case delta < inaccuracyBelow:
		return model.Inaccuracy
	case delta < okayBelow:
		return model.Okay
	default:
		return model.Excellent
	}
}

// alternative returns White's win% of the best line not starting with
// played.
func alternative(before model.PositionEval, played string) (float64, bool) {
	for _, l := range before.Lines {
		if l.Best() != played {
			return winpct.FromLine(l), true
		}
	}
	return 0, false
}

func losingOrAlternativeWinning(winAfter, alt float64, mover model.Side) bool {
	after := winpct.ForSide(winAfter, mover)
	return after < 50 || winpct.ForSide(alt, mover) > completelyWinning
}

func changedOutcome(r Result, mover model.Side) bool {
	if r.Delta <= decisiveGain {
		return false
	}
	before := winpct.ForSide(r.WinBefore, mover)
	after := winpct.ForSide(r.WinAfter, mover)
	return (before < 50 && after > 50) || (before > 50 && after < 50)
}

func onlyGoodMove(winAfter, alt float64, mover model.Side) bool {
	return winpct.ForSide(winAfter, mover)-winpct.ForSide(alt, mover) > decisiveGain
}
