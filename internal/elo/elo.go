// Package elo estimates playing strength from a single game.
package elo

import (
	"math"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

const (
	// Default is the estimate when no signal is available.
	Default = 1500

	// MinPerformance and MaxPerformance bound the performance rating.
	MinPerformance = 500
	MaxPerformance = 3200

	// ceiling is the rating a zero-loss game maps to.
	ceiling = 3100

	// decisiveSwing is the performance offset of a win or a loss.
	decisiveSwing = 400
)

// Signals are the inputs of an estimate for one player. Nil fields are
// absent and take no part in the blend.
type Signals struct {
	// CPL is the player's average centipawn loss in the game. It stands
	// in for accuracy, see FromCPL.
	CPL *float64
	// Rating is the player's known rating.
	Rating *int
	// OpponentRating and Score give the performance rating. Score is
	// 1, 0.5 or 0 from the player's point of view.
	OpponentRating *int
	Score          *float64
}

// FromCPL maps an average centipawn loss to a rating. It is the accuracy
// signal of Estimate: a game's accuracy enters the blend through its ACPL,
// not through the accuracy percentages of the report. A loss of 0 maps to
// 3100 and every further 100 centipawns divide the rating by e. Negative
// losses count as 0.
func FromCPL(cpl float64) float64 {
	return ceiling * math.Exp(-0.01*math.Max(0, cpl))
}

// ExpectedCPL is the inverse of FromCPL, for ratings up to the ceiling.
func ExpectedCPL(rating float64) float64 {
	if rating <= 0 {
		return math.Inf(1)
	}
	return -100 * math.Log(math.Min(rating, ceiling)/ceiling)
}

// Performance returns the single-game performance rating against an
// opponent for a score of 1, 0.5 or 0.
func Performance(opponent int, score float64) float64 {
	p := float64(opponent)
	switch {
	case score > 0.5:
		p += decisiveSwing
	case score < 0.5:
		p -= decisiveSwing
	}
	return math.Min(MaxPerformance, math.Max(MinPerformance, p))
}

// Estimate blends the signals present with equal weights and rounds to
// an integer rating. It returns Default when no signal is present.
func Estimate(s Signals) int {
	var sum float64
	var n int
	if s.OpponentRating != nil && s.Score != nil {
		sum += Performance(*s.OpponentRating, *s.Score)
		n++
	}
	if s.CPL != nil {
		sum += FromCPL(*s.CPL)
		n++
	}
	if s.Rating != nil {
		sum += float64(*s.Rating)
		n++
	}
	if n == 0 {
		return Default
	}
	return int(math.Round(sum / float64(n)))
}

// ScoreFromResult returns side's score for a PGN result tag. ok is false
// for an unfinished or unknown result.
func ScoreFromResult(result string, side model.Side) (score float64, ok bool) {
	switch result {
	case "1-0":
		score = 1
	case "0-1":
		score = 0
	case "1/2-1/2", "½-½":
		return 0.5, true
	default:
		return 0, false
	}
	if side == model.Black {
		score = 1 - score
	}
	return score, true
}

// Game estimates both players of an analyzed game from its header and
// each side's average centipawn loss. Moves only count when the side
// actually moved.
func Game(h model.Header, whiteCPL, blackCPL float64, whiteMoved, blackMoved bool) model.EstimatedElo {
	return model.EstimatedElo{
		White: Estimate(signals(h, model.White, whiteCPL, whiteMoved)),
		Black: Estimate(signals(h, model.Black, blackCPL, blackMoved)),
	}
}

func signals(h model.Header, side model.Side, cpl float64, moved bool) Signals {
	var s Signals
	own, opp := h.WhiteElo, h.BlackElo
	if side == model.Black {
		own, opp = opp, own
	}
	s.Rating = own
	if score, ok := ScoreFromResult(h.Result, side); ok && opp != nil {
		s.OpponentRating = opp
		s.Score = &score
	}
	if moved {
		s.CPL = &cpl
	}
	return s
}
