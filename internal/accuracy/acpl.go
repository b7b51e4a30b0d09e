package accuracy

import (
	"math"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

// MaxCPL bounds both the evaluation and the loss charged for one move.
// Mate scores count as MaxCPL for the mating side.
const MaxCPL = 1000

// CPL returns each side's average centipawn loss over consecutive
// White-relative position evaluations. Improvements count as zero. Moves
// next to a position without lines are skipped; a side with no counted
// moves averages zero.
func CPL(positions []model.PositionEval) (white, black float64) {
	var sum [2]float64
	var count [2]int
	for i := 0; i+1 < len(positions); i++ {
		before, okB := clampedCP(positions[i])
		after, okA := clampedCP(positions[i+1])
		if !okB || !okA {
			continue
		}
		mover := model.SideOf(positions[i].FEN)
		loss := min(max(0, (before-after)*mover.Sign()), MaxCPL)

		k := 0
		if mover == model.Black {
			k = 1
		}
		sum[k] += float64(loss)
		count[k]++
	}
	return mean(sum[0], count[0]), mean(sum[1], count[1])
}

// ACPL is CPL rounded to whole centipawns.
func ACPL(positions []model.PositionEval) model.Acpl {
	w, b := CPL(positions)
	return model.Acpl{White: int(math.Round(w)), Black: int(math.Round(b))}
}

func clampedCP(p model.PositionEval) (int, bool) {
	top, ok := p.Top()
	if !ok {
		return 0, false
	}
	switch {
	case top.Mate != nil && *top.Mate > 0:
		return MaxCPL, true
	case top.Mate != nil:
		return -MaxCPL, true
	case top.CP != nil:
		return min(max(*top.CP, -MaxCPL), MaxCPL), true
	}
	return 0, false
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
