// Package accuracy scores how closely a player followed the engine, per
// move and per game.
package accuracy

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/winpct"
)

// Weight bounds for the volatility weighting.
const (
	minWeight = 0.5
	maxWeight = 12
)

// MoveAccuracy maps the mover's win% loss over a move to [0,100]. Win%
// values are White-relative. Gains count as no loss.
func MoveAccuracy(winBefore, winAfter float64, mover model.Side) float64 {
	loss := winpct.ForSide(winBefore, mover) - winpct.ForSide(winAfter, mover)
	loss = math.Max(0, loss)
	raw := 103.1668100711649*math.Exp(-0.04354415386753951*loss) - 3.166924740191411 + 1
	return math.Min(100, math.Max(0, raw))
}

// Weights returns one weight per move of a win% series of n positions:
// the population standard deviation of the win% in a window around the
// move, clamped to [0.5, 12]. Volatile phases weigh more.
func Weights(wins []float64) []float64 {
	if len(wins) < 2 {
		return nil
	}
	window := clamp(int(math.Ceil(float64(len(wins))/10)), 2, 8)
	half := int(math.Round(float64(window) / 2))

	weights := make([]float64, 0, len(wins)-1)
	for i := 1; i < len(wins); i++ {
		var w []float64
		switch start, end := i-half, i+half; {
		case start < 0:
			w = wins[:min(window, len(wins))]
		case end > len(wins):
			w = wins[max(0, len(wins)-window):]
		default:
			w = wins[start:end]
		}
		std := stat.PopStdDev(w, nil)
		weights = append(weights, math.Min(maxWeight, math.Max(minWeight, std)))
	}
	return weights
}

// Compute aggregates the accuracy of both players over the moves of a
// game. Each player gets a volatility-weighted mean, a harmonic mean and
// their average.
func Compute(moves []model.MoveReport) model.AccuracySummary {
	if len(moves) == 0 {
		return model.AccuracySummary{}
	}
	wins := make([]float64, 0, len(moves)+1)
	wins = append(wins, moves[0].WinBefore)
	for _, m := range moves {
		wins = append(wins, m.WinAfter)
	}
	weights := Weights(wins)

	var acc, w [2][]float64
	for i, m := range moves {
		k := 0
		if m.Mover() == model.Black {
			k = 1
		}
		acc[k] = append(acc[k], m.Accuracy)
		w[k] = append(w[k], weights[i])
	}
	return model.AccuracySummary{
		White: player(acc[0], w[0]),
		Black: player(acc[1], w[1]),
	}
}

func player(acc, weights []float64) model.PlayerAccuracy {
	if len(acc) == 0 {
		return model.PlayerAccuracy{}
	}
	weighted := stat.Mean(acc, weights)
	harmonic := stat.HarmonicMean(acc, nil)
	if math.IsNaN(harmonic) || math.IsInf(harmonic, 0) {
		harmonic = 0
	}
	return model.PlayerAccuracy{
		Itera:    (weighted + harmonic) / 2,
		Weighted: weighted,
		Harmonic: harmonic,
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
