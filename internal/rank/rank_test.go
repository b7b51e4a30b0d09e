package rank

import (
	"reflect"
	"testing"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

func cp(v int, pv string) model.LineEval {
	return model.LineEval{CP: model.Int(v), PV: []string{pv}}
}

func mate(v int, pv string) model.LineEval {
	return model.LineEval{Mate: model.Int(v), PV: []string{pv}}
}

func order(lines []model.LineEval) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Best()
	}
	return out
}

func TestRank(t *testing.T) {
	lines := []model.LineEval{
		cp(-50, "a"),
		mate(-2, "b"),
		cp(120, "c"),
		mate(5, "d"),
		{PV: []string{"e"}},
		mate(2, "f"),
		mate(-6, "g"),
		cp(120, "h"),
	}
	tests := []struct {
		name string
		side model.Side
		want []string
	}{
		{"white", model.White, []string{"f", "d", "c", "h", "a", "g", "b", "e"}},
		{"black", model.Black, []string{"b", "g", "a", "c", "h", "d", "f", "e"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := order(Rank(lines, tt.side))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Rank() = %v, want %v", got, tt.want)
			}
		})
	}
	if lines[0].Best() != "a" {
		t.Error("Rank() modified its input")
	}
}

func TestRank_Idempotent(t *testing.T) {
	lines := []model.LineEval{cp(3, "a"), mate(-1, "b"), cp(40, "c"), mate(3, "d"), cp(40, "e")}
	for _, side := range []model.Side{model.White, model.Black} {
		once := Rank(lines, side)
		twice := Rank(once, side)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("Rank not idempotent for %s: %v vs %v", side, order(once), order(twice))
		}
	}
}

func TestRank_MatedLast(t *testing.T) {
	got := order(Rank([]model.LineEval{mate(0, "x"), mate(-3, "y")}, model.White))
	if !reflect.DeepEqual(got, []string{"y", "x"}) {
		t.Errorf("Rank() = %v", got)
	}
}

func TestEval(t *testing.T) {
	e := model.PositionEval{
		FEN:   "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
		Lines: []model.LineEval{cp(30, "e7e5"), cp(-10, "c7c5")},
	}
	if got := Eval(e).BestMove(); got != "c7c5" {
		t.Errorf("Eval().BestMove() = %q, want c7c5", got)
	}
	if e.BestMove() != "e7e5" {
		t.Error("Eval() modified its input")
	}
}
