package pov

import (
	"reflect"
	"testing"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
)

const (
	whiteToMove = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	afterE4     = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		fen      string
		line     oracle.Line
		wantCP   *int
		wantMate *int
	}{
		{"white cp kept", whiteToMove, oracle.Line{CP: model.Int(30)}, model.Int(30), nil},
		{"black cp negated", afterE4, oracle.Line{CP: model.Int(21)}, model.Int(-21), nil},
		{"black mate negated", afterE4, oracle.Line{Mate: model.Int(3)}, nil, model.Int(-3)},
		{"white mated", whiteToMove, oracle.Line{Mate: model.Int(0)}, nil, model.Int(-1)},
		{"black mated", afterE4, oracle.Line{Mate: model.Int(0)}, nil, model.Int(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.line.PV = []string{"e7e5"}
			tt.line.Depth = 12
			tt.line.MultiPV = 1
			got, err := Normalize(tt.fen, []oracle.Line{tt.line})
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			want := []model.LineEval{{PV: []string{"e7e5"}, CP: tt.wantCP, Mate: tt.wantMate, Depth: 12, MultiPV: 1}}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Normalize() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestNormalize_DropsUnscored(t *testing.T) {
	got, err := Normalize(whiteToMove, []oracle.Line{
		{MultiPV: 1, PV: []string{"e2e4"}},
		{MultiPV: 2, CP: model.Int(5), PV: []string{"d2d4"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Best() != "d2d4" {
		t.Errorf("Normalize() = %+v", got)
	}
}

func TestNormalize_BadFEN(t *testing.T) {
	if _, err := Normalize("bogus", nil); err == nil {
		t.Error("Normalize(bogus) should fail")
	}
}

func TestNormalize_DoesNotAlias(t *testing.T) {
	in := []oracle.Line{{CP: model.Int(7), PV: []string{"e2e4"}}}
	got, _ := Normalize(whiteToMove, in)
	got[0].PV[0] = "xxxx"
	*got[0].CP = 99
	if in[0].PV[0] != "e2e4" || *in[0].CP != 7 {
		t.Error("Normalize() output aliases its input")
	}
}

func TestFlip_Involution(t *testing.T) {
	lines := []model.LineEval{
		{PV: []string{"e2e4"}, CP: model.Int(35), Depth: 10, MultiPV: 1},
		{PV: []string{"d2d4"}, Mate: model.Int(-4), Depth: 10, MultiPV: 2},
		{CP: model.Int(0), Depth: 10, MultiPV: 3},
	}
	flipped := Flip(lines)
	if *flipped[0].CP != -35 || *flipped[1].Mate != 4 {
		t.Errorf("Flip() = %+v", flipped)
	}
	if *lines[0].CP != 35 {
		t.Error("Flip() modified its input")
	}
	if back := Flip(flipped); !reflect.DeepEqual(back, lines) {
		t.Errorf("Flip(Flip(x)) = %+v, want %+v", back, lines)
	}
}
