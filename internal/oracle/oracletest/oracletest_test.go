package oracletest

import (
	"context"
	"testing"

	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
)

func TestLegal(t *testing.T) {
	tests := []struct {
		name      string
		fen       string
		multiPV   int
		wantLines int
		wantMate  bool
	}{
		{"start position", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 3, 3, false},
		{"single legal move", "R6k/6p1/8/8/8/8/8/K7 b - - 0 1", 3, 1, false},
		{"checkmated", "R5k1/5ppp/8/8/8/8/8/K7 b - - 0 1", 2, 1, true},
		{"stalemate", "7k/5Q2/8/8/8/8/8/K7 b - - 0 1", 2, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := Legal(50)(oracle.Request{FEN: tt.fen, Depth: 5, MultiPV: tt.multiPV})
			if err != nil {
				t.Fatalf("Legal() error = %v", err)
			}
			if len(lines) != tt.wantLines {
				t.Fatalf("got %d lines, want %d", len(lines), tt.wantLines)
			}
			if got := lines[0].Mate != nil; got != tt.wantMate {
				t.Errorf("mate line = %v, want %v", got, tt.wantMate)
			}
			if tt.wantMate && *lines[0].Mate != 0 {
				t.Errorf("Mate = %d, want 0", *lines[0].Mate)
			}
			for i, l := range lines {
				if l.Depth != 5 || l.MultiPV != i+1 {
					t.Errorf("line %d = %+v", i, l)
				}
			}
		})
	}
}

func TestFake_PartialBatches(t *testing.T) {
	f := &Fake{Partial: true}
	var sizes []int
	var finals []bool
	err := f.Evaluate(context.Background(), oracle.Request{FEN: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", Depth: 4, MultiPV: 2}, func(b oracle.Batch) {
		sizes = append(sizes, len(b.Lines))
		finals = append(finals, b.Final)
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(sizes) != 2 || sizes[0] != 1 || sizes[1] != 2 || finals[0] || !finals[1] {
		t.Errorf("batches sizes=%v finals=%v", sizes, finals)
	}
	if f.Calls() != 1 || f.Requests()[0].Depth != 4 {
		t.Errorf("Requests() = %+v", f.Requests())
	}
}
