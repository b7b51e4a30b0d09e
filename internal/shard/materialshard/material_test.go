package materialshard

import (
	"testing"

	"github.com/Melvud/ChessAnalysis-sub000/internal/fen"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

const allSignatures = 1 << 23

func TestStrategy_ShardID(t *testing.T) {
	s := New()
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{
			name: "quiet moves keep the shard",
			a:    "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
			b:    "r1bqkbnr/pppppppp/2n5/8/8/5N2/PPPPPPPP/RNBQKB1R w KQkq - 2 2",
			same: true,
		},
		{
			name: "side to move changes the shard",
			a:    "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
			b:    "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
			same: false,
		},
		{
			name: "pawn capture changes the shard",
			a:    "rnbqkbnr/ppp1pppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2",
			b:    "rnbqkbnr/ppp1pppp/8/3P4/8/8/PPPP1PPP/RNBQKBNR b KQkq - 0 2",
			same: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := s.ShardID(tt.a, allSignatures)
			b := s.ShardID(tt.b, allSignatures)
			if (a == b) != tt.same {
				t.Errorf("ShardID() = %d and %d, same = %v, want %v", a, b, a == b, tt.same)
			}
		})
	}
}

func TestSignature(t *testing.T) {
	m := fen.Material{
		WhiteQueens:  1,
		BlackQueens:  5,
		WhiteRooks:   2,
		WhiteKnights: 1,
		WhiteBishops: 1,
		WhitePawns:   8,
		BlackPawns:   3,
	}
	got := Signature(m, model.Black)
	want := uint32(1) | 3<<2 | 2<<4 | 2<<8 | 8<<14 | 3<<18 | 1<<22
	if got != want {
		t.Errorf("Signature() = %#x, want %#x", got, want)
	}
	if Signature(fen.Material{}, model.White) != 0 {
		t.Error("bare kings with white to move should have signature 0")
	}
}

func TestStrategy_ShardID_InvalidFEN(t *testing.T) {
	s := New()
	for _, total := range []int{1, 7, 32768} {
		id := s.ShardID("not a valid fen", total)
		if id < 0 || id >= total {
			t.Errorf("ShardID(invalid, %d) = %d, out of range", total, id)
		}
	}
}

func BenchmarkStrategy_ShardID(b *testing.B) {
	s := New()
	fen := "r1bqkb1r/pppp1ppp/2n2n2/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4"
	for i := 0; i < b.N; i++ {
		s.ShardID(fen, 32768)
	}
}
