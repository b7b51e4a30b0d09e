package classify

import (
	"github.com/notnil/chess"

	"github.com/Melvud/ChessAnalysis-sub000/internal/board"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

func pieceValue(t chess.PieceType) int {
	switch t {
	case chess.Pawn:
		return 1
	case chess.Knight, chess.Bishop:
		return 3
	case chess.Rook:
		return 5
	case chess.Queen:
		return 9
	default:
		return 0
	}
}

// balance returns White's material minus Black's.
func balance(b *chess.Board) int {
	total := 0
	for _, p := range b.SquareMap() {
		v := pieceValue(p.Type())
		if p.Color() == chess.Black {
			v = -v
		}
		total += v
	}
	return total
}

// IsSacrifice reports whether playing played from fen and continuing with
// reply, the expected line afterwards, leaves the mover down material in a
// way that is not a pawn-for-pawn trade. The line is followed while
// captures keep coming and stops after two quiet moves in a row.
func IsSacrifice(fen, played string, reply []string) bool {
	if len(reply) == 0 {
		return false
	}
	pos, err := board.Position(fen)
	if err != nil {
		return false
	}
	mover := pos.Turn()
	start := balance(pos.Board())

	moves := append([]string{played}, reply...)
	if len(moves)%2 == 1 {
		moves = moves[:len(moves)-1]
	}

	captured := map[chess.Color][]chess.PieceType{}
	quiet := 1
	for _, uci := range moves {
		m, err := board.FindMove(pos, uci)
		if err != nil {
			return false
		}
		if board.IsCapture(m) {
			victim := chess.Pawn
			if !m.HasTag(chess.EnPassant) {
				victim = pos.Board().Piece(m.S2()).Type()
			}
			captured[pos.Turn()] = append(captured[pos.Turn()], victim)
			quiet = 1
			pos = pos.Update(m)
			continue
		}
		pos = pos.Update(m)
		quiet--
		if quiet < 0 {
			break
		}
	}

	white, black := removeTrades(captured[chess.White], captured[chess.Black])
	if abs(len(white)-len(black)) <= 1 && allPawns(white) && allPawns(black) {
		return false
	}

	diff := balance(pos.Board()) - start
	if mover == chess.Black {
		diff = -diff
	}
	return diff < 0
}

// removeTrades drops pieces captured by both sides.
func removeTrades(white, black []chess.PieceType) ([]chess.PieceType, []chess.PieceType) {
	w := append([]chess.PieceType(nil), white...)
	b := append([]chess.PieceType(nil), black...)
	for i := 0; i < len(w); {
		j := indexOf(b, w[i])
		if j < 0 {
			i++
			continue
		}
		b = append(b[:j], b[j+1:]...)
		w = append(w[:i], w[i+1:]...)
	}
	return w, b
}

func indexOf(pieces []chess.PieceType, p chess.PieceType) int {
	for i, q := range pieces {
		if q == p {
			return i
		}
	}
	return -1
}

func allPawns(pieces []chess.PieceType) bool {
	for _, p := range pieces {
		if p != chess.Pawn {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// IsRecapture reports whether played takes back on the square where the
// previous move, prevUCI played from prevFEN, captured.
func IsRecapture(prevFEN, prevUCI, played string) bool {
	if len(prevUCI) < 4 || len(played) < 4 || prevUCI[2:4] != played[2:4] {
		return false
	}
	pos, err := board.Position(prevFEN)
	if err != nil {
		return false
	}
	m, err := board.FindMove(pos, prevUCI)
	if err != nil {
		return false
	}
	return m.HasTag(chess.Capture)
}

// Tags describes the nature of uci played from fen. reply is the expected
// continuation, used for sacrifice detection.
func Tags(fen, uci string, reply []string) []string {
	pos, err := board.Position(fen)
	if err != nil {
		return nil
	}
	m, err := board.FindMove(pos, uci)
	if err != nil {
		return nil
	}
	var tags []string
	if board.IsCapture(m) {
		tags = append(tags, model.TagCapture)
	}
	if m.HasTag(chess.Check) {
		tags = append(tags, model.TagCheck)
	}
	if m.Promo() != chess.NoPieceType {
		tags = append(tags, model.TagPromotion)
	}
	if m.HasTag(chess.KingSideCastle) || m.HasTag(chess.QueenSideCastle) {
		tags = append(tags, model.TagCastle)
	}
	if IsSacrifice(fen, uci, reply) {
		tags = append(tags, model.TagSacrifice)
	}
	return tags
}
