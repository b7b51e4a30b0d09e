// Package board wraps github.com/notnil/chess for the little move handling
// the analysis needs: legal move lookup, applying UCI moves and replaying lines.
package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// ErrIllegalMove indicates a move that is not legal in the given position.
var ErrIllegalMove = errors.New("board: illegal move")

// ErrInvalidPosition indicates a FEN the chess library cannot load.
var ErrInvalidPosition = errors.New("board: invalid position")

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position loads a FEN. Four-field FENs get default move counters.
func Position(fen string) (*chess.Position, error) {
	fields := strings.Fields(fen)
	switch len(fields) {
	case 4:
		fields = append(fields, "0", "1")
	case 5:
		fields = append(fields, "1")
	}
	opt, err := chess.FEN(strings.Join(fields, " "))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return chess.NewGame(opt).Position(), nil
}

// FindMove returns the legal move of pos matching uci.
func FindMove(pos *chess.Position, uci string) (*chess.Move, error) {
	want := strings.ToLower(strings.TrimSpace(uci))
	for _, m := range pos.ValidMoves() {
		if m.String() == want {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
}

// Apply plays uci on fen and returns the resulting FEN and the move.
func Apply(fen, uci string) (string, *chess.Move, error) {
	pos, err := Position(fen)
	if err != nil {
		return "", nil, err
	}
	m, err := FindMove(pos, uci)
	if err != nil {
		return "", nil, err
	}
	return pos.Update(m).String(), m, nil
}

// LegalCount returns the number of legal moves in fen.
func LegalCount(fen string) (int, error) {
	pos, err := Position(fen)
	if err != nil {
		return 0, err
	}
	return len(pos.ValidMoves()), nil
}

// Replay plays moves from fen in order and returns the final FEN.
func Replay(fen string, moves []string) (string, error) {
	pos, err := Position(fen)
	if err != nil {
		return "", err
	}
	for i, uci := range moves {
		m, err := FindMove(pos, uci)
		if err != nil {
			return "", fmt.Errorf("move %d: %w", i, err)
		}
		pos = pos.Update(m)
	}
	return pos.String(), nil
}

// SAN returns the algebraic notation of uci in fen.
func SAN(fen, uci string) (string, error) {
	pos, err := Position(fen)
	if err != nil {
		return "", err
	}
	m, err := FindMove(pos, uci)
	if err != nil {
		return "", err
	}
	return chess.AlgebraicNotation{}.Encode(pos, m), nil
}

// IsCapture reports whether m takes a piece, en passant included.
func IsCapture(m *chess.Move) bool {
	return m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant)
}
