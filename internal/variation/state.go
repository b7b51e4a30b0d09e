package variation

import "github.com/Melvud/ChessAnalysis-sub000/internal/model"

// State is where an Explorer stands: on the game's main line or in a
// branch of its own moves.
type State interface {
	isState()
}

// MainLine means the explorer follows the analyzed game at Ply.
type MainLine struct {
	Ply int
}

// Branch is a line of moves played away from the main line.
type Branch struct {
	// BaseFEN is the main-line position the branch starts from.
	BaseFEN string
	// Moves are the UCI moves played from BaseFEN.
	Moves []string
	// FEN is the current position of the branch.
	FEN string
	// LastMove is the latest move in UCI notation.
	LastMove string
	// Eval is the evaluation of FEN, nil while Awaiting.
	Eval *model.PositionEval
	// Class grades LastMove once its evaluation arrived.
	Class model.MoveClass
	// Awaiting is set while the latest move is being evaluated.
	Awaiting bool
}

func (MainLine) isState() {}
func (Branch) isState() {}

func (b Branch) clone() Branch {
	c := b
	c.Moves = append([]string(nil), b.Moves...)
	if b.Eval != nil {
		e := b.Eval.Clone()
		c.Eval = &e
	}
	return c
}
