// Package oracletest provides a scriptable oracle for tests.
package oracletest

import (
	"context"
	"sort"
	"sync"

	"github.com/notnil/chess"

	"github.com/Melvud/ChessAnalysis-sub000/internal/board"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
)

// EvalFunc produces side-to-move lines for a request.
type EvalFunc func(req oracle.Request) ([]oracle.Line, error)

// Fake is an in-process oracle.Oracle. It answers every request with one
// final batch at the requested depth.
type Fake struct {
	// Eval produces the lines. Nil means Legal(0).
	Eval EvalFunc

	// Hook runs before the batches are reported. A non-nil error fails
	// the call.
	Hook func(ctx context.Context, req oracle.Request) error

	// Partial reports a batch holding only the first line before the
	// final batch.
	Partial bool

	mu       sync.Mutex
	requests []oracle.Request
	closed   bool
}

var _ oracle.Oracle = (*Fake)(nil)

// Evaluate records req and reports its batches.
func (f *Fake) Evaluate(ctx context.Context, req oracle.Request, fn oracle.BatchFunc) error {
	if err := req.Validate(); err != nil {
		return oracle.Wrap("evaluate", req.FEN, err)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return oracle.Wrap("evaluate", req.FEN, oracle.ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return model.Cancelled(err)
	}
	if f.Hook != nil {
		if err := f.Hook(ctx, req); err != nil {
			return oracle.Wrap("evaluate", req.FEN, err)
		}
	}

	eval := f.Eval
	if eval == nil {
		eval = Legal(0)
	}
	lines, err := eval(req)
	if err != nil {
		return oracle.Wrap("evaluate", req.FEN, err)
	}
	if f.Partial && len(lines) > 1 {
		fn(oracle.Batch{FEN: req.FEN, Depth: req.Depth, Lines: lines[:1]})
	}
	fn(oracle.Batch{FEN: req.FEN, Depth: req.Depth, Lines: lines, Final: true})
	return nil
}

// Calls returns the number of Evaluate calls so far.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns the requests received so far.
func (f *Fake) Requests() []oracle.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]oracle.Request(nil), f.requests...)
}

// Close marks the fake closed. Later calls fail with oracle.ErrClosed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Legal returns an EvalFunc that ranks the legal moves in UCI order. The
// first line scores cp for the side to move and every further line 10cp
// less. A mated side gets a single "mate 0" line and stalemate a single
// empty line at cp 0.
func Legal(cp int) EvalFunc {
	return Scored(func(string, string) int { return cp })
}

// Scored is like Legal but scores each move with score(fen, uci), from the
// point of view of the side to move. Lines are sorted best first.
func Scored(score func(fen, uci string) int) EvalFunc {
	return func(req oracle.Request) ([]oracle.Line, error) {
		pos, err := board.Position(req.FEN)
		if err != nil {
			return nil, err
		}
		moves := pos.ValidMoves()
		if len(moves) == 0 {
			line := oracle.Line{MultiPV: 1, Depth: req.Depth}
			if pos.Status() == chess.Checkmate {
				line.Mate = model.Int(0)
			} else {
				line.CP = model.Int(0)
			}
			return []oracle.Line{line}, nil
		}

		ucis := make([]string, len(moves))
		for i, m := range moves {
			ucis[i] = m.String()
		}
		sort.Strings(ucis)
		scores := make(map[string]int, len(ucis))
		for i, u := range ucis {
			scores[u] = score(req.FEN, u) - 10*i
		}
		sort.SliceStable(ucis, func(i, j int) bool { return scores[ucis[i]] > scores[ucis[j]] })

		n := min(len(ucis), req.MultiPV)
		lines := make([]oracle.Line, n)
		for i, u := range ucis[:n] {
			lines[i] = oracle.Line{
				MultiPV: i + 1,
				Depth:   req.Depth,
				CP:      model.Int(scores[u]),
				PV:      []string{u},
			}
		}
		return lines, nil
	}
}

// Fixed returns an EvalFunc that answers every request with lines, with
// their depth set to the requested depth.
func Fixed(lines ...oracle.Line) EvalFunc {
	return func(req oracle.Request) ([]oracle.Line, error) {
		out := make([]oracle.Line, 0, len(lines))
		for i, l := range lines {
			if i >= req.MultiPV {
				break
			}
			l.Depth = req.Depth
			out = append(out, l)
		}
		return out, nil
	}
}
