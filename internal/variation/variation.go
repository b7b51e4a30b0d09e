// Package variation lets a user leave the analyzed game, play their own
// moves and see each one evaluated and graded.
package variation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/board"
	"github.com/Melvud/ChessAnalysis-sub000/internal/classify"
	"github.com/Melvud/ChessAnalysis-sub000/internal/depth"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/openings"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
)

// Defaults for variation evaluations.
const (
	DefaultDepth   = 14
	DefaultMultiPV = 2
)

// ErrSuperseded is returned by a PlayMove call overtaken by a newer one
// or by Exit. Its result was not applied.
var ErrSuperseded = errors.New("variation: superseded by a newer move")

// Result describes one move played in a branch.
type Result struct {
	FEN       string
	SAN       string
	UCI       string
	Before    model.PositionEval
	After     model.PositionEval
	Class     model.MoveClass
	WinBefore float64
	WinAfter  float64
	Tags      []string
}

// Explorer owns the state of one variation session.
type Explorer struct {
	oracle    oracle.Oracle
	depth     int
	multiPV   int
	book      *openings.Book
	logger    *zap.Logger
	collector stats.Collector

	mu    sync.Mutex
	state State
	seq   uint64
	// cancel stops the evaluations of the move in flight.
	cancel context.CancelFunc
	// mainPly is the main-line ply to return to on Exit.
	mainPly int
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithDepth sets the search depth of each evaluation.
func WithDepth(d int) Option {
	return func(e *Explorer) { e.depth = d }
}

// WithMultiPV sets the number of lines per evaluation.
func WithMultiPV(n int) Option {
	return func(e *Explorer) { e.multiPV = n }
}

// WithOpeningBook sets the book used to recognize opening moves.
func WithOpeningBook(b *openings.Book) Option {
	return func(e *Explorer) { e.book = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Explorer) { e.logger = l }
}

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) Option {
	return func(e *Explorer) { e.collector = c }
}

// New returns an Explorer on the main line at ply 0.
func New(o oracle.Oracle, opts ...Option) *Explorer {
	e := &Explorer{
		oracle:    o,
		depth:     DefaultDepth,
		multiPV:   DefaultMultiPV,
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
		state:     MainLine{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("variation")
	return e
}

// State returns a snapshot of the current state.
func (e *Explorer) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.state.(Branch); ok {
		return b.clone()
	}
	return e.state
}

// Seek moves along the main line. It leaves any branch.
func (e *Explorer) Seek(ply int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.abandon()
	e.mainPly = ply
	e.state = MainLine{Ply: ply}
}

// Exit abandons the branch and returns to the main line. Evaluations
// still running are cancelled.
func (e *Explorer) Exit() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.abandon()
	e.state = MainLine{Ply: e.mainPly}
}

// PlayMove plays uci from fromFEN, evaluates the resulting position and
// grades the move. before is the evaluation of fromFEN when already known.
// Playing from the current branch position extends the branch; any other
// position starts a new one.
func (e *Explorer) PlayMove(ctx context.Context, fromFEN, uci string, before *model.PositionEval) (Result, error) {
	afterFEN, _, err := board.Apply(fromFEN, uci)
	if err != nil {
		return Result{}, fmt.Errorf("playing %s: %w", uci, err)
	}
	san, err := board.SAN(fromFEN, uci)
	if err != nil {
		return Result{}, err
	}
	legal, err := board.LegalCount(fromFEN)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	e.abandon()
	seq := e.seq
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer e.release(seq, cancel)
	prev, extends := e.state.(Branch)
	extends = extends && prev.FEN == fromFEN
	next := Branch{BaseFEN: fromFEN, FEN: afterFEN, LastMove: uci, Moves: []string{uci}, Awaiting: true}
	var prevFEN, prevUCI string
	if extends {
		next.BaseFEN = prev.BaseFEN
		next.Moves = append(append([]string(nil), prev.Moves...), uci)
		if len(prev.Moves) > 0 {
			prevUCI = prev.LastMove
			prevFEN, _ = ReplayLine(prev.BaseFEN, prev.Moves, len(prev.Moves)-1)
		}
		if before == nil && prev.Eval != nil {
			b := prev.Eval.Clone()
			before = &b
		}
	}
	e.state = next
	e.mu.Unlock()
	e.collector.IncCounter(stats.MetricVariationMoves, 1)

	var beforeEval model.PositionEval
	if before != nil {
		beforeEval = before.Clone()
	} else {
		beforeEval, err = depth.Evaluate(ctx, e.oracle, fromFEN, len(next.Moves)-1, e.depth, e.multiPV)
		if err != nil {
			return Result{}, e.fail(seq, err)
		}
	}
	afterEval, err := depth.Evaluate(ctx, e.oracle, afterFEN, len(next.Moves), e.depth, e.multiPV)
	if err != nil {
		return Result{}, e.fail(seq, err)
	}

	cr := classify.Evaluate(classify.Input{
		Before:     beforeEval,
		After:      afterEval,
		Played:     uci,
		BeforeFEN:  fromFEN,
		PrevFEN:    prevFEN,
		PrevUCI:    prevUCI,
		LegalMoves: legal,
		InBook:     e.book != nil && e.book.Contains(afterFEN),
	})
	var reply []string
	if top, ok := afterEval.Top(); ok {
		reply = top.PV
	}
	res := Result{
		FEN:       afterFEN,
		SAN:       san,
		UCI:       uci,
		Before:    beforeEval,
		After:     afterEval,
		Class:     cr.Class,
		WinBefore: cr.WinBefore,
		WinAfter:  cr.WinAfter,
		Tags:      classify.Tags(fromFEN, uci, reply),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq != seq {
		e.logger.Debug("dropping superseded move", zap.String("uci", uci))
		return Result{}, ErrSuperseded
	}
	next.Eval = &afterEval
	next.Class = cr.Class
	next.Awaiting = false
	e.state = next
	return res, nil
}

// abandon supersedes the move in flight and cancels its evaluations.
// e.mu must be held.
func (e *Explorer) abandon() {
	e.seq++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// release drops the cancel func of move seq once it is done.
func (e *Explorer) release(seq uint64, cancel context.CancelFunc) {
	e.mu.Lock()
	if e.seq == seq {
		e.cancel = nil
	}
	e.mu.Unlock()
	cancel()
}

// fail clears the awaiting flag of the move that failed, unless a newer
// move took over.
func (e *Explorer) fail(seq uint64, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq != seq {
		return ErrSuperseded
	}
	if b, ok := e.state.(Branch); ok {
		b.Awaiting = false
		e.state = b
	}
	if !model.IsCancelled(err) {
		e.logger.Warn("variation evaluation failed", zap.Error(err))
	}
	return err
}

// ReplayLine plays the first upto moves of line from baseFEN and returns
// the reached position.
func ReplayLine(baseFEN string, line []string, upto int) (string, error) {
	if upto < 0 || upto > len(line) {
		return "", fmt.Errorf("variation: replay %d of %d moves", upto, len(line))
	}
	return board.Replay(baseFEN, line[:upto])
}
