// Package pipeline analyzes whole games: it evaluates every position of a
// game, grades each move and aggregates the results into a report.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/accuracy"
	"github.com/Melvud/ChessAnalysis-sub000/internal/classify"
	"github.com/Melvud/ChessAnalysis-sub000/internal/depth"
	"github.com/Melvud/ChessAnalysis-sub000/internal/elo"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/openings"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/pgn"
	"github.com/Melvud/ChessAnalysis-sub000/internal/progress"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
)

// Defaults for full-game analysis.
const (
	DefaultDepth   = 14
	DefaultMultiPV = 2
)

// evaluationShare is the part of the progress percentage spent evaluating
// positions. Classification takes the rest.
const evaluationShare = 0.95

// Params describes one analysis run.
type Params struct {
	// Depth and MultiPV override the analyzer defaults when positive.
	Depth   int
	MultiPV int

	// ID identifies the run in progress snapshots. A random one is
	// generated when empty.
	ID string
	// Key is the cache key of the game, reported in snapshots.
	Key string

	Progress model.ProgressFunc
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithDepth sets the default search depth.
func WithDepth(d int) Option {
	return func(a *Analyzer) { a.depth = d }
}

// WithMultiPV sets the default number of lines per position.
func WithMultiPV(n int) Option {
	return func(a *Analyzer) { a.multiPV = n }
}

// WithOpeningBook sets the book used for book moves and opening names.
// A nil book disables both.
func WithOpeningBook(b *openings.Book) Option {
	return func(a *Analyzer) { a.book = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) Option {
	return func(a *Analyzer) { a.collector = c }
}

// Analyzer runs full-game analyses against an oracle. It is safe for
// concurrent use; each analysis is sequential.
type Analyzer struct {
	oracle    oracle.Oracle
	depth     int
	multiPV   int
	book      *openings.Book
	logger    *zap.Logger
	collector stats.Collector
	now       func() time.Time

	active atomic.Int64
}

// New returns an Analyzer using o. The ECO book is used unless replaced.
func New(o oracle.Oracle, opts ...Option) *Analyzer {
	a := &Analyzer{
		oracle:    o,
		depth:     DefaultDepth,
		multiPV:   DefaultMultiPV,
		book:      openings.Default(),
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("pipeline")
	return a
}

// Defaults returns p with its depth and width filled in.
func (a *Analyzer) Defaults(p Params) Params {
	if p.Depth <= 0 {
		p.Depth = a.depth
	}
	if p.MultiPV <= 0 {
		p.MultiPV = a.multiPV
	}
	return p
}

// AnalyzePGN parses text and analyzes the game. Malformed PGN fails before
// any oracle call.
func (a *Analyzer) AnalyzePGN(ctx context.Context, text string, p Params) (*model.FullReport, error) {
	g, err := pgn.Parse(text)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, g, p)
}

// Analyze evaluates every position of g, grades every move and returns the
// report. A position the oracle fails on is kept with no lines and noted
// in the report's analysis log. Cancellation aborts the whole analysis.
func (a *Analyzer) Analyze(ctx context.Context, g *pgn.Game, p Params) (*model.FullReport, error) {
	p = a.Defaults(p)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Key == "" {
		p.Key = g.Key()
	}

	start := a.now()
	r := &reporter{fn: p.Progress, id: p.ID, key: p.Key, start: start, now: a.now}
	logger := a.logger.With(zap.String("id", p.ID), zap.Int("plies", len(g.Plies)))

	a.collector.IncCounter(stats.MetricAnalyses, 1)
	a.collector.SetGauge(stats.MetricActiveAnalyses, a.active.Add(1))
	defer func() {
		a.collector.SetGauge(stats.MetricActiveAnalyses, a.active.Add(-1))
		a.collector.ObserveHistogram(stats.MetricAnalysisDuration, a.now().Sub(start).Seconds())
	}()

	r.emit(model.AnalysisSnapshot{Stage: model.StageQueued})
	report, err := a.analyze(ctx, g, p, r, logger)
	switch {
	case err == nil:
		logger.Info("analysis done", zap.Duration("elapsed", a.now().Sub(start)))
		r.emit(model.AnalysisSnapshot{Stage: model.StageDone, Ply: len(g.Plies), Total: len(g.Plies), Percent: 100})
		return report, nil
	case model.IsCancelled(err):
		logger.Debug("analysis cancelled", zap.Error(err))
		r.emit(model.AnalysisSnapshot{Stage: model.StageCanceled, Message: err.Error()})
	default:
		a.collector.IncCounter(stats.MetricAnalysisFailures, 1)
		logger.Error("analysis failed", zap.Error(err))
		r.emit(model.AnalysisSnapshot{Stage: model.StageError, Message: err.Error()})
	}
	return nil, err
}

func (a *Analyzer) analyze(ctx context.Context, g *pgn.Game, p Params, r *reporter, logger *zap.Logger) (*model.FullReport, error) {
	fens := g.FENs()
	r.emit(model.AnalysisSnapshot{Stage: model.StagePreparing, Total: len(fens), FEN: g.StartFEN})

	positions := make([]model.PositionEval, len(fens))
	var analysisLog []string
	for i, fen := range fens {
		if err := ctx.Err(); err != nil {
			return nil, model.Cancelled(err)
		}
		ev, err := depth.Evaluate(ctx, a.oracle, fen, i, p.Depth, p.MultiPV)
		if err != nil {
			if model.IsCancelled(err) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, model.Cancelled(ctx.Err())
			}
			logger.Warn("evaluation failed", zap.Int("ply", i), zap.String("fen", fen), zap.Error(err))
			analysisLog = append(analysisLog, fmt.Sprintf("ply %d: %v", i, err))
			ev = model.PositionEval{FEN: fen, Ply: i}
		}
		positions[i] = ev

		s := model.AnalysisSnapshot{
			Stage:   model.StageEvaluating,
			Ply:     i,
			Total:   len(fens),
			Percent: evaluationShare * progress.Percent(i+1, len(fens)),
			FEN:     fen,
			ETA:     progress.ETA(r.start, a.now(), i+1, len(fens)),
		}
		if top, ok := ev.Top(); ok {
			s.Eval = &top
		}
		if i > 0 {
			s.LastUCI = g.Plies[i-1].UCI
		}
		r.emit(s)
	}

	moves := make([]model.MoveReport, len(g.Plies))
	for i, ply := range g.Plies {
		moves[i] = a.grade(g, i, positions)
		r.emit(model.AnalysisSnapshot{
			Stage:     model.StageClassifying,
			Ply:       i + 1,
			Total:     len(g.Plies),
			Percent:   100*evaluationShare + (1-evaluationShare)*progress.Percent(i+1, len(g.Plies)),
			FEN:       ply.AfterFEN,
			LastUCI:   ply.UCI,
			LastClass: moves[i].Classification,
		})
	}

	header := g.Header()
	a.name(&header, fens)

	whiteCPL, blackCPL := accuracy.CPL(positions)
	whiteMoved, blackMoved := movers(moves)
	report := &model.FullReport{
		Header:       header,
		Positions:    positions,
		Moves:        moves,
		Accuracy:     accuracy.Compute(moves),
		Acpl:         accuracy.ACPL(positions),
		EstimatedElo: elo.Game(header, whiteCPL, blackCPL, whiteMoved, blackMoved),
		Depth:        p.Depth,
		MultiPV:      p.MultiPV,
		AnalysisLog:  analysisLog,
	}
	if clocks := pgn.ParseClocks(g.Text); len(clocks.White)+len(clocks.Black) > 0 {
		report.Clocks = &clocks
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}
	return report, nil
}

// grade classifies ply i of g from the evaluations around it.
func (a *Analyzer) grade(g *pgn.Game, i int, positions []model.PositionEval) model.MoveReport {
	ply := g.Plies[i]
	in := classify.Input{
		Before:     positions[i],
		After:      positions[i+1],
		Played:     ply.UCI,
		BeforeFEN:  ply.BeforeFEN,
		LegalMoves: ply.LegalMoves,
		InBook:     a.book != nil && a.book.Contains(ply.AfterFEN),
	}
	if i > 0 {
		in.PrevFEN = g.Plies[i-1].BeforeFEN
		in.PrevUCI = g.Plies[i-1].UCI
	}
	cr := classify.Evaluate(in)

	var reply []string
	if top, ok := positions[i+1].Top(); ok {
		reply = top.PV
	}
	return model.MoveReport{
		Ply:            i,
		SAN:            ply.SAN,
		UCI:            ply.UCI,
		BeforeFEN:      ply.BeforeFEN,
		AfterFEN:       ply.AfterFEN,
		WinBefore:      cr.WinBefore,
		WinAfter:       cr.WinAfter,
		Accuracy:       accuracy.MoveAccuracy(cr.WinBefore, cr.WinAfter, model.SideOf(ply.BeforeFEN)),
		Classification: cr.Class,
		Tags:           classify.Tags(ply.BeforeFEN, ply.UCI, reply),
	}
}

// name fills the opening of h from the deepest book position reached,
// unless the game's tags already name it.
func (a *Analyzer) name(h *model.Header, fens []string) {
	if a.book == nil || (h.ECO != "" && h.Opening != "") {
		return
	}
	for i := len(fens) - 1; i >= 0; i-- {
		o, ok := a.book.Lookup(fens[i])
		if !ok {
			continue
		}
		if h.ECO == "" {
			h.ECO = o.ECO
		}
		if h.Opening == "" {
			h.Opening = o.Name
		}
		return
	}
}

func movers(moves []model.MoveReport) (white, black bool) {
	for _, m := range moves {
		if m.Mover() == model.White {
			white = true
		} else {
			black = true
		}
	}
	return white, black
}

type reporter struct {
	fn    model.ProgressFunc
	id    string
	key   string
	start time.Time
	now   func() time.Time
}

func (r *reporter) emit(s model.AnalysisSnapshot) {
	if r.fn == nil {
		return
	}
	s.ID = r.id
	s.Key = r.key
	s.StartedAt = r.start
	s.UpdatedAt = r.now()
	r.fn(s)
}
