// Package depth evaluates one position at increasing search depth and
// publishes every improvement to subscribers.
package depth

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/fen"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
)

// DefaultCacheSize is the number of position evaluations kept in memory.
const DefaultCacheSize = 4096

// Request describes a depth run.
type Request struct {
	FEN         string
	Ply         int
	StartDepth  int
	TargetDepth int
	MultiPV     int
	// Cached is a previously computed evaluation. When it already
	// satisfies TargetDepth and MultiPV the run finishes without calling
	// the oracle.
	Cached *model.PositionEval
}

func (r Request) validate() error {
	if r.StartDepth < 1 || r.TargetDepth < r.StartDepth {
		return fmt.Errorf("%w: depths %d..%d", oracle.ErrInvalidRequest, r.StartDepth, r.TargetDepth)
	}
	return oracle.Request{FEN: r.FEN, Depth: r.TargetDepth, MultiPV: r.MultiPV}.Validate()
}

// Analyzer starts depth runs against an oracle and remembers the
// evaluations they finish.
type Analyzer struct {
	oracle    oracle.Oracle
	cache     *lru.Cache[string, model.PositionEval]
	deepest   *lru.Cache[string, model.PositionEval]
	cacheSize int
	logger    *zap.Logger
	collector stats.Collector
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) Option {
	return func(a *Analyzer) { a.collector = c }
}

// WithCacheSize sets the number of cached evaluations.
func WithCacheSize(n int) Option {
	return func(a *Analyzer) { a.cacheSize = n }
}

// New returns an Analyzer evaluating with o.
func New(o oracle.Oracle, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		oracle:    o,
		cacheSize: DefaultCacheSize,
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("depth")

	cache, err := lru.New[string, model.PositionEval](a.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating position cache: %w", err)
	}
	a.cache = cache
	if a.deepest, err = lru.New[string, model.PositionEval](a.cacheSize); err != nil {
		return nil, fmt.Errorf("creating position cache: %w", err)
	}
	return a, nil
}

// Cached returns the evaluation of fen remembered for depth and multiPV.
func (a *Analyzer) Cached(fenStr string, depth, multiPV int) (model.PositionEval, bool) {
	pe, ok := a.cache.Get(cacheKey(fenStr, depth, multiPV))
	if !ok {
		return model.PositionEval{}, false
	}
	return pe.Clone(), true
}

// Deepest returns the deepest evaluation of fen remembered at any depth.
func (a *Analyzer) Deepest(fenStr string) (model.PositionEval, bool) {
	pe, ok := a.deepest.Get(normalize(fenStr))
	if !ok {
		return model.PositionEval{}, false
	}
	return pe.Clone(), true
}

// Remember stores pe as the evaluation of its position at depth and
// multiPV. Later runs it satisfies finish without calling the oracle.
func (a *Analyzer) Remember(pe model.PositionEval, depth, multiPV int) {
	a.remember(pe, depth, multiPV)
}

func (a *Analyzer) remember(pe model.PositionEval, depth, multiPV int) {
	a.cache.Add(cacheKey(pe.FEN, depth, multiPV), pe.Clone())
	if len(pe.Lines) == 0 {
		return
	}
	key := normalize(pe.FEN)
	if prev, ok := a.deepest.Get(key); ok && !pe.Satisfies(prev.Depth(), len(prev.Lines)) {
		return
	}
	a.deepest.Add(key, pe.Clone())
}

// Start begins a run in the background. The run ends when it reaches the
// target depth, fails, or when ctx or Cancel stops it.
func (a *Analyzer) Start(ctx context.Context, req Request) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := newRun(a, req, cancel)
	a.collector.IncCounter(stats.MetricDepthRuns, 1)
	go r.loop(ctx)
	return r
}

func cacheKey(fenStr string, depth, multiPV int) string {
	return fmt.Sprintf("%s|%d|%d", normalize(fenStr), depth, multiPV)
}

func normalize(fenStr string) string {
	if n, err := fen.Normalize(fenStr); err == nil {
		return n
	}
	return fenStr
}
