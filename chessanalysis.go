// Package chessanalysis analyzes chess games with a move-evaluation oracle,
// either a UCI engine or a precomputed evaluation database. It grades every
// move, estimates each side's accuracy and rating, and caches the reports.
//
// Example usage:
//
//	engine, err := uciengine.New(ctx, "stockfish")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := chessanalysis.New(chessanalysis.WithOracle(engine))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	report, err := client.AnalyzeGame(ctx, pgnText, chessanalysis.AnalyzeParams{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("White accuracy: %.1f\n", report.Accuracy.White.Itera)
package chessanalysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/depth"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/fallback"
	"github.com/Melvud/ChessAnalysis-sub000/internal/pgn"
	"github.com/Melvud/ChessAnalysis-sub000/internal/pipeline"
	"github.com/Melvud/ChessAnalysis-sub000/internal/progress"
	"github.com/Melvud/ChessAnalysis-sub000/internal/reportcache"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
	"github.com/Melvud/ChessAnalysis-sub000/internal/variation"
)

// Defaults used when no option overrides them.
const (
	DefaultDepth     = pipeline.DefaultDepth
	DefaultMultiPV   = pipeline.DefaultMultiPV
	DefaultCacheSize = 256
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("chessanalysis: client closed")

	// ErrNoOracle indicates neither an engine nor a database was provided.
	ErrNoOracle = errors.New("chessanalysis: no oracle provided")
)

// Client analyzes games and positions.
// A Client is safe for concurrent use by multiple goroutines.
type Client struct {
	oracle   oracle.Oracle
	cache    reportcache.Cache
	group    *reportcache.Group
	pipeline *pipeline.Analyzer
	depth    *depth.Analyzer
	tracker  *progress.Tracker
	opts     options
	stats    stats.Collector
	logger   *zap.Logger
	closed   atomic.Bool
}

// New creates a new Client with the given options. WithOracle or
// WithEvalDB is required.
func New(opts ...Option) (*Client, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	var o oracle.Oracle
	switch {
	case cfg.evalDB != nil && cfg.oracle != nil:
		o = fallback.New(cfg.evalDB, cfg.oracle, fallback.WithLogger(cfg.logger))
	case cfg.evalDB != nil:
		o = cfg.evalDB
	case cfg.oracle != nil:
		o = cfg.oracle
	default:
		return nil, ErrNoOracle
	}
	o = oracle.Instrument(o, cfg.stats, cfg.logger)

	cache := cfg.cache
	switch {
	case cache != nil:
	case cfg.store != nil:
		cache = reportcache.NewStoreCache(cfg.store, cfg.logger)
	default:
		mem, err := reportcache.NewMemory(cfg.cacheSize, cfg.stats)
		if err != nil {
			return nil, err
		}
		cache = mem
	}

	da, err := depth.New(o, depth.WithLogger(cfg.logger), depth.WithStats(cfg.stats))
	if err != nil {
		return nil, err
	}
	tracker, err := progress.NewTracker(cfg.trackerSize)
	if err != nil {
		return nil, err
	}

	pa := pipeline.New(o,
		pipeline.WithDepth(cfg.depth),
		pipeline.WithMultiPV(cfg.multiPV),
		pipeline.WithOpeningBook(cfg.book),
		pipeline.WithLogger(cfg.logger),
		pipeline.WithStats(cfg.stats),
	)
	group := reportcache.NewGroup(cache,
		reportcache.WithLogger(cfg.logger),
		reportcache.WithStats(cfg.stats),
	)

	c := &Client{
		oracle:   o,
		cache:    cache,
		group:    group,
		pipeline: pa,
		depth:    da,
		tracker:  tracker,
		opts:     cfg,
		stats:    cfg.stats,
		logger:   cfg.logger,
	}

	c.logger.Debug("client initialized",
		zap.Int("depth", cfg.depth),
		zap.Int("multiPV", cfg.multiPV),
		zap.Bool("evalDB", cfg.evalDB != nil),
	)
	return c, nil
}

// Key returns the canonical cache key of a PGN game. Tag order, comments,
// clock annotations and formatting do not change it.
func (c *Client) Key(pgnText string) (string, error) {
	return pgn.CanonicalKey(pgnText)
}

// AnalyzeGame returns the report of a PGN game, from the cache when a
// report at least as deep and wide is stored. Concurrent calls for the
// same game share one analysis. Malformed PGN fails with
// *MalformedPgnError before any evaluation. Returned reports may be shared
// and must not be modified.
func (c *Client) AnalyzeGame(ctx context.Context, pgnText string, p AnalyzeParams) (*FullReport, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	g, err := pgn.Parse(pgnText)
	if err != nil {
		return nil, err
	}

	p = c.pipeline.Defaults(p)
	p.Key = g.Key()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Progress = c.tracker.Tee(p.Progress)
	if err := ctx.Err(); err != nil {
		err = model.Cancelled(err)
		c.settle(p, len(g.Plies), err)
		return nil, err
	}

	need := reportcache.Need{Depth: p.Depth, MultiPV: p.MultiPV}
	report, err := c.group.GetOrCompute(ctx, p.Key, need, func(ctx context.Context) (*model.FullReport, error) {
		return c.pipeline.Analyze(ctx, g, p)
	})
	if err == nil {
		for _, pe := range report.Positions {
			c.depth.Remember(pe, report.Depth, report.MultiPV)
		}
	}
	c.settle(p, len(g.Plies), err)
	return report, err
}

// settle records the final stage of analysis p. A caller served from the
// cache or by another caller's analysis never saw its own progress.
func (c *Client) settle(p AnalyzeParams, plies int, err error) {
	s := model.AnalysisSnapshot{ID: p.ID, Key: p.Key, Ply: plies, Total: plies, UpdatedAt: time.Now()}
	if prev, ok := c.tracker.Get(p.ID); ok {
		s.StartedAt = prev.StartedAt
	}
	switch {
	case err == nil:
		s.Stage = model.StageDone
		s.Percent = 100
	case model.IsCancelled(err):
		s.Stage = model.StageCanceled
		s.Message = err.Error()
	default:
		s.Stage = model.StageError
		s.Message = err.Error()
	}
	c.tracker.Report(s)
}

// CachedReport returns the stored report of a PGN game or ErrCacheMiss.
func (c *Client) CachedReport(ctx context.Context, pgnText string) (*FullReport, error) {
	key, err := c.Key(pgnText)
	if err != nil {
		return nil, err
	}
	return c.Report(ctx, key)
}

// Report returns the stored report under a canonical key or ErrCacheMiss.
func (c *Client) Report(ctx context.Context, key string) (*FullReport, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.cache.Get(ctx, key)
}

// Track records s as the latest snapshot of analysis s.ID.
func (c *Client) Track(s AnalysisSnapshot) {
	c.tracker.Report(s)
}

// Progress returns the latest snapshot of analysis id.
func (c *Client) Progress(id string) (AnalysisSnapshot, bool) {
	return c.tracker.Get(id)
}

// AnalyzePosition evaluates fen to depth with multiPV lines. Zero values
// use the client defaults. Results are remembered, so asking again for
// the same position is free.
func (c *Client) AnalyzePosition(ctx context.Context, fen string, depthLimit, multiPV int) (PositionEval, error) {
	if c.closed.Load() {
		return PositionEval{}, ErrClosed
	}
	if depthLimit <= 0 {
		depthLimit = c.opts.depth
	}
	if multiPV <= 0 {
		multiPV = c.opts.multiPV
	}
	run := c.depth.Start(ctx, depth.Request{
		FEN:         fen,
		StartDepth:  depthLimit,
		TargetDepth: depthLimit,
		MultiPV:     multiPV,
	})
	if err := run.Wait(); err != nil {
		return PositionEval{}, err
	}
	pe, ok := run.Latest()
	if !ok {
		return PositionEval{}, fmt.Errorf("evaluating %s: no result", fen)
	}
	return pe, nil
}

// StartDepthRun evaluates a position at increasing depth in the
// background.
func (c *Client) StartDepthRun(ctx context.Context, req DepthRequest) (*DepthRun, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.depth.Start(ctx, req), nil
}

// NewFocus returns a Focus whose runs share the client's position cache.
func (c *Client) NewFocus() *Focus {
	return c.depth.NewFocus()
}

// NewExplorer returns a variation explorer using the client's oracle and
// defaults.
func (c *Client) NewExplorer() *Explorer {
	return variation.New(c.oracle,
		variation.WithDepth(c.opts.depth),
		variation.WithMultiPV(c.opts.multiPV),
		variation.WithOpeningBook(c.opts.book),
		variation.WithLogger(c.logger),
		variation.WithStats(c.stats),
	)
}

// Cache returns the report cache.
func (c *Client) Cache() reportcache.Cache {
	return c.cache
}

// Close releases the oracle and the report cache.
// After Close, the client should not be used.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	var errs []error
	if err := c.oracle.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing oracle: %w", err))
	}
	if closer, ok := c.cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing cache: %w", err))
		}
	}
	return errors.Join(errs...)
}
