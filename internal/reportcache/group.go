package reportcache

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
)

// Need is the minimum depth and number of lines a cached report must have
// been produced with.
type Need struct {
	Depth   int
	MultiPV int
}

// ComputeFunc produces a report for a cache miss.
type ComputeFunc func(ctx context.Context) (*model.FullReport, error)

// Group runs at most one computation per key at a time and shares its
// result with every concurrent caller.
type Group struct {
	cache     Cache
	flight    singleflight.Group
	logger    *zap.Logger
	collector stats.Collector
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) GroupOption {
	return func(g *Group) { g.logger = l }
}

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) GroupOption {
	return func(g *Group) { g.collector = c }
}

// NewGroup returns a Group in front of c.
func NewGroup(c Cache, opts ...GroupOption) *Group {
	g := &Group{
		cache:     c,
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.Named("reportcache")
	return g
}

// Cache returns the underlying cache.
func (g *Group) Cache() Cache {
	return g.cache
}

// Lookup returns the cached report for key when it satisfies need.
func (g *Group) Lookup(ctx context.Context, key string, need Need) (*model.FullReport, error) {
	r, err := g.cache.Get(ctx, key)
	switch {
	case errors.Is(err, ErrCacheMiss):
		g.collector.IncCounter(stats.MetricCacheMisses, 1)
		return nil, ErrCacheMiss
	case err != nil:
		g.collector.IncCounter(stats.MetricCacheMisses, 1)
		g.logger.Warn("reading cached report", zap.String("key", key), zap.Error(err))
		return nil, ErrCacheMiss
	case !r.Satisfies(need.Depth, need.MultiPV):
		g.collector.IncCounter(stats.MetricCacheMisses, 1)
		g.logger.Debug("cached report too shallow",
			zap.String("key", key),
			zap.Int("depth", r.Depth),
			zap.Int("want_depth", need.Depth),
		)
		return nil, ErrCacheMiss
	}
	g.collector.IncCounter(stats.MetricCacheHits, 1)
	return r, nil
}

// GetOrCompute returns the cached report for key or computes, stores and
// returns a new one. At most one computation per key runs at a time.
// Callers arriving while one is running wait for it; if its report does
// not meet their need, or its caller was cancelled, they start another
// once it finishes. Returned reports may be shared and must not be
// modified.
func (g *Group) GetOrCompute(ctx context.Context, key string, need Need, compute ComputeFunc) (*model.FullReport, error) {
	if r, err := g.Lookup(ctx, key, need); err == nil {
		return r, nil
	}

	for {
		ch := g.flight.DoChan(key, func() (any, error) {
			return g.fill(ctx, key, need, compute)
		})
		select {
		case <-ctx.Done():
			return nil, model.Cancelled(ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				if model.IsCancelled(res.Err) && ctx.Err() == nil {
					continue
				}
				return nil, res.Err
			}
			r := res.Val.(*model.FullReport)
			if res.Shared {
				if !r.Satisfies(need.Depth, need.MultiPV) {
					g.logger.Debug("shared report too shallow, recomputing",
						zap.String("key", key),
						zap.Int("depth", r.Depth),
						zap.Int("want_depth", need.Depth),
					)
					continue
				}
				g.collector.IncCounter(stats.MetricSingleflightShare, 1)
			}
			return r, nil
		}
	}
}

func (g *Group) fill(ctx context.Context, key string, need Need, compute ComputeFunc) (*model.FullReport, error) {
	// A flight that finished just before this one may have stored it.
	if r, err := g.cache.Get(ctx, key); err == nil && r.Satisfies(need.Depth, need.MultiPV) {
		return r, nil
	}
	r, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if prev, err := g.cache.Get(ctx, key); err == nil && !r.Satisfies(prev.Depth, prev.MultiPV) {
		// Never replace a deeper or wider report.
		g.logger.Debug("keeping stored report",
			zap.String("key", key),
			zap.Int("depth", prev.Depth),
			zap.Int("computed_depth", r.Depth),
		)
		return r, nil
	}
	if err := g.cache.Put(ctx, key, r); err != nil {
		g.logger.Warn("storing report", zap.String("key", key), zap.Error(err))
	}
	return r, nil
}
