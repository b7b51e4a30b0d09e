// Package evaldb answers evaluation requests from a precomputed database of
// lichess-format evaluations, sharded and sorted by FEN.
package evaldb

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/fen"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/shard"
	_ "github.com/Melvud/ChessAnalysis-sub000/internal/shard/fnvshard"
	_ "github.com/Melvud/ChessAnalysis-sub000/internal/shard/materialshard"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
)

var (
	// ErrNotFound is returned when the position is not in the database.
	ErrNotFound = errors.New("evaldb: position not found")

	// ErrShallow is returned when the stored evaluations do not reach the
	// requested depth.
	ErrShallow = errors.New("evaldb: stored evaluation too shallow")
)

// Oracle is an oracle.Oracle backed by an evaluation database.
type Oracle struct {
	store     store.Store
	manifest  *Manifest
	strategy  shard.Strategy
	logger    *zap.Logger
	collector stats.Collector
}

var _ oracle.Oracle = (*Oracle)(nil)

// Option configures an Oracle.
type Option func(*Oracle)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Oracle) { o.logger = l }
}

// WithStats sets the metrics collector.
func WithStats(c stats.Collector) Option {
	return func(o *Oracle) { o.collector = c }
}

// Open reads the manifest of the database held in st. The Oracle takes
// ownership of st.
func Open(ctx context.Context, st store.Store, opts ...Option) (*Oracle, error) {
	o := &Oracle{
		store:     st,
		logger:    zap.NewNop(),
		collector: stats.NewNoop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("evaldb")

	m, err := ReadManifest(ctx, st)
	if err != nil {
		return nil, err
	}
	strategy, err := shard.ByName(m.Strategy)
	if err != nil {
		return nil, err
	}
	o.manifest = m
	o.strategy = strategy
	o.logger.Debug("opened evaluation database",
		zap.String("strategy", m.Strategy),
		zap.Int("shards", m.TotalShards),
		zap.Int64("records", m.RecordCount),
	)
	return o, nil
}

// Manifest returns a copy of the database manifest.
func (o *Oracle) Manifest() Manifest {
	return *o.manifest
}

// Lookup returns the record stored for fen. Move counters are ignored.
// Databases that only record an en passant square when the capture is
// legal are handled by retrying without it.
func (o *Oracle) Lookup(ctx context.Context, fenStr string) (*Record, error) {
	normalized, err := fen.Normalize(fenStr)
	if err != nil {
		return nil, err
	}
	rec, err := o.lookup(ctx, normalized)
	if !errors.Is(err, ErrNotFound) {
		return rec, err
	}
	parts := strings.Fields(normalized)
	if parts[3] == "-" {
		return nil, err
	}
	parts[3] = "-"
	return o.lookup(ctx, strings.Join(parts, " "))
}

func (o *Oracle) lookup(ctx context.Context, normalized string) (*Record, error) {
	id := o.strategy.ShardID(normalized, o.manifest.TotalShards)
	data, err := o.store.Get(ctx, shard.Key(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return Find(data, normalized)
}

// Evaluate reports a single final batch when the database holds the
// position at req.Depth or deeper.
func (o *Oracle) Evaluate(ctx context.Context, req oracle.Request, fn oracle.BatchFunc) error {
	if err := req.Validate(); err != nil {
		return oracle.Wrap("lookup", req.FEN, err)
	}
	if err := ctx.Err(); err != nil {
		return model.Cancelled(err)
	}

	rec, err := o.Lookup(ctx, req.FEN)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			o.collector.IncCounter(stats.MetricEvalDBMisses, 1)
		}
		return oracle.Wrap("lookup", req.FEN, err)
	}
	eval, ok := rec.Select(req.Depth, req.MultiPV)
	if !ok {
		o.collector.IncCounter(stats.MetricEvalDBMisses, 1)
		o.logger.Debug("stored evaluation too shallow",
			zap.String("fen", req.FEN),
			zap.Int("want", req.Depth),
			zap.Int("have", rec.MaxDepth()),
		)
		return oracle.Wrap("lookup", req.FEN, ErrShallow)
	}
	o.collector.IncCounter(stats.MetricEvalDBHits, 1)

	side, err := fen.SideToMove(req.FEN)
	if err != nil {
		return oracle.Wrap("lookup", req.FEN, err)
	}
	fn(oracle.Batch{
		FEN:   req.FEN,
		Depth: eval.Depth,
		Lines: toLines(eval, req.MultiPV, side),
		Final: true,
	})
	return nil
}

// toLines converts White-relative stored lines to side-to-move lines.
func toLines(e Eval, multiPV int, side model.Side) []oracle.Line {
	n := min(len(e.PVs), multiPV)
	lines := make([]oracle.Line, 0, n)
	for i, pv := range e.PVs[:n] {
		line := oracle.Line{
			MultiPV: i + 1,
			Depth:   e.Depth,
			PV:      strings.Fields(pv.Line),
		}
		switch {
		case pv.Mate != nil:
			line.Mate = model.Int(*pv.Mate * side.Sign())
		case pv.CP != nil:
			line.CP = model.Int(*pv.CP * side.Sign())
		}
		lines = append(lines, line)
	}
	return lines
}

// Close closes the underlying store.
func (o *Oracle) Close() error {
	return o.store.Close()
}
