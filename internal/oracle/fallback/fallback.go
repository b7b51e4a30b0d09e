// Package fallback chains two oracles: a cheap primary, such as an
// evaluation database, and a secondary, usually a local engine.
package fallback

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
)

// Oracle asks the primary first and the secondary when the primary cannot
// answer.
type Oracle struct {
	primary     oracle.Oracle
	secondary   oracle.Oracle
	fallThrough func(error) bool
	logger      *zap.Logger
}

var _ oracle.Oracle = (*Oracle)(nil)

// Option configures an Oracle.
type Option func(*Oracle)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Oracle) { o.logger = l }
}

// WithFallThrough sets the predicate deciding which primary errors are
// retried on the secondary. Cancellation never falls through.
func WithFallThrough(fn func(error) bool) Option {
	return func(o *Oracle) { o.fallThrough = fn }
}

// New returns an Oracle over primary and secondary. By default every
// primary failure other than cancellation falls through.
func New(primary, secondary oracle.Oracle, opts ...Option) *Oracle {
	o := &Oracle{
		primary:     primary,
		secondary:   secondary,
		fallThrough: func(error) bool { return true },
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("fallback")
	return o
}

// Evaluate asks the primary, then the secondary. Batches from a failed
// primary attempt are not forwarded.
func (o *Oracle) Evaluate(ctx context.Context, req oracle.Request, fn oracle.BatchFunc) error {
	var batches []oracle.Batch
	err := o.primary.Evaluate(ctx, req, func(b oracle.Batch) {
		batches = append(batches, b)
	})
	if err == nil {
		for _, b := range batches {
			fn(b)
		}
		return nil
	}
	if model.IsCancelled(err) || errors.Is(err, oracle.ErrInvalidRequest) || !o.fallThrough(err) {
		return err
	}
	o.logger.Debug("primary oracle could not answer",
		zap.String("fen", req.FEN),
		zap.Int("depth", req.Depth),
		zap.Error(err),
	)
	return o.secondary.Evaluate(ctx, req, fn)
}

// Close closes both oracles.
func (o *Oracle) Close() error {
	return errors.Join(o.primary.Close(), o.secondary.Close())
}
