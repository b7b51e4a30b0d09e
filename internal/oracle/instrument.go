package oracle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
)

type instrumented struct {
	next      Oracle
	collector stats.Collector
	logger    *zap.Logger
}

// Instrument wraps o so that every evaluation is counted, timed and logged.
func Instrument(o Oracle, collector stats.Collector, logger *zap.Logger) Oracle {
	collector = stats.OrNoop(collector)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumented{next: o, collector: collector, logger: logger.Named("oracle")}
}

func (o *instrumented) Evaluate(ctx context.Context, req Request, fn BatchFunc) error {
	start := time.Now()
	o.collector.IncCounter(stats.MetricOracleCalls, 1)

	err := o.next.Evaluate(ctx, req, fn)
	o.collector.ObserveHistogram(stats.MetricOracleSeconds, time.Since(start).Seconds())

	switch {
	case err == nil:
	case model.IsCancelled(err):
		o.logger.Debug("evaluation cancelled", zap.String("fen", req.FEN), zap.Int("depth", req.Depth))
	default:
		o.collector.IncCounter(stats.MetricOracleErrors, 1)
		o.logger.Warn("evaluation failed",
			zap.String("fen", req.FEN),
			zap.Int("depth", req.Depth),
			zap.Error(err),
		)
	}
	return err
}

func (o *instrumented) Close() error {
	return o.next.Close()
}
