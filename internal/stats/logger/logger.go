// Package logger provides a stats collector that writes every measurement
// to a zap logger, for running without a metrics backend.
package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
)

// failures are counters logged at warn level.
var failures = map[string]bool{
	stats.MetricOracleErrors:     true,
	stats.MetricAnalysisFailures: true,
}

// Collector logs measurements at debug level, failure counters at warn.
// Histograms of seconds are logged as durations.
type Collector struct {
	logger *zap.Logger
}

var _ stats.Collector = (*Collector)(nil)

// New returns a collector logging to logger. A nil logger discards.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{logger: logger.Named("stats")}
}

func (c *Collector) IncCounter(name string, delta int64) {
	level := zapcore.DebugLevel
	if failures[name] {
		level = zapcore.WarnLevel
	}
	c.log(level, "counter", name, zap.Int64("delta", delta))
}

func (c *Collector) SetGauge(name string, value int64) {
	c.log(zapcore.DebugLevel, "gauge", name, zap.Int64("value", value))
}

func (c *Collector) ObserveHistogram(name string, value float64) {
	f := zap.Float64("value", value)
	if strings.HasSuffix(name, "_seconds") {
		f = zap.Duration("value", time.Duration(value*float64(time.Second)))
	}
	c.log(zapcore.DebugLevel, "histogram", name, f)
}

func (c *Collector) log(level zapcore.Level, kind, name string, value zap.Field) {
	if ce := c.logger.Check(level, kind); ce != nil {
		ce.Write(zap.String("metric", name), zap.String("help", stats.Help(name)), value)
	}
}
