// Package memoryanalysisfx provides an fx module for a client that keeps
// reports in memory. Useful for testing.
package memoryanalysisfx

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/uciengine"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats/logger"
)

// Config holds configuration for the in-memory client.
type Config struct {
	// EnginePath is the UCI engine to start. Ignored when an Oracle is
	// provided.
	EnginePath string

	// Depth is the default search depth. Zero keeps the client default.
	Depth int

	// CacheSize is the number of reports kept.
	// Default is 256.
	CacheSize int
}

// Module provides an in-memory analysis client.
// Requires a *zap.Logger and a Config to be provided. An Oracle, if
// provided, is used instead of starting an engine.
var Module = fx.Module("memoryanalysis",
	fx.Provide(
		newStatsCollector,
		newClient,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("chessanalysis.stats"))
}

// Params holds dependencies for creating the client.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
	Oracle    chessanalysis.Oracle `optional:"true"`
	Lifecycle fx.Lifecycle
}

// Result holds the provided client.
type Result struct {
	fx.Out

	Client *chessanalysis.Client
}

func newClient(p Params) (Result, error) {
	o := p.Oracle
	if o == nil {
		if p.Config.EnginePath == "" {
			return Result{}, errors.New("memoryanalysisfx: no oracle provided and no engine path configured")
		}
		eng, err := uciengine.New(context.Background(), p.Config.EnginePath,
			uciengine.WithLogger(p.Logger.Named("engine")))
		if err != nil {
			return Result{}, err
		}
		o = eng
	}

	opts := []chessanalysis.Option{
		chessanalysis.WithOracle(o),
		chessanalysis.WithStats(p.Collector),
		chessanalysis.WithLogger(p.Logger.Named("chessanalysis")),
	}
	if p.Config.Depth > 0 {
		opts = append(opts, chessanalysis.WithDepth(p.Config.Depth))
	}
	if p.Config.CacheSize > 0 {
		opts = append(opts, chessanalysis.WithCacheSize(p.Config.CacheSize))
	}
	client, err := chessanalysis.New(opts...)
	if err != nil {
		o.Close()
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return Result{Client: client}, nil
}
