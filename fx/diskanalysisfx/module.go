// Package diskanalysisfx provides an fx module for a client that keeps
// reports on disk and reads evaluations from a local database.
package diskanalysisfx

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000"
	"github.com/Melvud/ChessAnalysis-sub000/internal/codec"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/evaldb"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/uciengine"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats/logger"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/cachedstore"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/cachedstore/memory"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/diskstore"
)

// Config holds configuration for the disk-backed client.
type Config struct {
	// CacheDir is the directory reports are cached in. It is created if
	// missing.
	CacheDir string

	// DataDir is the directory containing a zstd evaluation database.
	// Optional when EnginePath is set.
	DataDir string

	// EnginePath is the UCI engine asked for positions the database
	// does not hold.
	EnginePath string

	// Depth is the default search depth. Zero keeps the client default.
	Depth int

	// ShardCacheSize is the number of database shards to cache in memory.
	// Default is 100.
	ShardCacheSize int
}

// Module provides a disk-backed analysis client.
// Requires a *zap.Logger and a Config to be provided.
var Module = fx.Module("diskanalysis",
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
	Lifecycle fx.Lifecycle
}

// Result holds the provided client.
type Result struct {
	fx.Out

	Client *chessanalysis.Client
}

func newClient(p Params) (Result, error) {
	cfg := p.Config
	if cfg.CacheDir == "" {
		return Result{}, errors.New("diskanalysisfx: cache directory is required")
	}
	if cfg.DataDir == "" && cfg.EnginePath == "" {
		return Result{}, errors.New("diskanalysisfx: a data directory or an engine path is required")
	}
	shardCache := cfg.ShardCacheSize
	if shardCache <= 0 {
		shardCache = 100
	}

	ctx := context.Background()
	opts := []chessanalysis.Option{
		chessanalysis.WithStats(p.Collector),
		chessanalysis.WithLogger(p.Logger.Named("chessanalysis")),
	}
	var opened []interface{ Close() error }
	fail := func(err error) (Result, error) {
		for _, c := range opened {
			c.Close()
		}
		return Result{}, err
	}

	if cfg.DataDir != "" {
		baseStore, err := diskstore.New(cfg.DataDir, codec.Zstd())
		if err != nil {
			return fail(err)
		}
		backend, err := memory.New(shardCache, p.Collector)
		if err != nil {
			return fail(err)
		}
		db, err := evaldb.Open(ctx, cachedstore.New(baseStore, backend),
			evaldb.WithLogger(p.Logger.Named("evaldb")),
			evaldb.WithStats(p.Collector),
		)
		if err != nil {
			return fail(fmt.Errorf("opening evaluation database: %w", err))
		}
		opened = append(opened, db)
		opts = append(opts, chessanalysis.WithEvalDB(db))
	}
	if cfg.EnginePath != "" {
		eng, err := uciengine.New(ctx, cfg.EnginePath, uciengine.WithLogger(p.Logger.Named("engine")))
		if err != nil {
			return fail(err)
		}
		opened = append(opened, eng)
		opts = append(opts, chessanalysis.WithOracle(eng))
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return fail(fmt.Errorf("creating %s: %w", cfg.CacheDir, err))
	}
	reports, err := diskstore.New(cfg.CacheDir, codec.Zstd())
	if err != nil {
		return fail(err)
	}
	opts = append(opts, chessanalysis.WithStore(reports))
	if cfg.Depth > 0 {
		opts = append(opts, chessanalysis.WithDepth(cfg.Depth))
	}

	client, err := chessanalysis.New(opts...)
	if err != nil {
		opened = append(opened, reports)
		return fail(err)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return Result{Client: client}, nil
}
