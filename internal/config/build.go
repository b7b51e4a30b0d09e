package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000"
	"github.com/Melvud/ChessAnalysis-sub000/internal/codec"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/evaldb"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/uciengine"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/cachedstore"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/cachedstore/memory"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/diskstore"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/gcsstore"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/memstore"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/redisstore"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/s3store"
)

// NewLogger builds the process logger.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = level
	}
	return zc.Build()
}

// OpenStore opens the store described by s. A disk store directory is
// created when create is set.
func OpenStore(ctx context.Context, s StoreConfig, create bool) (store.Store, error) {
	c, err := codec.ByName(s.Codec)
	if err != nil {
		return nil, err
	}
	switch s.Backend {
	case BackendMemory:
		return memstore.New(), nil
	case BackendDisk:
		if create {
			if err := os.MkdirAll(s.Dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", s.Dir, err)
			}
		}
		return diskstore.New(s.Dir, c)
	case BackendGCS:
		return gcsstore.New(ctx, s.Bucket, c, gcsstore.WithPrefix(s.Prefix))
	case BackendS3:
		opts := []s3store.Option{s3store.WithPrefix(s.Prefix)}
		switch {
		case s.Endpoint != "":
			opts = append(opts, s3store.WithEndpoint(s.Endpoint))
		case s.Region != "":
			opts = append(opts, s3store.WithRegion(s.Region))
		}
		return s3store.New(ctx, s.Bucket, c, opts...)
	case BackendRedis:
		return redisstore.New(ctx, s.RedisAddr, c,
			redisstore.WithPrefix(s.Prefix),
			redisstore.WithPassword(s.RedisPassword),
			redisstore.WithDB(s.RedisDB),
			redisstore.WithTTL(s.TTL),
		)
	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}

// OpenEvalDB opens the evaluation database. Shards read from a remote
// store are kept in an LRU of s.Size entries.
func OpenEvalDB(ctx context.Context, s StoreConfig, logger *zap.Logger, collector stats.Collector) (*evaldb.Oracle, error) {
	st, err := OpenStore(ctx, s, false)
	if err != nil {
		return nil, fmt.Errorf("opening evaldb store: %w", err)
	}
	if s.Size > 0 {
		backend, err := memory.New(s.Size, collector)
		if err != nil {
			st.Close()
			return nil, err
		}
		st = cachedstore.New(st, backend)
	}
	db, err := evaldb.Open(ctx, st, evaldb.WithLogger(logger), evaldb.WithStats(collector))
	if err != nil {
		st.Close()
		return nil, err
	}
	return db, nil
}

// StartEngine starts the configured UCI engine.
func StartEngine(ctx context.Context, o OracleConfig, logger *zap.Logger) (*uciengine.Engine, error) {
	opts := []uciengine.Option{
		uciengine.WithArgs(o.EngineArgs...),
		uciengine.WithLogger(logger),
	}
	if o.Threads > 0 {
		opts = append(opts, uciengine.WithThreads(o.Threads))
	}
	if o.HashMB > 0 {
		opts = append(opts, uciengine.WithHash(o.HashMB))
	}
	if o.HandshakeTimeout > 0 {
		opts = append(opts, uciengine.WithHandshakeTimeout(o.HandshakeTimeout))
	}
	return uciengine.New(ctx, o.EnginePath, opts...)
}

// ClientOptions opens the oracle and report store named by c and returns
// the options of a client using them. On error nothing is left open.
func (c *Config) ClientOptions(ctx context.Context, logger *zap.Logger, collector stats.Collector) ([]chessanalysis.Option, error) {
	opts := []chessanalysis.Option{
		chessanalysis.WithDepth(c.Analysis.Depth),
		chessanalysis.WithMultiPV(c.Analysis.MultiPV),
		chessanalysis.WithTrackerSize(c.Server.Trackers),
		chessanalysis.WithLogger(logger),
		chessanalysis.WithStats(collector),
	}
	if !c.Analysis.Book {
		opts = append(opts, chessanalysis.WithOpeningBook(nil))
	}

	var opened []interface{ Close() error }
	fail := func(err error) ([]chessanalysis.Option, error) {
		var errs []error
		for _, r := range opened {
			if cerr := r.Close(); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		return nil, errors.Join(append([]error{err}, errs...)...)
	}

	if c.Oracle.Mode == ModeEvalDB || c.Oracle.Mode == ModeHybrid {
		db, err := OpenEvalDB(ctx, c.EvalDB, logger, collector)
		if err != nil {
			return fail(err)
		}
		opened = append(opened, db)
		opts = append(opts, chessanalysis.WithEvalDB(db))
	}
	if c.Oracle.Mode == ModeEngine || c.Oracle.Mode == ModeHybrid {
		eng, err := StartEngine(ctx, c.Oracle, logger)
		if err != nil {
			return fail(err)
		}
		opened = append(opened, eng)
		opts = append(opts, chessanalysis.WithOracle(eng))
	}

	if c.Cache.Backend == BackendMemory {
		opts = append(opts, chessanalysis.WithCacheSize(c.Cache.Size))
		return opts, nil
	}
	st, err := OpenStore(ctx, c.Cache, true)
	if err != nil {
		return fail(fmt.Errorf("opening report cache: %w", err))
	}
	return append(opts, chessanalysis.WithStore(st)), nil
}

// NewClient builds a client from c.
func (c *Config) NewClient(ctx context.Context, logger *zap.Logger, collector stats.Collector) (*chessanalysis.Client, error) {
	opts, err := c.ClientOptions(ctx, logger, collector)
	if err != nil {
		return nil, err
	}
	return chessanalysis.New(opts...)
}
