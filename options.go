package chessanalysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/codec"
	"github.com/Melvud/ChessAnalysis-sub000/internal/openings"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/evaldb"
	"github.com/Melvud/ChessAnalysis-sub000/internal/reportcache"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/diskstore"
)

// Option configures a Client.
type Option interface {
	apply(*options)
}

// options holds the client configuration.
type options struct {
	oracle      oracle.Oracle
	evalDB      oracle.Oracle
	cache       reportcache.Cache
	store       store.Store
	cacheSize   int
	depth       int
	multiPV     int
	book        *openings.Book
	trackerSize int
	stats       stats.Collector
	logger      *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		cacheSize:   DefaultCacheSize,
		depth:       DefaultDepth,
		multiPV:     DefaultMultiPV,
		book:        openings.Default(),
		trackerSize: 1024,
		stats:       stats.NewNoop(),
		logger:      zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithOracle sets the engine that evaluates positions. The client takes
// ownership of o and closes it. When an evaluation database is also
// configured, the database is asked first.
func WithOracle(o oracle.Oracle) Option {
	return optionFunc(func(opts *options) {
		opts.oracle = o
	})
}

// WithCache sets the report cache. It takes precedence over WithStore.
func WithCache(c reportcache.Cache) Option {
	return optionFunc(func(o *options) {
		o.cache = c
	})
}

// WithStore keeps reports in s. If neither WithStore nor WithCache is
// set, reports are kept in an in-memory LRU.
func WithStore(s store.Store) Option {
	return optionFunc(func(o *options) {
		o.store = s
	})
}

// WithCacheSize sets the capacity of the default in-memory report cache.
func WithCacheSize(n int) Option {
	return optionFunc(func(o *options) {
		o.cacheSize = n
	})
}

// WithDepth sets the default search depth.
// Default is 14.
func WithDepth(d int) Option {
	return optionFunc(func(o *options) {
		o.depth = d
	})
}

// WithMultiPV sets the default number of lines per position.
// Default is 2.
func WithMultiPV(n int) Option {
	return optionFunc(func(o *options) {
		o.multiPV = n
	})
}

// WithOpeningBook sets the book used to recognize opening moves and name
// openings. A nil book disables both. Default is the ECO book.
func WithOpeningBook(b *openings.Book) Option {
	return optionFunc(func(o *options) {
		o.book = b
	})
}

// WithTrackerSize sets how many analyses the progress tracker remembers.
// Default is 1024.
func WithTrackerSize(n int) Option {
	return optionFunc(func(o *options) {
		o.trackerSize = n
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithEvalDB answers evaluations from a database built by the evaldb
// builder. Combined with WithOracle, positions missing from the database
// or stored too shallow go to the engine.
func WithEvalDB(db *evaldb.Oracle) Option {
	return optionFunc(func(o *options) {
		o.evalDB = db
	})
}

// manifestCodecs lists the codecs a database directory may be written
// with, most common first.
var manifestCodecs = []string{"zstd", "gzip", "none"}

// WithDataDir opens the evaluation database in dir. The manifest is
// compressed like the shards, so each known codec is tried in turn.
func WithDataDir(ctx context.Context, dir string) (Option, error) {
	var errs []error
	for _, name := range manifestCodecs {
		c, err := codec.ByName(name)
		if err != nil {
			return nil, err
		}
		st, err := diskstore.New(dir, c)
		if err != nil {
			return nil, fmt.Errorf("creating store: %w", err)
		}
		db, err := evaldb.Open(ctx, st)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if m := db.Manifest(); m.Codec != "" && m.Codec != c.Name() {
			return nil, fmt.Errorf("manifest in %s names codec %q but was read as %q", dir, m.Codec, c.Name())
		}
		return WithEvalDB(db), nil
	}
	return nil, fmt.Errorf("opening evaluation database in %s: %w", dir, errors.Join(errs...))
}
