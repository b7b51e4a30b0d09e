// Package builder turns a lichess evaluation export into an evaluation
// database: FEN-sorted JSONL shards plus a manifest, written to a store.
package builder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Melvud/ChessAnalysis-sub000/internal/fen"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/evaldb"
	"github.com/Melvud/ChessAnalysis-sub000/internal/shard"
	"github.com/Melvud/ChessAnalysis-sub000/internal/shard/materialshard"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
)

const (
	// DefaultTotalShards is the default number of shards to create.
	DefaultTotalShards = 4096

	// DefaultSource names the lichess evaluation export.
	DefaultSource = "https://database.lichess.org/lichess_db_eval.jsonl.zst"
)

// ErrEmptySource is returned when the source holds no usable record.
var ErrEmptySource = errors.New("builder: no records in source")

// Builder builds an evaluation database into a store.
type Builder struct {
	store       store.Store
	totalShards int
	strategy    shard.Strategy
	progress    ProgressFunc
	source      string
	codec       string
	tempDir     string
	maxMemoryMB int
	workers     int
	logger      *zap.Logger
}

// Option configures the Builder.
type Option func(*Builder)

// WithTotalShards sets the number of shards.
func WithTotalShards(n int) Option {
	return func(b *Builder) { b.totalShards = n }
}

// WithStrategy sets the sharding strategy.
func WithStrategy(s shard.Strategy) Option {
	return func(b *Builder) { b.strategy = s }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(b *Builder) { b.progress = fn }
}

// WithSource records where the data came from in the manifest.
func WithSource(source string) Option {
	return func(b *Builder) { b.source = source }
}

// WithCodecName records the store's codec in the manifest.
func WithCodecName(name string) Option {
	return func(b *Builder) { b.codec = name }
}

// WithTempDir sets the directory for spilled records.
func WithTempDir(dir string) Option {
	return func(b *Builder) { b.tempDir = dir }
}

// WithMaxMemoryMB bounds the records held in memory before spilling.
func WithMaxMemoryMB(mb int) Option {
	return func(b *Builder) { b.maxMemoryMB = mb }
}

// WithWorkers sets the number of shards written concurrently.
func WithWorkers(n int) Option {
	return func(b *Builder) { b.workers = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// New creates a Builder writing into st.
func New(st store.Store, opts ...Option) *Builder {
	b := &Builder{
		store:       st,
		totalShards: DefaultTotalShards,
		strategy:    materialshard.New(),
		source:      DefaultSource,
		maxMemoryMB: 2048,
		workers:     4,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Named("builder")
	return b
}

// BuildFromFile builds the database from a local JSONL file, decoding it
// with zstd when its name ends in ".zst".
func (b *Builder) BuildFromFile(ctx context.Context, path string) (*evaldb.Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source file: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if filepath.Ext(path) == ".zst" {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return b.Build(ctx, r)
}

// Build reads lichess-format JSONL records from r, groups them into
// shards, sorts each shard by normalized FEN and writes the shards and the
// manifest to the store.
func (b *Builder) Build(ctx context.Context, r io.Reader) (*evaldb.Manifest, error) {
	start := time.Now()
	if b.totalShards < 1 {
		return nil, fmt.Errorf("builder: invalid shard count %d", b.totalShards)
	}

	tempDir := b.tempDir
	if tempDir == "" {
		dir, err := os.MkdirTemp("", "evaldb-build-*")
		if err != nil {
			return nil, fmt.Errorf("creating temp directory: %w", err)
		}
		tempDir = dir
		defer os.RemoveAll(dir)
	}

	tracker := newMemoryTracker(b.maxMemoryMB)
	collectors := make([]*shardCollector, b.totalShards)
	for i := range collectors {
		collectors[i] = newShardCollector(i, tempDir, tracker)
	}
	tracker.collectors = collectors

	var bytesRead atomic.Int64
	scanner := bufio.NewScanner(newProgressReader(r, &bytesRead))
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	b.report(Progress{Phase: PhaseRead, StartTime: start})
	var recordsRead, skipped int64
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, key, ok := normalizeRecord(scanner.Bytes())
		if !ok {
			skipped++
			continue
		}
		id := b.strategy.ShardID(key, b.totalShards)
		if err := collectors[id].Add(line); err != nil {
			return nil, fmt.Errorf("adding to shard %d: %w", id, err)
		}
		recordsRead++
		if recordsRead%100000 == 0 {
			b.report(Progress{Phase: PhaseRead, RecordsRead: recordsRead, BytesRead: bytesRead.Load(), StartTime: start})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	if recordsRead == 0 {
		return nil, ErrEmptySource
	}
	if skipped > 0 {
		b.logger.Warn("skipped unusable records", zap.Int64("count", skipped))
	}

	b.report(Progress{Phase: PhaseShard, RecordsRead: recordsRead, ShardsTotal: b.totalShards, StartTime: start})

	var (
		mu             sync.Mutex
		recordsWritten int64
		shardsCreated  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.workers, 1))
	for _, c := range collectors {
		if c.Count() == 0 {
			continue
		}
		g.Go(func() error {
			n, err := b.writeShard(gctx, c)
			if err != nil {
				return fmt.Errorf("writing shard %d: %w", c.shardID, err)
			}
			mu.Lock()
			defer mu.Unlock()
			recordsWritten += int64(n)
			shardsCreated++
			b.report(Progress{
				Phase:          PhaseShard,
				RecordsRead:    recordsRead,
				RecordsWritten: recordsWritten,
				ShardsCreated:  shardsCreated,
				ShardsTotal:    b.totalShards,
				StartTime:      start,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &evaldb.Manifest{
		Version:     1,
		TotalShards: b.totalShards,
		Strategy:    b.strategy.Name(),
		RecordCount: recordsWritten,
		ShardCount:  shardsCreated,
		BuiltAt:     time.Now().UTC(),
		Source:      b.source,
		Codec:       b.codec,
	}
	if err := evaldb.WriteManifest(ctx, b.store, m); err != nil {
		return nil, err
	}

	b.report(Progress{
		Phase:          PhaseDone,
		RecordsRead:    recordsRead,
		RecordsWritten: recordsWritten,
		ShardsCreated:  shardsCreated,
		ShardsTotal:    b.totalShards,
		BytesRead:      bytesRead.Load(),
		StartTime:      start,
	})
	b.logger.Info("built evaluation database",
		zap.Int64("records", recordsWritten),
		zap.Int("shards", shardsCreated),
		zap.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

// writeShard sorts a shard by FEN, drops duplicate positions and stores it.
func (b *Builder) writeShard(ctx context.Context, c *shardCollector) (int, error) {
	records, err := c.GetAll()
	if err != nil {
		return 0, err
	}
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = evaldb.ExtractFEN(r)
	}
	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return keys[idx[i]] < keys[idx[j]] })

	var size int
	for _, r := range records {
		size += len(r) + 1
	}
	data := make([]byte, 0, size)
	written := 0
	for n, i := range idx {
		if n > 0 && keys[i] == keys[idx[n-1]] {
			continue
		}
		data = append(append(data, records[i]...), '\n')
		written++
	}
	if err := b.store.Put(ctx, shard.Key(c.shardID), data); err != nil {
		return 0, err
	}
	return written, nil
}

func (b *Builder) report(p Progress) {
	if b.progress != nil {
		b.progress(p)
	}
}

// normalizeRecord returns the line with its FEN reduced to the four
// position fields, and that FEN. Lines already in that form are returned
// as is.
func normalizeRecord(line []byte) ([]byte, string, bool) {
	raw := evaldb.ExtractFEN(line)
	if raw == "" {
		return nil, "", false
	}
	key, err := fen.Normalize(raw)
	if err != nil {
		return nil, "", false
	}
	if key == raw {
		return line, key, true
	}
	var rec evaldb.Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, "", false
	}
	rec.FEN = key
	out, err := json.Marshal(rec)
	if err != nil {
		return nil, "", false
	}
	return out, key, true
}
