package evaldb

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/shard"
	"github.com/Melvud/ChessAnalysis-sub000/internal/shard/materialshard"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/memstore"
)

const (
	startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -"
	afterE4  = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq -"
)

type countingCollector struct {
	stats.Noop
	mu       sync.Mutex
	counters map[string]int64
}

func (c *countingCollector) IncCounter(name string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counters == nil {
		c.counters = make(map[string]int64)
	}
	c.counters[name] += delta
}

func (c *countingCollector) get(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// writeDB lays records out the way the builder does.
func writeDB(t testing.TB, st store.Store, totalShards int, records ...Record) {
	t.Helper()
	ctx := context.Background()
	strategy := materialshard.New()

	shards := make(map[int][]Record)
	for _, r := range records {
		id := strategy.ShardID(r.FEN, totalShards)
		shards[id] = append(shards[id], r)
	}
	for id, recs := range shards {
		sort.Slice(recs, func(i, j int) bool { return recs[i].FEN < recs[j].FEN })
		var data []byte
		for _, r := range recs {
			line, err := json.Marshal(r)
			if err != nil {
				t.Fatal(err)
			}
			data = append(append(data, line...), '\n')
		}
		if err := st.Put(ctx, shard.Key(id), data); err != nil {
			t.Fatal(err)
		}
	}
	m := &Manifest{
		Version:     1,
		TotalShards: totalShards,
		Strategy:    strategy.Name(),
		RecordCount: int64(len(records)),
		ShardCount:  len(shards),
		BuiltAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Codec:       "none",
	}
	if err := WriteManifest(ctx, st, m); err != nil {
		t.Fatal(err)
	}
}

func testRecords() []Record {
	return []Record{
		{FEN: startFEN, Evals: []Eval{{
			Depth: 36,
			PVs: []PV{
				{CP: model.Int(18), Line: "e2e4 e7e5 g1f3"},
				{CP: model.Int(15), Line: "d2d4 g8f6"},
				{CP: model.Int(12), Line: "g1f3 d7d5"},
			},
		}}},
		{FEN: afterE4, Evals: []Eval{
			{Depth: 30, PVs: []PV{{CP: model.Int(21), Line: "c7c5 g1f3"}}},
			{Depth: 12, PVs: []PV{{Mate: model.Int(4), Line: "e7e5"}, {CP: model.Int(40), Line: "d7d5"}}},
		}},
	}
}

func openTestDB(t *testing.T, opts ...Option) *Oracle {
	t.Helper()
	st := memstore.New()
	writeDB(t, st, 64, testRecords()...)
	o, err := Open(context.Background(), st, opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { o.Close() })
	return o
}

func TestOpen_Manifest(t *testing.T) {
	o := openTestDB(t)
	m := o.Manifest()
	if m.TotalShards != 64 || m.Strategy != materialshard.Name || m.RecordCount != 2 {
		t.Errorf("Manifest() = %+v", m)
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := Open(ctx, memstore.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Open(empty) error = %v, want store.ErrNotFound", err)
	}

	st := memstore.New()
	if err := WriteManifest(ctx, st, &Manifest{TotalShards: 8, Strategy: "bogus"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(ctx, st); !errors.Is(err, shard.ErrUnknownStrategy) {
		t.Errorf("Open(bogus strategy) error = %v, want ErrUnknownStrategy", err)
	}
}

func TestEvaluate(t *testing.T) {
	o := openTestDB(t)

	tests := []struct {
		name      string
		req       oracle.Request
		wantDepth int
		wantCP    []int
		wantMate  []int
		wantPV0   string
	}{
		{
			name:      "white to move keeps sign",
			req:       oracle.Request{FEN: startFEN + " 0 1", Depth: 20, MultiPV: 2},
			wantDepth: 36,
			wantCP:    []int{18, 15},
			wantPV0:   "e2e4",
		},
		{
			name:      "black to move is negated",
			req:       oracle.Request{FEN: afterE4 + " 0 1", Depth: 20, MultiPV: 1},
			wantDepth: 30,
			wantCP:    []int{-21},
			wantPV0:   "c7c5",
		},
		{
			name:      "en passant square retried without it",
			req:       oracle.Request{FEN: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", Depth: 10, MultiPV: 2},
			wantDepth: 12,
			wantMate:  []int{-4},
			wantPV0:   "e7e5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var batches []oracle.Batch
			err := o.Evaluate(context.Background(), tt.req, func(b oracle.Batch) {
				batches = append(batches, b)
			})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if len(batches) != 1 || !batches[0].Final {
				t.Fatalf("got %d batches, want one final batch", len(batches))
			}
			b := batches[0]
			if b.Depth != tt.wantDepth {
				t.Errorf("Depth = %d, want %d", b.Depth, tt.wantDepth)
			}
			if b.Lines[0].PV[0] != tt.wantPV0 {
				t.Errorf("PV[0] = %q, want %q", b.Lines[0].PV[0], tt.wantPV0)
			}
			for i, cp := range tt.wantCP {
				if b.Lines[i].CP == nil || *b.Lines[i].CP != cp {
					t.Errorf("line %d CP = %v, want %d", i, b.Lines[i].CP, cp)
				}
				if b.Lines[i].MultiPV != i+1 {
					t.Errorf("line %d MultiPV = %d", i, b.Lines[i].MultiPV)
				}
			}
			if tt.wantCP != nil && len(b.Lines) != len(tt.wantCP) {
				t.Errorf("got %d lines, want %d", len(b.Lines), len(tt.wantCP))
			}
			for i, m := range tt.wantMate {
				if b.Lines[i].Mate == nil || *b.Lines[i].Mate != m {
					t.Errorf("line %d Mate = %v, want %d", i, b.Lines[i].Mate, m)
				}
			}
		})
	}
}

func TestEvaluate_Misses(t *testing.T) {
	collector := &countingCollector{}
	o := openTestDB(t, WithStats(collector))

	tests := []struct {
		name string
		req  oracle.Request
		want error
	}{
		{"shallow", oracle.Request{FEN: afterE4, Depth: 31, MultiPV: 1}, ErrShallow},
		{"not stored", oracle.Request{FEN: "8/8/8/4k3/8/8/4K3/4R3 w - - 0 1", Depth: 10, MultiPV: 1}, ErrNotFound},
		{"invalid", oracle.Request{FEN: startFEN, Depth: 0, MultiPV: 1}, oracle.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := o.Evaluate(context.Background(), tt.req, func(oracle.Batch) {
				t.Error("unexpected batch")
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Evaluate() error = %v, want %v", err, tt.want)
			}
			var oe *oracle.Error
			if !errors.As(err, &oe) || oe.Op != "lookup" {
				t.Errorf("Evaluate() error = %#v, want *oracle.Error", err)
			}
		})
	}

	if got := collector.get(stats.MetricEvalDBMisses); got != 2 {
		t.Errorf("misses = %d, want 2", got)
	}
	if got := collector.get(stats.MetricEvalDBHits); got != 0 {
		t.Errorf("hits = %d, want 0", got)
	}
}

func TestEvaluate_Cancelled(t *testing.T) {
	o := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.Evaluate(ctx, oracle.Request{FEN: startFEN, Depth: 10, MultiPV: 1}, func(oracle.Batch) {})
	if !errors.Is(err, model.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want cancellation", err)
	}
}
