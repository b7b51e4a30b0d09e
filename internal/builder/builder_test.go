package builder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Melvud/ChessAnalysis-sub000/internal/codec"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/evaldb"
	"github.com/Melvud/ChessAnalysis-sub000/internal/shard/fnvshard"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/diskstore"
	"github.com/Melvud/ChessAnalysis-sub000/internal/store/memstore"
)

const sourceJSONL = `{"fen":"8/8/8/4k3/8/8/4K3/4R3 w - -","evals":[{"pvs":[{"mate":12,"line":"e1e2"}],"knodes":1,"depth":40}]}
{"fen":"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1","evals":[{"pvs":[{"cp":20,"line":"e2e4 e7e5"},{"cp":15,"line":"d2d4"}],"knodes":100,"depth":24}]}
not json at all
{"fen":"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq -","evals":[{"pvs":[{"cp":25,"line":"c7c5"}],"knodes":200,"depth":30}]}
{"fen":"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -","evals":[{"pvs":[{"cp":99,"line":"a2a3"}],"knodes":1,"depth":5}]}
`

func TestNormalizeRecord(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantKey string
		wantOK  bool
		same    bool
	}{
		{"four fields kept", `{"fen":"8/8/8/8/8/8/8/8 w - -","evals":[]}`, "8/8/8/8/8/8/8/8 w - -", true, true},
		{"counters stripped", `{"fen":"8/8/8/8/8/8/8/8 w - - 3 9","evals":[]}`, "8/8/8/8/8/8/8/8 w - -", true, false},
		{"no fen", `{"other":"value"}`, "", false, false},
		{"bad fen", `{"fen":"xyz","evals":[]}`, "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, key, ok := normalizeRecord([]byte(tt.line))
			if ok != tt.wantOK || key != tt.wantKey {
				t.Fatalf("normalizeRecord() = %q, %v; want %q, %v", key, ok, tt.wantKey, tt.wantOK)
			}
			if !ok {
				return
			}
			if got := evaldb.ExtractFEN(line); got != tt.wantKey {
				t.Errorf("rewritten line has fen %q", got)
			}
			if same := string(line) == tt.line; same != tt.same {
				t.Errorf("line rewritten = %v, want %v", !same, !tt.same)
			}
		})
	}
}

func TestBuild_Lookup(t *testing.T) {
	st := memstore.New()
	var mu sync.Mutex
	phases := map[string]bool{}
	b := New(st,
		WithTotalShards(8),
		WithWorkers(2),
		WithTempDir(t.TempDir()),
		WithSource("test"),
		WithCodecName("none"),
		WithProgress(func(p Progress) {
			mu.Lock()
			phases[p.Phase] = true
			mu.Unlock()
		}),
	)

	m, err := b.Build(context.Background(), strings.NewReader(sourceJSONL))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	// The two start-position records collapse into the first one.
	if m.RecordCount != 3 || m.TotalShards != 8 || m.Source != "test" {
		t.Errorf("manifest = %+v", m)
	}
	for _, p := range []string{PhaseRead, PhaseShard, PhaseDone} {
		if !phases[p] {
			t.Errorf("missing %q progress phase", p)
		}
	}

	db, err := evaldb.Open(context.Background(), st)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	batch, err := oracle.Last(context.Background(), db, oracle.Request{
		FEN:     "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		Depth:   20,
		MultiPV: 2,
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(batch.Lines) != 2 || *batch.Lines[0].CP != 20 || batch.Lines[1].PV[0] != "d2d4" {
		t.Errorf("batch = %+v", batch)
	}

	batch, err = oracle.Last(context.Background(), db, oracle.Request{
		FEN:     "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
		Depth:   20,
		MultiPV: 1,
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if *batch.Lines[0].CP != -25 {
		t.Errorf("black to move CP = %d, want -25", *batch.Lines[0].CP)
	}
}

func TestBuildFromFile_Zstd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evals.jsonl.zst")
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, enc.EncodeAll([]byte(sourceJSONL), nil), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := diskstore.New(filepath.Join(dir, "db"), codec.Zstd())
	if err != nil {
		t.Fatal(err)
	}
	m, err := New(st, WithTotalShards(4), WithStrategy(fnvshard.New())).BuildFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("BuildFromFile() error = %v", err)
	}
	if m.Strategy != fnvshard.Name || m.ShardCount == 0 {
		t.Errorf("manifest = %+v", m)
	}
	got, err := evaldb.ReadManifest(context.Background(), st)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if got.RecordCount != m.RecordCount || !got.BuiltAt.Equal(m.BuiltAt) {
		t.Errorf("stored manifest = %+v, want %+v", got, m)
	}
}

func TestBuild_Errors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(memstore.New(), WithTotalShards(4)).Build(ctx, strings.NewReader(sourceJSONL))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Build(cancelled) error = %v, want context.Canceled", err)
	}

	_, err = New(memstore.New()).Build(context.Background(), strings.NewReader("garbage\n\n"))
	if !errors.Is(err, ErrEmptySource) {
		t.Errorf("Build(garbage) error = %v, want ErrEmptySource", err)
	}

	_, err = New(memstore.New(), WithTotalShards(0)).Build(context.Background(), strings.NewReader(sourceJSONL))
	if err == nil {
		t.Error("Build() with zero shards should fail")
	}

	if _, err := New(memstore.New()).BuildFromFile(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("BuildFromFile(missing) should fail")
	}
}

func TestShardCollector_CopiesData(t *testing.T) {
	tracker := newMemoryTracker(1024)
	c := newShardCollector(0, "", tracker)
	tracker.collectors = []*shardCollector{c}

	original := []byte(`{"fen":"test"}`)
	if err := c.Add(original); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	original[0] = 'X'

	records, err := c.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	if records[0][0] == 'X' {
		t.Error("collector should copy records")
	}
}

func TestShardCollector_Spill(t *testing.T) {
	tracker := newMemoryTracker(0)
	tracker.maxBytes = 100
	c := newShardCollector(0, t.TempDir(), tracker)
	tracker.collectors = []*shardCollector{c}

	records := [][]byte{
		[]byte(`{"fen":"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -","evals":[]}`),
		[]byte(`{"fen":"r1bqkbnr/pppppppp/n7/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -","evals":[]}`),
		[]byte(`{"fen":"8/8/8/8/8/8/8/8 w - -","evals":[]}`),
	}
	for _, r := range records {
		if err := c.Add(r); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if c.spillPath == "" {
		t.Fatal("expected a spill")
	}
	if c.Count() != 3 {
		t.Errorf("Count() = %d, want 3", c.Count())
	}
	got, err := c.GetAll()
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("GetAll() returned %d records, want 3", len(got))
	}
	for i := range records {
		if !bytes.Equal(got[i], records[i]) {
			t.Errorf("record %d = %q, want %q", i, got[i], records[i])
		}
	}
}

func TestMemoryTracker_SpillsLargest(t *testing.T) {
	dir := t.TempDir()
	tracker := newMemoryTracker(0)
	tracker.maxBytes = 500

	c1 := newShardCollector(0, dir, tracker)
	c2 := newShardCollector(1, dir, tracker)
	tracker.collectors = []*shardCollector{c1, c2}
	for i := 0; i < 10; i++ {
		c1.records = append(c1.records, []byte(`{"fen":"a"}`))
		c1.memoryBytes += 50
	}
	for i := 0; i < 3; i++ {
		c2.records = append(c2.records, []byte(`{"fen":"b"}`))
		c2.memoryBytes += 50
	}
	tracker.totalBytes = c1.memoryBytes + c2.memoryBytes

	if err := tracker.spill(); err != nil {
		t.Fatalf("spill() error = %v", err)
	}
	if c1.spillPath == "" || c2.spillPath != "" {
		t.Errorf("spilled c1=%q c2=%q, want only c1", c1.spillPath, c2.spillPath)
	}
	if tracker.totalBytes != c2.memoryBytes {
		t.Errorf("totalBytes = %d, want %d", tracker.totalBytes, c2.memoryBytes)
	}
}

func TestProgressReader(t *testing.T) {
	var counter atomic.Int64
	pr := newProgressReader(bytes.NewReader([]byte("hello world")), &counter)
	buf := make([]byte, 5)
	if n, err := pr.Read(buf); err != nil || n != 5 {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	if counter.Load() != 5 {
		t.Errorf("counter = %d, want 5", counter.Load())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatBytes(tt.bytes); got != tt.want {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		dur  time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{3661 * time.Second, "1h 1m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.dur); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.dur, got, tt.want)
			}
		})
	}
}

func TestTextProgress(t *testing.T) {
	var buf bytes.Buffer
	fn := TextProgress(&buf)
	fn(Progress{Phase: PhaseShard, ShardsCreated: 2, ShardsTotal: 8, RecordsWritten: 10})
	fn(Progress{Phase: PhaseDone, ShardsCreated: 2, RecordsWritten: 10, StartTime: time.Now()})
	out := buf.String()
	if !strings.Contains(out, "[Shard] 2 / 8 shards, 10 records") || !strings.Contains(out, "[Done] 10 records in 2 shards") {
		t.Errorf("output = %q", out)
	}
}
