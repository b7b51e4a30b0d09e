package memory

import (
	"testing"

	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
)

type countingCollector struct {
	stats.Noop
	counters map[string]int64
	gauges   map[string]int64
}

func newCountingCollector() *countingCollector {
	return &countingCollector{counters: map[string]int64{}, gauges: map[string]int64{}}
}

func (c *countingCollector) IncCounter(name string, delta int64) { c.counters[name] += delta }
func (c *countingCollector) SetGauge(name string, value int64)   { c.gauges[name] = value }

func TestBackend_GetSet(t *testing.T) {
	b, err := New(10, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, ok := b.Get("a"); ok {
		t.Error("Get() should return false for missing key")
	}

	b.Set("a", []byte("hello"))
	data, ok := b.Get("a")
	if !ok {
		t.Fatal("Get() should return true after Set")
	}
	if string(data) != "hello" {
		t.Errorf("Get() = %q, want %q", data, "hello")
	}

	b.Remove("a")
	if _, ok := b.Get("a"); ok {
		t.Error("Get() should return false after Remove")
	}
}

func TestBackend_Eviction(t *testing.T) {
	b, err := New(2, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	b.Set("a", []byte("1"))
	b.Set("b", []byte("2"))
	b.Get("a") // a is now most recently used
	b.Set("c", []byte("3"))

	if _, ok := b.Get("b"); ok {
		t.Error("least recently used entry b should have been evicted")
	}
	if _, ok := b.Get("a"); !ok {
		t.Error("entry a should survive eviction")
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
}

func TestBackend_Stats(t *testing.T) {
	collector := newCountingCollector()
	b, err := New(10, collector)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	b.Set("a", []byte("data"))
	b.Get("a")
	b.Get("a")
	b.Get("missing")

	s := b.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("Stats() = %+v, want 2 hits, 1 miss, size 1", s)
	}
	if collector.counters[stats.MetricStoreCacheHits] != 2 {
		t.Errorf("hit counter = %d, want 2", collector.counters[stats.MetricStoreCacheHits])
	}
	if collector.gauges[stats.MetricStoreCacheSize] != 1 {
		t.Errorf("size gauge = %d, want 1", collector.gauges[stats.MetricStoreCacheSize])
	}
}

func TestNew_InvalidCapacity(t *testing.T) {
	if _, err := New(0, nil); err == nil {
		t.Error("New(0) expected error")
	}
}
