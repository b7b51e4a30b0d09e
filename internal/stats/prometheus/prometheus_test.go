package prometheus

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
)

func TestNew_DefaultRegistry(t *testing.T) {
	c := New(nil)
	if c.registry == nil {
		t.Error("registry should not be nil")
	}
}

func findMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestCollector_IncCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.IncCounter(stats.MetricOracleCalls, 5)
	c.IncCounter(stats.MetricOracleCalls, 3)

	f := findMetric(t, reg, stats.MetricOracleCalls)
	if got := f.GetMetric()[0].GetCounter().GetValue(); got != 8 {
		t.Errorf("counter value = %v, want 8", got)
	}
	if f.GetHelp() != stats.Help(stats.MetricOracleCalls) {
		t.Errorf("help = %q", f.GetHelp())
	}
}

func TestCollector_SetGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.SetGauge(stats.MetricActiveAnalyses, 4)
	c.SetGauge(stats.MetricActiveAnalyses, 2)

	f := findMetric(t, reg, stats.MetricActiveAnalyses)
	if got := f.GetMetric()[0].GetGauge().GetValue(); got != 2 {
		t.Errorf("gauge value = %v, want 2", got)
	}
}

func TestCollector_ObserveHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveHistogram(stats.MetricAnalysisDuration, 0.5)
	c.ObserveHistogram(stats.MetricAnalysisDuration, 42)

	f := findMetric(t, reg, stats.MetricAnalysisDuration)
	h := f.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() != 42.5 {
		t.Errorf("sample sum = %v, want 42.5", h.GetSampleSum())
	}
}

func TestCollector_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg)
	b := New(reg)

	a.IncCounter(stats.MetricCacheHits, 1)
	b.IncCounter(stats.MetricCacheHits, 1)

	f := findMetric(t, reg, stats.MetricCacheHits)
	if got := f.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("counter value = %v, want 2 across collectors", got)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).IncCounter(stats.MetricAnalyses, 1)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), stats.MetricAnalyses+" 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}
