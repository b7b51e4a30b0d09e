package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Melvud/ChessAnalysis-sub000"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/oracletest"
	promstats "github.com/Melvud/ChessAnalysis-sub000/internal/stats/prometheus"
)

const scholars = `[Event "Casual game"]
[White "alice"]
[Black "bob"]
[Result "1-0"]

1. e4 e5 2. Bc4 Nc6 3. Qh5 Nf6 4. Qxf7# 1-0
`

const afterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"

type fixture struct {
	srv      *Server
	hs       *httptest.Server
	registry *prometheus.Registry
}

func newFixture(t *testing.T, fake *oracletest.Fake, opts ...Option) *fixture {
	t.Helper()
	registry := prometheus.NewRegistry()
	client, err := chessanalysis.New(
		chessanalysis.WithOracle(fake),
		chessanalysis.WithOpeningBook(nil),
		chessanalysis.WithDepth(6),
		chessanalysis.WithStats(promstats.New(registry)),
	)
	if err != nil {
		t.Fatalf("chessanalysis.New() error = %v", err)
	}
	srv := New(client, append([]Option{WithGatherer(registry)}, opts...)...)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		srv.Close()
		client.Close()
	})
	return &fixture{srv: srv, hs: hs, registry: registry}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.hs.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := f.hs.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

// waitForStage polls the progress of id until it is terminal.
func (f *fixture) waitForStage(t *testing.T, id string) chessanalysis.AnalysisSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, data := f.do(t, http.MethodGet, "/v1/analyses/"+id, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET progress status = %d: %s", resp.StatusCode, data)
		}
		var snap chessanalysis.AnalysisSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			t.Fatal(err)
		}
		if snap.Stage.Terminal() {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("analysis %s did not finish", id)
	return chessanalysis.AnalysisSnapshot{}
}

func TestAnalyses(t *testing.T) {
	f := newFixture(t, &oracletest.Fake{})

	resp, data := f.do(t, http.MethodPost, "/v1/analyses", AnalysisRequest{PGN: scholars})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST /v1/analyses status = %d: %s", resp.StatusCode, data)
	}
	var started AnalysisResponse
	if err := json.Unmarshal(data, &started); err != nil {
		t.Fatal(err)
	}
	if started.ID == "" || started.Key == "" {
		t.Fatalf("response = %+v", started)
	}
	if loc := resp.Header.Get("Location"); loc != "/v1/analyses/"+started.ID {
		t.Errorf("Location = %q", loc)
	}

	snap := f.waitForStage(t, started.ID)
	if snap.Stage != chessanalysis.StageDone || snap.Key != started.Key {
		t.Fatalf("final snapshot = %+v", snap)
	}

	resp, data = f.do(t, http.MethodGet, "/v1/reports/"+started.Key, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET report status = %d: %s", resp.StatusCode, data)
	}
	var report chessanalysis.FullReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatal(err)
	}
	if len(report.Moves) != 7 || report.Depth != 6 {
		t.Errorf("report has %d moves at depth %d", len(report.Moves), report.Depth)
	}
}

func TestAnalyses_BadRequests(t *testing.T) {
	f := newFixture(t, &oracletest.Fake{})

	tests := []struct {
		name string
		body any
	}{
		{"empty pgn", AnalysisRequest{}},
		{"depth", AnalysisRequest{PGN: scholars, Depth: oracle.MaxDepth + 1}},
		{"multipv", AnalysisRequest{PGN: scholars, MultiPV: -1}},
		{"unknown field", map[string]any{"pgn": scholars, "engine": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := f.do(t, http.MethodPost, "/v1/analyses", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d: %s", resp.StatusCode, data)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, &oracletest.Fake{})
	for _, path := range []string{"/v1/analyses/nope", "/v1/reports/nope"} {
		resp, data := f.do(t, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d: %s", path, resp.StatusCode, data)
		}
	}
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t, &oracletest.Fake{Eval: oracletest.Legal(21)})

	resp, data := f.do(t, http.MethodPost, "/v1/evaluate", EvaluateRequest{FEN: afterE4, Depth: 8, MultiPV: 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var pe chessanalysis.PositionEval
	if err := json.Unmarshal(data, &pe); err != nil {
		t.Fatal(err)
	}
	if len(pe.Lines) != 1 || pe.Lines[0].CP == nil || *pe.Lines[0].CP != -21 {
		t.Errorf("lines = %+v, want White-relative cp -21", pe.Lines)
	}

	resp, _ = f.do(t, http.MethodPost, "/v1/evaluate", EvaluateRequest{FEN: "not a position"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad FEN status = %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodPost, "/v1/evaluate", EvaluateRequest{FEN: afterE4, Depth: oracle.MaxDepth + 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("deep request status = %d", resp.StatusCode)
	}
}

func TestEvaluate_OracleFailure(t *testing.T) {
	fake := &oracletest.Fake{Hook: func(context.Context, oracle.Request) error {
		return errors.New("engine crashed")
	}}
	f := newFixture(t, fake)

	resp, data := f.do(t, http.MethodPost, "/v1/evaluate", EvaluateRequest{FEN: afterE4})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d: %s", resp.StatusCode, data)
	}
}

func TestEvaluate_Timeout(t *testing.T) {
	fake := &oracletest.Fake{Hook: func(ctx context.Context, _ oracle.Request) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	f := newFixture(t, fake, WithRequestTimeout(20*time.Millisecond))

	resp, data := f.do(t, http.MethodPost, "/v1/evaluate", EvaluateRequest{FEN: afterE4})
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("status = %d: %s", resp.StatusCode, data)
	}
}

func TestClose_CancelsAnalyses(t *testing.T) {
	started := make(chan struct{}, 1)
	fake := &oracletest.Fake{Hook: func(ctx context.Context, _ oracle.Request) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}}
	f := newFixture(t, fake)

	resp, data := f.do(t, http.MethodPost, "/v1/analyses", AnalysisRequest{PGN: scholars})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var a AnalysisResponse
	if err := json.Unmarshal(data, &a); err != nil {
		t.Fatal(err)
	}
	<-started
	f.srv.Close()

	snap := f.waitForStage(t, a.ID)
	if snap.Stage != chessanalysis.StageCanceled {
		t.Errorf("stage = %s, want canceled", snap.Stage)
	}
}

func TestClose_RefusesAnalyses(t *testing.T) {
	fake := &oracletest.Fake{}
	f := newFixture(t, fake)
	f.srv.Close()

	resp, data := f.do(t, http.MethodPost, "/v1/analyses", AnalysisRequest{PGN: scholars})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d: %s, want 503", resp.StatusCode, data)
	}
	if fake.Calls() != 0 {
		t.Errorf("oracle calls = %d after Close", fake.Calls())
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, &oracletest.Fake{})
	if resp, data := f.do(t, http.MethodPost, "/v1/evaluate", EvaluateRequest{FEN: afterE4, Depth: 4}); resp.StatusCode != http.StatusOK {
		t.Fatalf("evaluate status = %d: %s", resp.StatusCode, data)
	}

	resp, data := f.do(t, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(data), "chessanalysis_oracle_calls_total 1") {
		t.Errorf("metrics missing the oracle call counter:\n%s", data)
	}
}

func TestServe(t *testing.T) {
	srv := New(&stubAnalyzer{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

// stubAnalyzer serves nothing.
type stubAnalyzer struct{}

func (stubAnalyzer) Key(string) (string, error) { return "", errors.New("no") }
func (stubAnalyzer) AnalyzeGame(context.Context, string, chessanalysis.AnalyzeParams) (*chessanalysis.FullReport, error) {
	return nil, errors.New("no")
}
func (stubAnalyzer) Report(context.Context, string) (*chessanalysis.FullReport, error) {
	return nil, chessanalysis.ErrCacheMiss
}
func (stubAnalyzer) Track(chessanalysis.AnalysisSnapshot) {}
func (stubAnalyzer) Progress(string) (chessanalysis.AnalysisSnapshot, bool) {
	return chessanalysis.AnalysisSnapshot{}, false
}
func (stubAnalyzer) AnalyzePosition(context.Context, string, int, int) (chessanalysis.PositionEval, error) {
	return chessanalysis.PositionEval{}, errors.New("no")
}
