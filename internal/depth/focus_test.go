package depth

import (
	"context"
	"testing"
	"time"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle/oracletest"
)

func TestFocus_Switch(t *testing.T) {
	blocked := make(chan struct{})
	fake := &oracletest.Fake{
		Hook: func(ctx context.Context, req oracle.Request) error {
			if req.FEN == startFEN && req.Depth == 2 {
				close(blocked)
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		},
	}
	a := newAnalyzer(t, fake)
	f := a.NewFocus()
	defer f.Close()

	rec := &recorder{}
	first := f.Switch(context.Background(), Request{FEN: startFEN, StartDepth: 1, TargetDepth: 3, MultiPV: 1}, rec.add)
	select {
	case <-blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached depth 2")
	}

	second := f.Switch(context.Background(), Request{FEN: afterE4, Ply: 1, StartDepth: 1, TargetDepth: 2, MultiPV: 1}, rec.add)
	if err := wait(t, first); !model.IsCancelled(err) {
		t.Errorf("first run error = %v, want cancellation", err)
	}
	if err := wait(t, second); err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if f.Current() != second {
		t.Error("Current() is not the second run")
	}

	latest, ok := f.Latest()
	if !ok || latest.FEN != afterE4 || latest.Depth() != 2 {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}
	evals := rec.all()
	last := evals[len(evals)-1]
	if last.FEN != afterE4 {
		t.Errorf("last delivered FEN = %q, want %q", last.FEN, afterE4)
	}
	for i, pe := range evals {
		if pe.FEN == startFEN && i > 0 && evals[i-1].FEN == afterE4 {
			t.Error("first run delivered after the switch")
		}
	}
}

func TestFocus_Close(t *testing.T) {
	a := newAnalyzer(t, &oracletest.Fake{})
	f := a.NewFocus()
	run := f.Switch(context.Background(), Request{FEN: startFEN, StartDepth: 1, TargetDepth: 1, MultiPV: 1}, nil)
	if err := wait(t, run); err != nil {
		t.Fatal(err)
	}
	f.Close()
	if f.Current() != nil {
		t.Error("Current() after Close is not nil")
	}
}
