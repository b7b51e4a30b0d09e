package depth

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

// Focus keeps at most one run alive for a single point of interest, such
// as the position shown on a board.
type Focus struct {
	a *Analyzer

	mu  sync.Mutex
	run *Run

	gen    atomic.Uint64
	latest atomic.Pointer[model.PositionEval]
}

// NewFocus returns an empty Focus.
func (a *Analyzer) NewFocus() *Focus {
	return &Focus{a: a}
}

// Switch cancels the current run, if any, and starts req. fn, when not
// nil, receives the new run's evaluations. Evaluations of superseded runs
// never reach fn or Latest.
func (f *Focus) Switch(ctx context.Context, req Request, fn func(model.PositionEval)) *Run {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.run != nil {
		f.run.Cancel()
	}
	gen := f.gen.Add(1)
	f.latest.Store(nil)

	run := f.a.Start(ctx, req)
	run.Subscribe(func(pe model.PositionEval) {
		if f.gen.Load() != gen {
			return
		}
		f.latest.Store(&pe)
		if fn != nil {
			fn(pe)
		}
	})
	f.run = run
	return run
}

// Current returns the active run, or nil.
func (f *Focus) Current() *Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.run
}

// Latest returns the newest evaluation of the current run.
func (f *Focus) Latest() (model.PositionEval, bool) {
	pe := f.latest.Load()
	if pe == nil {
		return model.PositionEval{}, false
	}
	return pe.Clone(), true
}

// Close cancels the current run.
func (f *Focus) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.run != nil {
		f.run.Cancel()
		f.run = nil
	}
	f.gen.Add(1)
}
