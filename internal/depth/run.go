package depth

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/stats"
)

// Phase is the stage a run is in.
type Phase int

const (
	Idle Phase = iota
	Requesting
	Emitting
	Done
	Cancelled
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Emitting:
		return "emitting"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the run has ended.
func (p Phase) Terminal() bool {
	return p == Done || p == Cancelled || p == Failed
}

// State is a snapshot of a run's progress. Depth is the depth being
// requested or, once emitted, the depth of the latest evaluation.
type State struct {
	Phase Phase
	Depth int
}

// Run is one incremental evaluation of a position.
type Run struct {
	a      *Analyzer
	req    Request
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	state  State
	err    error
	subs   map[int]func(model.PositionEval)
	nextID int

	// deliverMu is held while subscribers are called.
	deliverMu sync.Mutex
	stopped   atomic.Bool
	revoked   atomic.Bool
	latest    atomic.Pointer[model.PositionEval]
}

func newRun(a *Analyzer, req Request, cancel context.CancelFunc) *Run {
	return &Run{
		a:      a,
		req:    req,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[int]func(model.PositionEval)),
	}
}

// Subscribe registers fn for every evaluation the run emits. If the run
// already emitted one and was not cancelled, fn receives the latest right
// away. fn must not call Subscribe or Cancel on the same run.
func (r *Run) Subscribe(fn func(model.PositionEval)) (unsubscribe func()) {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()

	if pe := r.latest.Load(); pe != nil && !r.revoked.Load() {
		fn(pe.Clone())
	}
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Latest returns the most recent evaluation emitted.
func (r *Run) Latest() (model.PositionEval, bool) {
	pe := r.latest.Load()
	if pe == nil {
		return model.PositionEval{}, false
	}
	return pe.Clone(), true
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Done is closed when the run ends.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run ends. It returns nil when the target depth was
// reached, a cancellation error after Cancel, or the oracle's error.
func (r *Run) Wait() error {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Cancel stops the run. When Cancel returns, no subscriber is being called
// and none will be called again. Evaluations already emitted stay
// available from Latest.
func (r *Run) Cancel() {
	r.revoked.Store(true)
	r.stopped.Store(true)
	r.cancel()
	// Wait out an in-flight delivery.
	r.deliverMu.Lock()
	r.deliverMu.Unlock()
}

func (r *Run) setState(p Phase, depth int) {
	r.mu.Lock()
	if !r.state.Phase.Terminal() {
		r.state = State{Phase: p, Depth: depth}
	}
	r.mu.Unlock()
}

func (r *Run) finish(p Phase, err error) {
	r.mu.Lock()
	depth := r.state.Depth
	if pe := r.latest.Load(); pe != nil {
		depth = pe.Depth()
	}
	r.state = State{Phase: p, Depth: depth}
	r.err = err
	r.mu.Unlock()
	r.stopped.Store(true)
	r.cancel()
	close(r.done)
}

// emit publishes pe unless the run was stopped. It reports whether pe was
// delivered.
func (r *Run) emit(pe model.PositionEval) bool {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()
	if r.stopped.Load() {
		return false
	}
	r.setState(Emitting, pe.Depth())
	stored := pe.Clone()
	r.latest.Store(&stored)

	r.mu.Lock()
	subs := make([]func(model.PositionEval), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()
	for _, fn := range subs {
		fn(pe.Clone())
	}
	return true
}

func (r *Run) loop(ctx context.Context) {
	req := r.req
	logger := r.a.logger.With(zap.String("fen", req.FEN), zap.Int("ply", req.Ply))

	if err := req.validate(); err != nil {
		r.finish(Failed, oracle.Wrap("depth", req.FEN, err))
		return
	}

	c := req.Cached
	if c == nil || !c.Satisfies(req.TargetDepth, req.MultiPV) {
		if pe, ok := r.a.Deepest(req.FEN); ok && pe.Satisfies(req.TargetDepth, req.MultiPV) {
			pe.FEN, pe.Ply = req.FEN, req.Ply
			pe.Lines = pe.Lines[:req.MultiPV]
			c = &pe
		}
	}
	if c != nil && c.Satisfies(req.TargetDepth, req.MultiPV) {
		logger.Debug("using cached evaluation", zap.Int("depth", c.Depth()))
		r.emit(*c)
		r.finish(Done, nil)
		return
	}

	for d := req.StartDepth; d <= req.TargetDepth; d++ {
		if err := ctx.Err(); err != nil {
			r.cancelled(logger, d, err)
			return
		}
		r.setState(Requesting, d)

		if pe, ok := r.a.Cached(req.FEN, d, req.MultiPV); ok {
			pe.Ply = req.Ply
			r.emit(pe)
			continue
		}

		final, err := r.request(ctx, d)
		if err != nil {
			if model.IsCancelled(err) {
				r.cancelled(logger, d, err)
				return
			}
			logger.Warn("depth run failed", zap.Int("depth", d), zap.Error(err))
			r.finish(Failed, err)
			return
		}
		if final != nil {
			r.a.remember(*final, d, req.MultiPV)
		}
	}
	r.finish(Done, nil)
}

// request evaluates one depth and returns the depth-final evaluation.
func (r *Run) request(ctx context.Context, depth int) (*model.PositionEval, error) {
	req := r.req
	var final *model.PositionEval
	var convErr error
	err := r.a.oracle.Evaluate(ctx, oracle.Request{FEN: req.FEN, Depth: depth, MultiPV: req.MultiPV}, func(b oracle.Batch) {
		if convErr != nil {
			return
		}
		// Hold back partial line sets and batches shallower than what
		// subscribers already saw.
		if !b.Final && len(b.Lines) < req.MultiPV {
			return
		}
		if latest := r.latest.Load(); !b.Final && latest != nil && b.Depth < latest.Depth() {
			return
		}
		pe, err := toEval(req.FEN, req.Ply, b.Lines)
		if err != nil {
			convErr = err
			return
		}
		if b.Final {
			final = &pe
		}
		r.emit(pe)
	})
	if err != nil {
		return nil, err
	}
	if convErr != nil {
		return nil, convErr
	}
	return final, nil
}

func (r *Run) cancelled(logger *zap.Logger, depth int, cause error) {
	logger.Debug("depth run cancelled", zap.Int("depth", depth))
	r.a.collector.IncCounter(stats.MetricDepthCancelled, 1)
	r.finish(Cancelled, model.Cancelled(cause))
}
