// Package uciengine implements an oracle backed by a UCI chess engine such
// as Stockfish, running as a subprocess or over any reader/writer pair.
package uciengine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
)

// Compile-time check that Engine implements oracle.Oracle.
var _ oracle.Oracle = (*Engine)(nil)

var (
	// ErrEngineExited is returned when the engine stops producing output.
	ErrEngineExited = errors.New("uciengine: engine exited")
	// ErrUnresponsive is returned while a stopped search has not yet
	// reported its bestmove.
	ErrUnresponsive = errors.New("uciengine: stopped search did not finish")
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultStopTimeout      = 5 * time.Second
	closeTimeout            = 2 * time.Second
)

// Engine drives a UCI engine. Searches are serialized.
type Engine struct {
	w      io.Writer
	closer io.Closer
	cmd    *exec.Cmd
	exited chan struct{}

	lines   chan string
	readErr error
	done    chan struct{}

	sem     chan struct{}
	wmu     sync.Mutex
	multiPV int
	stale   bool // a stopped search still owes a bestmove; guarded by sem
	closed  atomic.Bool
	once    sync.Once

	logger           *zap.Logger
	args             []string
	options          []setOption
	handshakeTimeout time.Duration
	stopTimeout      time.Duration
}

type setOption struct {
	name, value string
}

// Option configures an Engine.
type Option func(*Engine)

// WithArgs sets command-line arguments for the engine binary.
func WithArgs(args ...string) Option {
	return func(e *Engine) {
		e.args = args
	}
}

// WithHash sets the engine hash table size in megabytes.
func WithHash(mb int) Option {
	return WithOption("Hash", strconv.Itoa(mb))
}

// WithThreads sets the number of search threads.
func WithThreads(n int) Option {
	return WithOption("Threads", strconv.Itoa(n))
}

// WithOption sends "setoption name <name> value <value>" after the handshake.
func WithOption(name, value string) Option {
	return func(e *Engine) {
		e.options = append(e.options, setOption{name: name, value: value})
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHandshakeTimeout bounds the uci/isready handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.handshakeTimeout = d
	}
}

// WithStopTimeout bounds how long a cancelled search waits for bestmove.
func WithStopTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.stopTimeout = d
	}
}

func newEngine(opts []Option) *Engine {
	e := &Engine{
		lines:            make(chan string, 256),
		done:             make(chan struct{}),
		sem:              make(chan struct{}, 1),
		logger:           zap.NewNop(),
		handshakeTimeout: defaultHandshakeTimeout,
		stopTimeout:      defaultStopTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("uci")
	return e
}

// New starts the engine binary at path and performs the UCI handshake.
func New(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	e := newEngine(opts)

	cmd := exec.Command(path, e.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting engine %s: %w", path, err)
	}

	e.cmd = cmd
	e.exited = make(chan struct{})
	e.w = stdin
	e.closer = stdin
	go e.read(stdout)

	if err := e.handshake(ctx); err != nil {
		e.Close()
		return nil, err
	}
	e.logger.Info("engine started", zap.String("path", path), zap.Int("pid", cmd.Process.Pid))
	return e, nil
}

// NewConn speaks UCI over r and w. If w is an io.Closer it is closed by Close.
func NewConn(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) (*Engine, error) {
	e := newEngine(opts)
	e.w = w
	if c, ok := w.(io.Closer); ok {
		e.closer = c
	}
	go e.read(r)

	if err := e.handshake(ctx); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) read(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		select {
		case e.lines <- sc.Text():
		case <-e.done:
			// Closed: keep draining so the engine never blocks on stdout.
		}
	}
	e.readErr = sc.Err()
	close(e.lines)
	if e.cmd != nil {
		e.cmd.Wait()
		close(e.exited)
	}
}

func (e *Engine) send(cmd string) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	e.logger.Debug("send", zap.String("cmd", cmd))
	if _, err := io.WriteString(e.w, cmd+"\n"); err != nil {
		return fmt.Errorf("writing %q: %w", cmd, err)
	}
	return nil
}

// waitFor reads lines until one equals want.
func (e *Engine) waitFor(ctx context.Context, want string) error {
	for {
		select {
		case line, ok := <-e.lines:
			if !ok {
				return e.exitErr()
			}
			if line == want {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) exitErr() error {
	if e.readErr != nil {
		return fmt.Errorf("%w: %v", ErrEngineExited, e.readErr)
	}
	return ErrEngineExited
}

func (e *Engine) handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.handshakeTimeout)
	defer cancel()

	if err := e.send("uci"); err != nil {
		return oracle.Wrap("handshake", "", err)
	}
	if err := e.waitFor(ctx, "uciok"); err != nil {
		return oracle.Wrap("handshake", "", err)
	}
	if err := e.send("setoption name UCI_AnalyseMode value true"); err != nil {
		return oracle.Wrap("handshake", "", err)
	}
	for _, o := range e.options {
		if err := e.send("setoption name " + o.name + " value " + o.value); err != nil {
			return oracle.Wrap("handshake", "", err)
		}
	}
	if err := e.send("isready"); err != nil {
		return oracle.Wrap("handshake", "", err)
	}
	if err := e.waitFor(ctx, "readyok"); err != nil {
		return oracle.Wrap("handshake", "", err)
	}
	return nil
}

// Evaluate searches req.FEN to req.Depth. A batch is delivered each time
// every requested line has reached a new depth, and a final batch when the
// engine reports bestmove.
func (e *Engine) Evaluate(ctx context.Context, req oracle.Request, fn oracle.BatchFunc) error {
	if err := req.Validate(); err != nil {
		return &oracle.Error{Op: "evaluate", FEN: req.FEN, Err: err}
	}
	if e.closed.Load() {
		return &oracle.Error{Op: "evaluate", FEN: req.FEN, Err: oracle.ErrClosed}
	}

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return model.Cancelled(ctx.Err())
	}
	defer func() { <-e.sem }()

	if err := ctx.Err(); err != nil {
		return model.Cancelled(err)
	}

	if err := e.prepare(ctx, req); err != nil {
		return oracle.Wrap("evaluate", req.FEN, err)
	}
	return e.search(ctx, req, fn)
}

func (e *Engine) prepare(ctx context.Context, req oracle.Request) error {
	if e.stale {
		if err := e.awaitBestMove(ctx); err != nil {
			return err
		}
	}
	if req.MultiPV != e.multiPV {
		if err := e.send("setoption name MultiPV value " + strconv.Itoa(req.MultiPV)); err != nil {
			return err
		}
		e.multiPV = req.MultiPV
	}
	if err := e.send("isready"); err != nil {
		return err
	}
	if err := e.waitFor(ctx, "readyok"); err != nil {
		return err
	}
	if err := e.send("position fen " + req.FEN); err != nil {
		return err
	}
	return e.send("go depth " + strconv.Itoa(req.Depth))
}

func (e *Engine) search(ctx context.Context, req oracle.Request, fn oracle.BatchFunc) error {
	best := make(map[int]oracle.Line)
	emitted := 0

	for {
		select {
		case raw, ok := <-e.lines:
			if !ok {
				return oracle.Wrap("evaluate", req.FEN, e.exitErr())
			}
			if _, ok := parseBestMove(raw); ok {
				fn(snapshot(req.FEN, best, true))
				return nil
			}
			line, ok := parseInfo(raw)
			if !ok || line.MultiPV > req.MultiPV {
				continue
			}
			if prev, ok := best[line.MultiPV]; ok && prev.Depth > line.Depth {
				continue
			}
			best[line.MultiPV] = line
			if line.MultiPV == req.MultiPV && line.Depth > emitted && complete(best, req.MultiPV, line.Depth) {
				emitted = line.Depth
				fn(snapshot(req.FEN, best, false))
			}
		case <-ctx.Done():
			e.stop()
			return model.Cancelled(ctx.Err())
		}
	}
}

// stop interrupts the running search and discards output up to bestmove.
// If bestmove does not arrive in time the next search waits for it first.
func (e *Engine) stop() {
	e.stale = true
	if err := e.send("stop"); err != nil {
		e.logger.Warn("sending stop failed", zap.Error(err))
		return
	}
	if err := e.awaitBestMove(context.Background()); err != nil {
		e.logger.Warn("engine did not answer stop", zap.Duration("timeout", e.stopTimeout), zap.Error(err))
	}
}

// awaitBestMove discards output up to the bestmove of a stopped search.
func (e *Engine) awaitBestMove(ctx context.Context) error {
	timer := time.NewTimer(e.stopTimeout)
	defer timer.Stop()
	for {
		select {
		case raw, ok := <-e.lines:
			if !ok {
				return e.exitErr()
			}
			if _, ok := parseBestMove(raw); ok {
				e.stale = false
				return nil
			}
		case <-timer.C:
			return ErrUnresponsive
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// complete reports whether lines 1..n are all known at depth d or deeper.
func complete(best map[int]oracle.Line, n, d int) bool {
	for k := 1; k <= n; k++ {
		l, ok := best[k]
		if !ok || l.Depth < d {
			return false
		}
	}
	return true
}

func snapshot(fen string, best map[int]oracle.Line, final bool) oracle.Batch {
	b := oracle.Batch{FEN: fen, Final: final, Lines: make([]oracle.Line, 0, len(best))}
	for _, l := range best {
		l.PV = append([]string(nil), l.PV...)
		b.Lines = append(b.Lines, l)
		if l.Depth > b.Depth {
			b.Depth = l.Depth
		}
	}
	sort.Slice(b.Lines, func(i, j int) bool { return b.Lines[i].MultiPV < b.Lines[j].MultiPV })
	return b
}

// Close sends quit and releases the engine. A subprocess that does not exit
// promptly is killed.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		e.closed.Store(true)
		close(e.done)
		_ = e.send("quit")
		if e.closer != nil {
			err = e.closer.Close()
		}
		if e.cmd == nil {
			return
		}
		select {
		case <-e.exited:
		case <-time.After(closeTimeout):
			e.logger.Warn("engine did not exit, killing")
			if kerr := e.cmd.Process.Kill(); kerr != nil && err == nil {
				err = kerr
			}
		}
	})
	return err
}
