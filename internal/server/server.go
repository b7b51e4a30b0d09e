// Package server exposes game analysis over HTTP.
//
// Routes:
//
//	POST /v1/analyses       start analyzing a PGN game in the background
//	GET  /v1/analyses/{id}  progress of an analysis
//	GET  /v1/reports/{key}  cached report of a game
//	POST /v1/evaluate       evaluate a single position
//	GET  /metrics           Prometheus metrics
//	GET  /healthz           liveness
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Melvud/ChessAnalysis-sub000"
	promstats "github.com/Melvud/ChessAnalysis-sub000/internal/stats/prometheus"
)

// Analyzer is the part of *chessanalysis.Client the server uses.
type Analyzer interface {
	Key(pgnText string) (string, error)
	AnalyzeGame(ctx context.Context, pgnText string, p chessanalysis.AnalyzeParams) (*chessanalysis.FullReport, error)
	Report(ctx context.Context, key string) (*chessanalysis.FullReport, error)
	Track(s chessanalysis.AnalysisSnapshot)
	Progress(id string) (chessanalysis.AnalysisSnapshot, bool)
	AnalyzePosition(ctx context.Context, fen string, depth, multiPV int) (chessanalysis.PositionEval, error)
}

var _ Analyzer = (*chessanalysis.Client)(nil)

// Defaults used when no option overrides them.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultRequestTimeout  = time.Minute
	DefaultAnalysisTimeout = 10 * time.Minute

	maxBodyBytes = 1 << 20
)

// Server serves the HTTP API.
type Server struct {
	analyzer Analyzer
	gatherer prometheus.Gatherer
	logger   *zap.Logger

	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	requestTimeout  time.Duration
	analysisTimeout time.Duration

	// base is the parent of background analyses. It ends on shutdown.
	base    context.Context
	stop    context.CancelFunc
	mu      sync.Mutex
	closing bool
	pending sync.WaitGroup

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithTimeouts sets the read, write and graceful shutdown timeouts of the
// HTTP server. Zero values keep the defaults.
func WithTimeouts(read, write, shutdown time.Duration) Option {
	return func(s *Server) {
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
		if shutdown > 0 {
			s.shutdownTimeout = shutdown
		}
	}
}

// WithRequestTimeout bounds synchronous position evaluations.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// WithAnalysisTimeout bounds background game analyses.
func WithAnalysisTimeout(d time.Duration) Option {
	return func(s *Server) { s.analysisTimeout = d }
}

// WithGatherer sets the metrics source served on /metrics. If not set,
// prometheus.DefaultGatherer is used.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server for a.
func New(a Analyzer, opts ...Option) *Server {
	s := &Server{
		analyzer:        a,
		logger:          zap.NewNop(),
		addr:            DefaultAddr,
		readTimeout:     DefaultReadTimeout,
		writeTimeout:    DefaultWriteTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		requestTimeout:  DefaultRequestTimeout,
		analysisTimeout: DefaultAnalysisTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")
	s.base, s.stop = context.WithCancel(context.Background())
	s.router = s.routes()
	return s
}

// Handler returns the API handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promstats.Handler(s.gatherer))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyses", s.handleStartAnalysis)
		r.Get("/analyses/{id}", s.handleProgress)
		r.Get("/reports/{key}", s.handleReport)
		r.Post("/evaluate", s.handleEvaluate)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("requestID", middleware.GetReqID(r.Context())),
		)
	})
}

// Run listens until ctx ends, then shuts down gracefully and cancels the
// analyses still running.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := hs.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		err := hs.Shutdown(shutdownCtx)
		s.Close()
		return err
	})
	return g.Wait()
}

// Close cancels background analyses and waits for them to settle. Later
// analysis requests are refused.
func (s *Server) Close() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.stop()
	s.pending.Wait()
}

// admit registers a background analysis unless the server is closing.
func (s *Server) admit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.pending.Add(1)
	return true
}
