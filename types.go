package chessanalysis

import (
	"github.com/Melvud/ChessAnalysis-sub000/internal/depth"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
	"github.com/Melvud/ChessAnalysis-sub000/internal/pgn"
	"github.com/Melvud/ChessAnalysis-sub000/internal/pipeline"
	"github.com/Melvud/ChessAnalysis-sub000/internal/reportcache"
	"github.com/Melvud/ChessAnalysis-sub000/internal/variation"
)

// Report types.
type (
	FullReport       = model.FullReport
	Header           = model.Header
	PositionEval     = model.PositionEval
	LineEval         = model.LineEval
	MoveReport       = model.MoveReport
	MoveClass        = model.MoveClass
	AccuracySummary  = model.AccuracySummary
	ClockData        = model.ClockData
	Side             = model.Side
	AnalysisSnapshot = model.AnalysisSnapshot
	Stage            = model.Stage
	ProgressFunc     = model.ProgressFunc
)

// Move classifications.
const (
	Opening    = model.Opening
	Forced     = model.Forced
	Best       = model.Best
	Perfect    = model.Perfect
	Splendid   = model.Splendid
	Excellent  = model.Excellent
	Okay       = model.Okay
	Inaccuracy = model.Inaccuracy
	Mistake    = model.Mistake
	Blunder    = model.Blunder
)

// Sides.
const (
	White = model.White
	Black = model.Black
)

// MoveClasses lists every class from best to worst.
var MoveClasses = model.MoveClasses

// Analysis stages.
const (
	StageQueued      = model.StageQueued
	StagePreparing   = model.StagePreparing
	StageEvaluating  = model.StageEvaluating
	StageClassifying = model.StageClassifying
	StageDone        = model.StageDone
	StageError       = model.StageError
	StageCanceled    = model.StageCanceled
)

// Analysis and live evaluation types.
type (
	// AnalyzeParams tunes one full-game analysis.
	AnalyzeParams = pipeline.Params
	// DepthRequest describes an incremental evaluation.
	DepthRequest = depth.Request
	// DepthRun is a running incremental evaluation.
	DepthRun = depth.Run
	// Focus keeps at most one incremental evaluation alive.
	Focus = depth.Focus
	// Explorer plays and grades moves off the main line.
	Explorer = variation.Explorer
)

// Oracle evaluates positions. Implementations are safe for concurrent use.
type Oracle = oracle.Oracle

// Error types.
type (
	// OracleError reports a failed evaluation.
	OracleError = oracle.Error
	// MalformedPgnError reports a game record that cannot be parsed.
	MalformedPgnError = pgn.MalformedError
)

var (
	// ErrCancelled matches errors of work abandoned because its context
	// ended.
	ErrCancelled = model.ErrCancelled

	// ErrCacheMiss is returned when no report is cached for a game.
	ErrCacheMiss = reportcache.ErrCacheMiss
)

// IsCancelled reports whether err stems from cancellation.
func IsCancelled(err error) bool {
	return model.IsCancelled(err)
}
