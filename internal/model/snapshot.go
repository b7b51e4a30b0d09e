package model

import "time"

// Stage is a step of a full-game analysis.
type Stage string

const (
	StageQueued      Stage = "queued"
	StagePreparing   Stage = "preparing"
	StageEvaluating  Stage = "evaluating"
	StageClassifying Stage = "classifying"
	StageDone        Stage = "done"
	StageError       Stage = "error"
	StageCanceled    Stage = "canceled"
)

// Terminal reports whether no further progress will follow.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageError || s == StageCanceled
}

// AnalysisSnapshot is a transient progress report of a running analysis.
type AnalysisSnapshot struct {
	ID        string        `json:"id"`
	Key       string        `json:"key,omitempty"`
	Stage     Stage         `json:"stage"`
	Ply       int           `json:"ply"`
	Total     int           `json:"total"`
	Percent   float64       `json:"percent"`
	FEN       string        `json:"fen,omitempty"`
	LastUCI   string        `json:"lastUci,omitempty"`
	LastClass MoveClass     `json:"lastClass,omitempty"`
	Eval      *LineEval     `json:"eval,omitempty"`
	ETA       time.Duration `json:"eta"`
	Message   string        `json:"message,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ProgressFunc receives analysis snapshots.
type ProgressFunc func(AnalysisSnapshot)
