// Package oracle defines the contract of a move-evaluation oracle: something
// that, given a position, returns ranked candidate lines with scores.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/Melvud/ChessAnalysis-sub000/internal/fen"
	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

// Limits on request parameters.
const (
	MaxDepth   = 60
	MaxMultiPV = 8
)

var (
	// ErrClosed is returned when evaluating on a closed oracle.
	ErrClosed = errors.New("oracle: closed")

	// ErrInvalidRequest is returned for requests that cannot be evaluated.
	ErrInvalidRequest = errors.New("oracle: invalid request")
)

// Request asks for an evaluation of FEN searched to Depth with MultiPV lines.
type Request struct {
	FEN     string
	Depth   int
	MultiPV int
}

// Validate checks the request parameters.
func (r Request) Validate() error {
	if _, err := fen.Normalize(r.FEN); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.Depth < 1 || r.Depth > MaxDepth {
		return fmt.Errorf("%w: depth %d", ErrInvalidRequest, r.Depth)
	}
	if r.MultiPV < 1 || r.MultiPV > MaxMultiPV {
		return fmt.Errorf("%w: multipv %d", ErrInvalidRequest, r.MultiPV)
	}
	return nil
}

// Line is a raw candidate line. Scores are relative to the side to move.
// A line without CP or Mate carries no score.
type Line struct {
	MultiPV int
	Depth   int
	CP      *int
	Mate    *int
	PV      []string
}

// Batch is the complete best-known line set at the depth reached so far.
type Batch struct {
	FEN   string
	Depth int
	Lines []Line
	// Final marks the batch reported when the search finished.
	Final bool
}

// BatchFunc receives batches as the oracle produces them.
type BatchFunc func(Batch)

// Oracle evaluates positions.
type Oracle interface {
	// Evaluate searches req.FEN and calls fn for every batch, ending with a
	// Final batch. It returns an *Error on failure and an error matching
	// model.ErrCancelled when ctx ends first.
	Evaluate(ctx context.Context, req Request, fn BatchFunc) error

	// Close releases the oracle's resources.
	Close() error
}

// Error reports a failed oracle operation.
type Error struct {
	Op  string
	FEN string
	Err error
}

func (e *Error) Error() string {
	if e.FEN == "" {
		return "oracle " + e.Op + ": " + e.Err.Error()
	}
	return "oracle " + e.Op + " [" + e.FEN + "]: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err as an *Error. Cancellation is passed through as a
// cancellation error instead, and existing *Error values are kept.
func Wrap(op, fen string, err error) error {
	if err == nil {
		return nil
	}
	if model.IsCancelled(err) || errors.Is(err, context.DeadlineExceeded) {
		return model.Cancelled(err)
	}
	var oe *Error
	if errors.As(err, &oe) {
		return err
	}
	return &Error{Op: op, FEN: fen, Err: err}
}

// Last runs req on o and returns the final batch.
func Last(ctx context.Context, o Oracle, req Request) (Batch, error) {
	var last Batch
	var got bool
	err := o.Evaluate(ctx, req, func(b Batch) {
		last = b
		got = true
	})
	if err != nil {
		return Batch{}, err
	}
	if !got {
		return Batch{FEN: req.FEN, Depth: req.Depth, Final: true}, nil
	}
	return last, nil
}
