package model

import (
	"context"
	"errors"
)

// ErrCancelled indicates that work was abandoned because its context ended.
var ErrCancelled = errors.New("analysis cancelled")

type cancelledError struct {
	cause error
}

func (e *cancelledError) Error() string {
	if e.cause == nil {
		return ErrCancelled.Error()
	}
	return ErrCancelled.Error() + ": " + e.cause.Error()
}

func (e *cancelledError) Is(target error) bool {
	return target == ErrCancelled
}

func (e *cancelledError) Unwrap() error {
	return e.cause
}

// Cancelled wraps cause so that it matches both ErrCancelled and cause.
// A nil cause is treated as context.Canceled. Already-wrapped errors are
// returned unchanged.
func Cancelled(cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	if errors.Is(cause, ErrCancelled) {
		return cause
	}
	return &cancelledError{cause: cause}
}

// IsCancelled reports whether err stems from cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
