package flow

import (
	"context"
	"errors"
)

// Sentinel kinds for calibration flow errors.
var (
	ErrMissingParameters        = errors.New("missing parameters")
	ErrInsufficientRatedItems   = errors.New("insufficient rated items")
	ErrNoOpponentAvailable      = errors.New("no opponent available")
	ErrInvalidComparisonOutcome = errors.New("invalid comparison outcome")
	ErrNoPendingComparison      = errors.New("no pending comparison")
	ErrInProgress               = errors.New("flow still in progress")
	ErrFlowDone                 = errors.New("flow complete")
)

// Reason maps err to a short label for metrics and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingParameters):
		return "missing_parameters"
	case errors.Is(err, ErrInsufficientRatedItems):
		return "insufficient_rated_items"
	case errors.Is(err, ErrNoOpponentAvailable):
		return "no_opponent_available"
	case errors.Is(err, ErrInvalidComparisonOutcome):
		return "invalid_comparison_outcome"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
