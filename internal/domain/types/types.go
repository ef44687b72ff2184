// Package types contains common types used across the application
package types

import (
	"github.com/google/uuid"

	"github.com/okian/calibrate/internal/domain/flow"
	"github.com/okian/calibrate/internal/domain/model"
)

// Session is a point-in-time snapshot of a hosted calibration session.
type Session struct {
	ID          uuid.UUID
	Owner       string
	Item        model.Item
	Emotion     model.Emotion
	State       flow.State
	Round       int // resolved rounds
	TotalRounds int
	Rating      *float64 // nil until round one resolves
	Prompt      *flow.Prompt
	History     []model.ComparisonRecord
	Result      *model.Result // set once the session completed or aborted
	Err         error
}

// Done reports whether the session reached a terminal state.
func (s Session) Done() bool { return s.State.Done() }

// LastComparison returns the most recent resolved comparison.
func (s Session) LastComparison() (model.ComparisonRecord, bool) {
	if len(s.History) == 0 {
		return model.ComparisonRecord{}, false
	}
	return s.History[len(s.History)-1], true
}
