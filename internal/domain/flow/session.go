// Package flow runs the bounded round-by-round calibration of a new item
// against the user's rated items.
//
// A Session is a step machine: Next selects the round's opponent and
// suspends, Resolve applies the single outcome supplied for that round.
// Run wraps the same machine in a blocking, callback-driven driver.
package flow

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/rating"
	"github.com/okian/calibrate/pkg/logger"
)

// State is the position of a Session in its lifecycle.
type State int

// Session states.
const (
	StateReady           State = iota // next call to Next selects an opponent
	StateAwaitingOutcome              // suspended until Resolve
	StateComplete                     // every round resolved
	StateAborted                      // ran out of opponents after a rating was established
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateAwaitingOutcome:
		return "awaiting_outcome"
	case StateComplete:
		return "complete"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Done reports whether s is terminal.
func (s State) Done() bool {
	return s == StateComplete || s == StateAborted || s == StateFailed
}

// Prompt describes the comparison the caller must decide.
type Prompt struct {
	Round         int
	TotalRounds   int
	Opponent      model.RatedItem
	CurrentRating *float64 // nil until the first round resolves
}

// Session holds one calibration. It is not safe for concurrent use.
type Session struct {
	item    model.Item
	emotion model.Emotion
	opts    options
	log     logger.Logger

	items   map[string]model.RatedItem // session-local copy
	ids     []string                   // sorted keys of items
	exclude map[string]struct{}        // new item plus used opponents

	rating  *float64
	round   int // resolved rounds
	history []model.ComparisonRecord
	pending *Prompt
	state   State
	err     error
}

// New validates the inputs and prepares a session. items is copied; the
// caller's slice is never modified. No opponent is selected and no port
// call is made when validation fails.
func New(item model.Item, emotion model.Emotion, items []model.RatedItem, opts ...Option) (*Session, error) {
	o := buildOptions(opts)
	if err := validate(item, emotion, items); err != nil {
		o.observer.FlowFinished(StateFailed, nil, err)
		return nil, err
	}
	o.observer.FlowStarted()

	s := &Session{
		item:    item,
		emotion: emotion,
		opts:    o,
		log:     o.log.Named("flow").With(logger.String("item_id", item.ID)),
		items:   make(map[string]model.RatedItem, len(items)),
		exclude: map[string]struct{}{item.ID: {}},
		state:   StateReady,
	}
	for _, it := range items {
		s.items[it.ID] = it
	}
	s.ids = make([]string, 0, len(s.items))
	for id := range s.items {
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)
	return s, nil
}

func validate(item model.Item, emotion model.Emotion, items []model.RatedItem) error {
	switch {
	case item.ID == "":
		return fmt.Errorf("%w: item id is empty", ErrMissingParameters)
	case !emotion.Valid():
		return fmt.Errorf("%w: unknown emotion %d", ErrMissingParameters, emotion)
	case items == nil:
		return fmt.Errorf("%w: rated items are nil", ErrMissingParameters)
	}
	if n := distinct(items); n < MinRatedItems {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientRatedItems, n, MinRatedItems)
	}
	return nil
}

func distinct(items []model.RatedItem) int {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it.ID] = struct{}{}
	}
	return len(seen)
}

// Item returns the item being calibrated.
func (s *Session) Item() model.Item { return s.item }

// Emotion returns the emotion the session started with.
func (s *Session) Emotion() model.Emotion { return s.emotion }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Err returns the failure cause for a failed session.
func (s *Session) Err() error { return s.err }

// Round returns the number of resolved rounds.
func (s *Session) Round() int { return s.round }

// TotalRounds returns the configured round count.
func (s *Session) TotalRounds() int { return s.opts.rounds }

// CurrentRating returns the rating established so far, if any.
func (s *Session) CurrentRating() (float64, bool) {
	if s.rating == nil {
		return 0, false
	}
	return *s.rating, true
}

// Pending returns the prompt awaiting an outcome.
func (s *Session) Pending() (Prompt, bool) {
	if s.pending == nil {
		return Prompt{}, false
	}
	return *s.pending, true
}

// History returns a copy of the resolved comparisons.
func (s *Session) History() []model.ComparisonRecord {
	out := make([]model.ComparisonRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Next selects the opponent for the next round and suspends the session
// until Resolve. Calling it again while suspended returns the same prompt.
// It returns ErrFlowDone once the session has a final result.
func (s *Session) Next(ctx context.Context) (Prompt, error) {
	if err := ctx.Err(); err != nil {
		return Prompt{}, err
	}
	switch s.state {
	case StateAwaitingOutcome:
		return *s.pending, nil
	case StateFailed:
		return Prompt{}, s.err
	case StateComplete, StateAborted:
		return Prompt{}, ErrFlowDone
	}

	r := s.round + 1
	opponent, ok := s.selectOpponent(r)
	if !ok {
		if s.rating == nil {
			s.fail(ctx, fmt.Errorf("%w: round %d", ErrNoOpponentAvailable, r))
			return Prompt{}, s.err
		}
		s.log.Info(ctx, "no opponent left, finishing early", logger.Int("round", r))
		s.finish(StateAborted)
		return Prompt{}, ErrFlowDone
	}

	s.pending = &Prompt{
		Round:         r,
		TotalRounds:   s.opts.rounds,
		Opponent:      opponent,
		CurrentRating: copyRating(s.rating),
	}
	s.state = StateAwaitingOutcome
	s.log.Debug(ctx, "opponent selected",
		logger.Int("round", r),
		logger.String("opponent_id", opponent.ID),
		logger.Float64("opponent_rating", opponent.Rating),
	)
	return *s.pending, nil
}

func (s *Session) selectOpponent(round int) (model.RatedItem, bool) {
	list := make([]model.RatedItem, 0, len(s.ids))
	for _, id := range s.ids {
		list = append(list, s.items[id])
	}
	if round == 1 {
		return s.opts.selector.SelectByEmotion(s.emotion, list, s.item.ID)
	}
	return s.opts.selector.SelectRandom(list, s.exclude)
}

// Resolve applies outcome to the pending round. An invalid outcome fails the
// session without changing any rating.
func (s *Session) Resolve(ctx context.Context, outcome model.Outcome) (model.ComparisonRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.ComparisonRecord{}, err
	}
	if s.state != StateAwaitingOutcome {
		return model.ComparisonRecord{}, ErrNoPendingComparison
	}
	if !outcome.Valid() {
		s.fail(ctx, fmt.Errorf("%w: %d", ErrInvalidComparisonOutcome, outcome))
		return model.ComparisonRecord{}, s.err
	}

	p := s.pending
	opp := s.items[p.Opponent.ID]
	bd, err := rating.Explain(s.rating, opp.Rating, len(s.history), opp.GamesPlayed, outcome)
	if err != nil {
		s.fail(ctx, fmt.Errorf("%w: %w", ErrInvalidComparisonOutcome, err))
		return model.ComparisonRecord{}, s.err
	}

	rec := model.ComparisonRecord{
		Round:          p.Round,
		OpponentID:     opp.ID,
		Outcome:        outcome,
		RatingBefore:   copyRating(s.rating),
		RatingAfter:    bd.NewA,
		OpponentBefore: opp.Rating,
		OpponentAfter:  bd.NewB,
	}

	newA := bd.NewA
	s.rating = &newA
	if bd.NewB != opp.Rating {
		if err := s.opts.port.UpdateRating(ctx, opp.ID, bd.NewB); err != nil {
			s.log.Warn(ctx, "opponent rating not persisted",
				logger.String("opponent_id", opp.ID),
				logger.Float64("rating", bd.NewB),
				logger.Error(err),
			)
		}
		s.opts.observer.PersistenceWrite(err)
		opp.Rating = bd.NewB
		opp.GamesPlayed++
		s.items[opp.ID] = opp
	}

	s.history = append(s.history, rec)
	s.exclude[opp.ID] = struct{}{}
	s.round = p.Round
	s.pending = nil
	s.state = StateReady
	s.opts.observer.ComparisonResolved(rec, bd)

	s.log.Debug(ctx, "comparison resolved",
		logger.Int("round", p.Round),
		logger.String("outcome", outcome.String()),
		logger.Float64("rating", bd.NewA),
		logger.Float64("opponent_rating", bd.NewB),
		logger.Bool("upset", bd.Upset),
	)

	if s.round >= s.opts.rounds {
		s.finish(StateComplete)
	}
	return rec, nil
}

// Result returns the final rating and history of a finished session.
func (s *Session) Result() (model.Result, error) {
	switch s.state {
	case StateFailed:
		return model.Result{}, s.err
	case StateComplete, StateAborted:
		return model.Result{
			FinalRating: *s.rating,
			History:     s.History(),
			GamesPlayed: len(s.history),
		}, nil
	default:
		return model.Result{}, ErrInProgress
	}
}

// Cancel discards an unfinished session with cause. Port writes already made
// are not rolled back.
func (s *Session) Cancel(ctx context.Context, cause error) {
	if s.state.Done() {
		return
	}
	if cause == nil {
		cause = context.Canceled
	}
	s.fail(ctx, cause)
}

func (s *Session) fail(ctx context.Context, err error) {
	s.err = err
	s.pending = nil
	s.state = StateFailed
	s.log.Warn(ctx, "calibration failed", logger.Int("round", s.round), logger.Error(err))
	s.opts.observer.FlowFinished(StateFailed, copyRating(s.rating), err)
}

func (s *Session) finish(state State) {
	s.pending = nil
	s.state = state
	s.opts.observer.FlowFinished(state, copyRating(s.rating), nil)
}

func copyRating(r *float64) *float64 {
	if r == nil {
		return nil
	}
	v := *r
	return &v
}
