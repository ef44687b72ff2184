package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/calibrate/internal/domain/model"
)

// Callbacks connect Run to the caller. OnComparisonResult is required; it
// must eventually call resolve exactly once, from any goroutine. Extra calls
// in the same round are ignored.
type Callbacks struct {
	OnComparisonStart  func(round int, opponent model.RatedItem, totalRounds int)
	OnComparisonResult func(round int, item model.Item, opponent model.RatedItem, resolve func(model.Outcome))
	OnFinalRating      func(finalRating float64, history []model.ComparisonRecord, gamesPlayed int)
	OnError            func(err error)
}

// Run drives a full calibration, blocking on each round until the caller
// resolves it or ctx is done.
func Run(ctx context.Context, item model.Item, emotion model.Emotion, items []model.RatedItem, cb Callbacks, opts ...Option) (model.Result, error) {
	if cb.OnComparisonResult == nil {
		err := fmt.Errorf("%w: OnComparisonResult callback is required", ErrMissingParameters)
		cb.onError(err)
		return model.Result{}, err
	}

	s, err := New(item, emotion, items, opts...)
	if err != nil {
		cb.onError(err)
		return model.Result{}, err
	}

	for {
		p, err := s.Next(ctx)
		if errors.Is(err, ErrFlowDone) {
			break
		}
		if err != nil {
			s.Cancel(ctx, err)
			cb.onError(err)
			return model.Result{}, err
		}

		if cb.OnComparisonStart != nil {
			cb.OnComparisonStart(p.Round, p.Opponent, p.TotalRounds)
		}

		outcome, err := await(ctx, func(resolve func(model.Outcome)) {
			cb.OnComparisonResult(p.Round, item, p.Opponent, resolve)
		})
		if err != nil {
			s.Cancel(ctx, err)
			cb.onError(err)
			return model.Result{}, err
		}

		if _, err := s.Resolve(ctx, outcome); err != nil {
			cb.onError(err)
			return model.Result{}, err
		}
	}

	res, err := s.Result()
	if err != nil {
		cb.onError(err)
		return model.Result{}, err
	}
	if cb.OnFinalRating != nil {
		cb.OnFinalRating(res.FinalRating, res.History, res.GamesPlayed)
	}
	return res, nil
}

// await hands a one-shot resolve function to ask and waits for it to fire.
func await(ctx context.Context, ask func(resolve func(model.Outcome))) (model.Outcome, error) {
	ch := make(chan model.Outcome, 1)
	var once sync.Once
	ask(func(o model.Outcome) {
		once.Do(func() { ch <- o })
	})

	select {
	case o := <-ch:
		return o, nil
	case <-ctx.Done():
		return model.OutcomeUnknown, ctx.Err()
	}
}

func (cb Callbacks) onError(err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}
