package flow

import (
	"context"

	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/rating"
)

// Port durably stores an opponent's new rating. Failures never abort a flow.
type Port interface {
	UpdateRating(ctx context.Context, itemID string, rating float64) error
}

// PortFunc adapts a function to Port.
type PortFunc func(ctx context.Context, itemID string, rating float64) error

// UpdateRating calls f.
func (f PortFunc) UpdateRating(ctx context.Context, itemID string, rating float64) error {
	return f(ctx, itemID, rating)
}

type nopPort struct{}

func (nopPort) UpdateRating(context.Context, string, float64) error { return nil }

// Observer receives lifecycle notifications from a Session.
type Observer interface {
	FlowStarted()
	ComparisonResolved(rec model.ComparisonRecord, bd rating.Breakdown)
	PersistenceWrite(err error)
	FlowFinished(state State, finalRating *float64, err error)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) FlowStarted()                                               {}
func (NopObserver) ComparisonResolved(model.ComparisonRecord, rating.Breakdown) {}
func (NopObserver) PersistenceWrite(error)                                     {}
func (NopObserver) FlowFinished(State, *float64, error)                        {}
