package flow

import (
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/selector"
	"github.com/okian/calibrate/pkg/logger"
)

// DefaultRounds is the number of comparisons in a full calibration.
const DefaultRounds = 3

// MinRatedItems is the smallest library a flow accepts.
const MinRatedItems = 3

// Selector picks opponents. *selector.Selector implements it.
type Selector interface {
	SelectByEmotion(emotion model.Emotion, items []model.RatedItem, excludeID string) (model.RatedItem, bool)
	SelectRandom(items []model.RatedItem, exclude map[string]struct{}) (model.RatedItem, bool)
}

type options struct {
	port     Port
	selector Selector
	log      logger.Logger
	rounds   int
	observer Observer
}

// Option configures a Session.
type Option func(*options)

// WithPort sets where opponent rating changes are written.
func WithPort(p Port) Option {
	return func(o *options) {
		if p != nil {
			o.port = p
		}
	}
}

// WithSelector shares a selector between sessions.
func WithSelector(s Selector) Option {
	return func(o *options) {
		if s != nil {
			o.selector = s
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRounds overrides DefaultRounds. Values below 1 are ignored.
func WithRounds(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.rounds = n
		}
	}
}

// WithObserver registers lifecycle hooks, typically metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		port:     nopPort{},
		log:      logger.Nop(),
		rounds:   DefaultRounds,
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.selector == nil {
		o.selector = selector.New()
	}
	return o
}
