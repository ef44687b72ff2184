package worker

import (
	"time"

	"github.com/okian/calibrate/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRetries sets how many times a failed update is retried and the
// initial backoff between attempts.
func WithRetries(maxRetries int, backoff time.Duration) Option {
	return func(w *InMemoryWorker) {
		if maxRetries >= 0 {
			w.maxRetries = maxRetries
		}
		if backoff > 0 {
			w.backoff = backoff
		}
	}
}

// WithPermanentError marks errors that must not be retried, such as an
// unknown item.
func WithPermanentError(isPermanent func(error) bool) Option {
	return func(w *InMemoryWorker) {
		if isPermanent != nil {
			w.permanent = isPermanent
		}
	}
}
