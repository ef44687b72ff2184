package service

import (
	"time"

	repository "github.com/okian/calibrate/internal/adapters/repository"
	"github.com/okian/calibrate/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store. The service closes it on Stop. Without
// it an in-memory TreapStore is created on Start.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRounds sets how many comparisons a calibration plays.
func WithRounds(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rounds = n
		}
	}
}

// WithSelectorSeed makes opponent selection reproducible. Zero keeps the
// time-based seed.
func WithSelectorSeed(seed int64) Option {
	return func(s *Service) {
		s.selectorSeed = seed
	}
}

// WithSessionTTL sets how long an idle session is kept. Zero disables
// eviction.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl >= 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithAsyncPersistence routes opponent rating writes through the
// write-behind queue instead of writing them inline.
func WithAsyncPersistence(enabled bool) Option {
	return func(s *Service) {
		s.async = enabled
	}
}

// WithQueueSize sets the capacity of the write-behind queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of write-behind workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithMaxRetries sets how many times a worker retries a failed write.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithClock overrides the clock used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
