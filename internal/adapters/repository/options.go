package repository

import "time"

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *TreapStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithMaxItemsPerOwner caps how many items one owner may store. Zero means
// unlimited.
func WithMaxItemsPerOwner(n int) Option {
	return func(s *TreapStore) {
		if n >= 0 {
			s.maxItemsPerOwner = n
		}
	}
}
