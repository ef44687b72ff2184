// Package service composes the calibration engine with storage and the
// write-behind pipeline, and implements the dependencies of the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/calibrate/internal/adapters/mq/queue"
	workerpool "github.com/okian/calibrate/internal/adapters/mq/worker"
	repository "github.com/okian/calibrate/internal/adapters/repository"
	"github.com/okian/calibrate/internal/domain/flow"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/selector"
	"github.com/okian/calibrate/pkg/logger"
	"github.com/okian/calibrate/pkg/metrics"
)

const (
	defaultSessionTTL      = 30 * time.Minute
	defaultQueueSize       = 10000
	defaultMaxRetries      = 3
	defaultRetryBackoff    = 50 * time.Millisecond
	maxEvictionInterval    = time.Minute
	defaultShutdownTimeout = 10 * time.Second
)

// Service runs calibration sessions for many users.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	selector   *selector.Selector
	queue      *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	observer   flow.Observer

	// Configuration
	rounds       int
	selectorSeed int64
	sessionTTL   time.Duration
	async        bool
	queueSize    int
	workerCount  int
	maxRetries   int
	now          func() time.Time

	// Sessions
	sessMu   sync.Mutex
	sessions map[sessionID]*entry

	// State
	started  bool
	stopCh   chan struct{}
	loopDone chan struct{}

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		rounds:      flow.DefaultRounds,
		sessionTTL:  defaultSessionTTL,
		queueSize:   defaultQueueSize,
		workerCount: runtime.NumCPU(),
		maxRetries:  defaultMaxRetries,
		now:         time.Now,
		sessions:    make(map[sessionID]*entry),
		observer:    newMetricsObserver(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the store, the selector and, when persistence is
// asynchronous, the write-behind queue and its workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger = s.logger.Named("service")

	s.logger.Info(ctx, "starting calibration service...")

	if s.store == nil {
		s.store = repository.NewTreapStore(ctx)
		s.logger.Info(ctx, "using in-memory treap store")
	}

	selOpts := []selector.Option{}
	if s.selectorSeed != 0 {
		selOpts = append(selOpts, selector.WithSeed(s.selectorSeed))
	}
	s.selector = selector.New(selOpts...)

	if s.async {
		s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
		s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s.store,
			workerpool.WithLogger(s.logger),
			workerpool.WithRetries(s.maxRetries, defaultRetryBackoff),
			workerpool.WithPermanentError(func(err error) bool {
				return errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidItem)
			}),
		)
		s.workerPool.Start(ctx)
	}

	s.stopCh = make(chan struct{})
	s.loopDone = make(chan struct{})
	go s.evictionLoop(s.stopCh, s.loopDone)

	s.started = true
	s.logger.Info(ctx, "calibration service started",
		logger.Int("rounds", s.rounds),
		logger.Bool("async", s.async),
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("sessionTTL", s.sessionTTL),
	)
	return nil
}

// Stop drains pending writes and shuts the service down. Open sessions are
// discarded.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping calibration service...")

	close(s.stopCh)
	<-s.loopDone

	if s.workerPool != nil {
		sctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
		if err := s.workerPool.Shutdown(sctx); err != nil {
			s.logger.Warn(ctx, "write-behind queue not fully drained", logger.Error(err))
		}
		cancel()
	}

	n := s.dropAllSessions(ctx)

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "error closing store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "calibration service stopped", logger.Int("discardedSessions", n))
}

// port returns the persistence port for one owner's session.
func (s *Service) port(owner string, id sessionID) flow.Port {
	if s.queue == nil {
		return repository.ForOwner(s.store, owner)
	}
	q := s.queue
	return flow.PortFunc(func(ctx context.Context, itemID string, rating float64) error {
		return q.Enqueue(ctx, eventqueue.Update{
			Owner:     owner,
			ItemID:    itemID,
			Rating:    rating,
			SessionID: id.String(),
		})
	})
}

// Items returns the owner's rated items, best first.
func (s *Service) Items(ctx context.Context, owner string) ([]model.RatedItem, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.store.List(ctx, owner)
}

// SeedItem imports an item the owner has already rated.
func (s *Service) SeedItem(ctx context.Context, owner string, item model.RatedItem) error {
	if !s.isStarted() {
		return ErrNotStarted
	}
	if !(item.Rating >= model.MinRating && item.Rating <= model.MaxRating) {
		return fmt.Errorf("%w: %v", ErrInvalidRating, item.Rating)
	}
	if item.GamesPlayed < 0 {
		item.GamesPlayed = 0
	}
	return s.store.Upsert(ctx, owner, item)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"rounds":           s.rounds,
		"asyncPersistence": s.async,
		"sessionTTL":       s.sessionTTL.String(),
	}
	if !s.started {
		return stats
	}

	active := s.sessionCount()
	stats["sessions"] = active
	metrics.UpdateActiveSessions(active)

	if ts, ok := s.store.(*repository.TreapStore); ok {
		stats["totalItems"] = ts.Total()
	}
	if s.queue != nil {
		stats["queueLength"] = s.queue.Len()
		stats["queueCapacity"] = s.queue.Cap()
		stats["workerCount"] = s.workerPool.Size()
		stats["writesApplied"] = s.workerPool.Processed()
		stats["writesDropped"] = s.workerPool.Failed()
		metrics.UpdateQueueSize(s.queue.Len())
	}
	return stats
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
