package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/calibrate/internal/adapters/mq/queue"
	"github.com/okian/calibrate/internal/domain/flow"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/types"
	"github.com/okian/calibrate/pkg/logger"
	"github.com/okian/calibrate/pkg/metrics"
)

type sessionID = uuid.UUID

// entry guards one flow.Session, which is not safe for concurrent use.
type entry struct {
	mu       sync.Mutex
	id       sessionID
	owner    string
	session  *flow.Session
	lastSeen time.Time
	saveErr  error
}

// StartSession begins calibrating item for owner against everything the
// owner has rated so far, and selects the first opponent. An item that is
// already rated is calibrated afresh and never meets itself.
func (s *Service) StartSession(ctx context.Context, owner string, item model.Item, emotion model.Emotion) (types.Session, error) {
	if !s.isStarted() {
		return types.Session{}, ErrNotStarted
	}
	if owner == "" {
		return types.Session{}, fmt.Errorf("%w: owner id is empty", flow.ErrMissingParameters)
	}
	if s.queue != nil && s.queue.Len() >= s.queue.Cap() {
		return types.Session{}, fmt.Errorf("%w: write-behind queue is full", eventqueue.ErrBackpressure)
	}

	rated, err := s.store.List(ctx, owner)
	if err != nil {
		return types.Session{}, fmt.Errorf("list rated items: %w", err)
	}
	others := make([]model.RatedItem, 0, len(rated))
	for _, it := range rated {
		if it.ID != item.ID {
			others = append(others, it)
		}
	}

	id := uuid.New()
	log := s.logger.With(logger.String("session_id", id.String()), logger.String("owner", owner))
	sess, err := flow.New(item, emotion, others,
		flow.WithPort(s.port(owner, id)),
		flow.WithSelector(s.selector),
		flow.WithLogger(log),
		flow.WithRounds(s.rounds),
		flow.WithObserver(s.observer),
	)
	if err != nil {
		return types.Session{}, err
	}
	if _, err := sess.Next(ctx); err != nil {
		return types.Session{}, err
	}

	e := &entry{id: id, owner: owner, session: sess, lastSeen: s.now()}
	s.sessMu.Lock()
	s.sessions[id] = e
	n := len(s.sessions)
	s.sessMu.Unlock()
	metrics.UpdateActiveSessions(n)

	log.Debug(ctx, "session started",
		logger.String("item_id", item.ID),
		logger.String("emotion", emotion.String()),
		logger.Int("rated_items", len(others)),
	)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view(), nil
}

// Session returns a snapshot of the session.
func (s *Service) Session(ctx context.Context, id uuid.UUID) (types.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return types.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = s.now()
	if err := e.resume(ctx); err != nil {
		return e.view(), err
	}
	return e.view(), nil
}

// NextComparison returns the comparison awaiting an outcome. It returns
// flow.ErrFlowDone when the session has finished.
func (s *Service) NextComparison(ctx context.Context, id uuid.UUID) (flow.Prompt, error) {
	e, err := s.lookup(id)
	if err != nil {
		return flow.Prompt{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = s.now()
	return e.session.Next(ctx)
}

// SubmitOutcome resolves round with outcome and advances the session. The
// round must be the pending one so a retried request cannot be applied
// twice. When the session finishes, the item's final rating is stored.
func (s *Service) SubmitOutcome(ctx context.Context, id uuid.UUID, round int, outcome model.Outcome) (model.ComparisonRecord, types.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return model.ComparisonRecord{}, types.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = s.now()

	// A resolved round mutates the session and the store, so the rest of the
	// step must not be cut short by the caller going away.
	bg := context.WithoutCancel(ctx)
	if err := e.resume(bg); err != nil {
		return model.ComparisonRecord{}, e.view(), err
	}
	p, ok := e.session.Pending()
	if !ok {
		if e.session.State().Done() {
			return model.ComparisonRecord{}, e.view(), flow.ErrFlowDone
		}
		return model.ComparisonRecord{}, e.view(), flow.ErrNoPendingComparison
	}
	if round != p.Round {
		return model.ComparisonRecord{}, e.view(), fmt.Errorf("%w: pending round is %d", ErrStaleRound, p.Round)
	}

	rec, err := e.session.Resolve(bg, outcome)
	if err != nil {
		return model.ComparisonRecord{}, e.view(), err
	}
	if err := e.resume(bg); err != nil {
		return rec, e.view(), err
	}
	if e.session.State().Done() {
		e.saveErr = s.saveFinal(bg, e)
	}
	return rec, e.view(), e.saveErr
}

// saveFinal stores the calibrated item with one game per resolved round.
func (s *Service) saveFinal(ctx context.Context, e *entry) error {
	res, err := e.session.Result()
	if err != nil {
		return nil
	}
	item := e.session.Item()
	err = s.store.Upsert(ctx, e.owner, model.RatedItem{
		ID:          item.ID,
		Title:       item.Title,
		Rating:      res.FinalRating,
		GamesPlayed: res.GamesPlayed,
	})
	if err != nil {
		s.logger.Error(ctx, "final rating not stored",
			logger.String("session_id", e.id.String()),
			logger.String("item_id", item.ID),
			logger.Float64("rating", res.FinalRating),
			logger.Error(err),
		)
		return fmt.Errorf("store final rating: %w", err)
	}
	s.logger.Info(ctx, "item calibrated",
		logger.String("session_id", e.id.String()),
		logger.String("item_id", item.ID),
		logger.Float64("rating", res.FinalRating),
		logger.Int("games", res.GamesPlayed),
	)
	return nil
}

// Abandon discards the session. Opponent ratings already written stay.
func (s *Service) Abandon(ctx context.Context, id uuid.UUID) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.session.Cancel(ctx, context.Canceled)
	e.mu.Unlock()

	s.remove(id)
	return nil
}

// EvictExpired drops sessions idle for longer than the session TTL and
// returns how many were dropped.
func (s *Service) EvictExpired(ctx context.Context) int {
	if s.sessionTTL <= 0 {
		return 0
	}
	deadline := s.now().Add(-s.sessionTTL)

	s.sessMu.Lock()
	candidates := make([]*entry, 0)
	for _, e := range s.sessions {
		candidates = append(candidates, e)
	}
	s.sessMu.Unlock()

	evicted := 0
	for _, e := range candidates {
		e.mu.Lock()
		expired := e.lastSeen.Before(deadline)
		if expired {
			e.session.Cancel(ctx, ErrSessionExpired)
		}
		e.mu.Unlock()
		if expired {
			s.remove(e.id)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.RecordSessionsExpired(evicted)
		s.logger.Info(ctx, "expired idle sessions", logger.Int("count", evicted))
	}
	return evicted
}

func (s *Service) evictionLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if s.sessionTTL <= 0 {
		<-stop
		return
	}
	interval := s.sessionTTL / 2
	if interval > maxEvictionInterval {
		interval = maxEvictionInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.EvictExpired(context.Background())
		}
	}
}

func (s *Service) lookup(id uuid.UUID) (*entry, error) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

func (s *Service) remove(id uuid.UUID) {
	s.sessMu.Lock()
	delete(s.sessions, id)
	n := len(s.sessions)
	s.sessMu.Unlock()
	metrics.UpdateActiveSessions(n)
}

func (s *Service) sessionCount() int {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	return len(s.sessions)
}

func (s *Service) dropAllSessions(ctx context.Context) int {
	s.sessMu.Lock()
	all := s.sessions
	s.sessions = make(map[sessionID]*entry)
	s.sessMu.Unlock()

	for _, e := range all {
		e.mu.Lock()
		e.session.Cancel(ctx, context.Canceled)
		e.mu.Unlock()
	}
	metrics.UpdateActiveSessions(0)
	return len(all)
}

// resume selects the next opponent when a resolved round was left without
// one. The caller holds e.mu.
func (e *entry) resume(ctx context.Context) error {
	if e.session.State() != flow.StateReady || e.session.Round() == 0 {
		return nil
	}
	if _, err := e.session.Next(ctx); err != nil && !errors.Is(err, flow.ErrFlowDone) {
		return err
	}
	return nil
}

// view snapshots e. The caller holds e.mu.
func (e *entry) view() types.Session {
	v := types.Session{
		ID:          e.id,
		Owner:       e.owner,
		Item:        e.session.Item(),
		Emotion:     e.session.Emotion(),
		State:       e.session.State(),
		Round:       e.session.Round(),
		TotalRounds: e.session.TotalRounds(),
		History:     e.session.History(),
		Err:         e.session.Err(),
	}
	if r, ok := e.session.CurrentRating(); ok {
		v.Rating = &r
	}
	if p, ok := e.session.Pending(); ok {
		v.Prompt = &p
	}
	if res, err := e.session.Result(); err == nil {
		v.Result = &res
	}
	if v.Err == nil {
		v.Err = e.saveErr
	}
	return v
}
