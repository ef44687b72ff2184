package repository

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Each owner has its own treap. Ordering: rating DESC, then item ID ASC
// (deterministic). "less" means ranks earlier, so an in-order traversal
// yields the library from best to worst.

// ratingScale keeps two decimals in fixed point.
const ratingScale = 100

type ratingFP int64

func toFixedPoint(r float64) ratingFP {
	if math.IsNaN(r) {
		return ratingFP(model.MinRating * ratingScale)
	}
	return ratingFP(math.Round(model.Clamp(r) * ratingScale))
}

// treap node
type node struct {
	id     string
	rating ratingFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aID) should appear before (bRating, bID).
func less(aRating ratingFP, aID string, bRating ratingFP, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// idPriority derives a stable pseudo-random heap priority from the id.
func idPriority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func insert(n *node, id string, r ratingFP) *node {
	if n == nil {
		return &node{id: id, rating: r, prio: idPriority(id), size: 1}
	}
	if less(r, id, n.rating, n.id) {
		n.left = insert(n.left, id, r)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, r)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, r ratingFP) *node {
	if n == nil {
		return nil
	}
	if r == n.rating && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, r)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, r)
		}
	} else if less(r, id, n.rating, n.id) {
		n.left = deleteNode(n.left, id, r)
	} else {
		n.right = deleteNode(n.right, id, r)
	}
	fix(n)
	return n
}

// collect appends every item in rank order.
func collect(n *node, byID map[string]model.RatedItem, out *[]model.RatedItem) {
	if n == nil {
		return
	}
	collect(n.left, byID, out)
	if it, ok := byID[n.id]; ok {
		*out = append(*out, it)
	}
	collect(n.right, byID, out)
}

// rankOf returns the 1-based position of (r, id) in the treap.
func rankOf(n *node, id string, r ratingFP) int {
	rank := 0
	for n != nil {
		switch {
		case n.id == id && n.rating == r:
			return rank + nsize(n.left) + 1
		case less(r, id, n.rating, n.id):
			n = n.left
		default:
			rank += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// library is one owner's treap plus item records.
type library struct {
	root *node
	byID map[string]model.RatedItem
}

func (l *library) put(it model.RatedItem) {
	if old, ok := l.byID[it.ID]; ok {
		l.root = deleteNode(l.root, old.ID, toFixedPoint(old.Rating))
	}
	l.byID[it.ID] = it
	l.root = insert(l.root, it.ID, toFixedPoint(it.Rating))
}

// TreapStore keeps every owner's library in memory.
type TreapStore struct {
	mu        sync.RWMutex
	libraries map[string]*library
	total     int

	metricsUpdateInterval time.Duration
	maxItemsPerOwner      int

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		libraries:             make(map[string]*library),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics goroutine.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// List implements Store.List.
func (s *TreapStore) List(ctx context.Context, owner string) ([]model.RatedItem, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	lib, ok := s.libraries[owner]
	if !ok {
		return []model.RatedItem{}, nil
	}
	out := make([]model.RatedItem, 0, len(lib.byID))
	collect(lib.root, lib.byID, &out)
	return out, nil
}

// Get implements Store.Get.
func (s *TreapStore) Get(ctx context.Context, owner, itemID string) (model.RatedItem, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	if lib, ok := s.libraries[owner]; ok {
		if it, ok := lib.byID[itemID]; ok {
			return it, nil
		}
	}
	return model.RatedItem{}, ErrNotFound
}

// Rank returns the 1-based position of an item in its owner's library.
func (s *TreapStore) Rank(ctx context.Context, owner, itemID string) (int, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	lib, ok := s.libraries[owner]
	if !ok {
		return 0, ErrNotFound
	}
	it, ok := lib.byID[itemID]
	if !ok {
		return 0, ErrNotFound
	}
	return rankOf(lib.root, it.ID, toFixedPoint(it.Rating)), nil
}

// Upsert implements Store.Upsert in O(log n) expected time.
func (s *TreapStore) Upsert(ctx context.Context, owner string, item model.RatedItem) error {
	defer observeUpdate(time.Now())

	if err := validateItem(owner, item); err != nil {
		return err
	}
	item.Rating = normalize(item.Rating)
	if item.GamesPlayed < 0 {
		item.GamesPlayed = 0
	}

	s.mu.Lock()
	lib, ok := s.libraries[owner]
	if !ok {
		lib = &library{byID: make(map[string]model.RatedItem)}
		s.libraries[owner] = lib
	}
	_, exists := lib.byID[item.ID]
	if !exists && s.maxItemsPerOwner > 0 && len(lib.byID) >= s.maxItemsPerOwner {
		s.mu.Unlock()
		return ErrLibraryFull
	}
	lib.put(item)
	if !exists {
		s.total++
	}
	total := s.total
	s.mu.Unlock()

	if !exists {
		metrics.UpdateRepositoryRecordsTotal(total)
	}
	return nil
}

// UpdateRating implements Store.UpdateRating in O(log n) expected time.
func (s *TreapStore) UpdateRating(ctx context.Context, owner, itemID string, rating float64) error {
	defer observeUpdate(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	lib, ok := s.libraries[owner]
	if !ok {
		return ErrNotFound
	}
	it, ok := lib.byID[itemID]
	if !ok {
		return ErrNotFound
	}
	it.Rating = normalize(rating)
	it.GamesPlayed++
	lib.put(it)
	return nil
}

// Count returns the number of items the owner has rated.
func (s *TreapStore) Count(ctx context.Context, owner string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if lib, ok := s.libraries[owner]; ok {
		return len(lib.byID)
	}
	return 0
}

// Total returns the number of items across all owners.
func (s *TreapStore) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// startMetricsUpdater starts a background goroutine that updates repository metrics.
func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRepositoryRecordsTotal(s.Total())
			}
		}
	}()
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}
