// Package selector picks comparison opponents from a user's rated items.
package selector

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/okian/calibrate/internal/domain/model"
)

// Selector chooses opponents. It is safe for concurrent use; the random
// source is the only shared state.
type Selector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Selector.
type Option func(*Selector)

// WithSeed makes selection reproducible.
func WithSeed(seed int64) Option {
	return func(s *Selector) {
		s.rnd = rand.New(rand.NewSource(seed)) //nolint:gosec // opponent sampling is not security sensitive
	}
}

// WithRand uses r as the random source.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) {
		if r != nil {
			s.rnd = r
		}
	}
}

// New returns a Selector seeded from the clock unless an option overrides it.
func New(opts ...Option) *Selector {
	s := &Selector{}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // opponent sampling is not security sensitive
	}
	return s
}

// Window returns the index window [start, end) of the emotion's percentile
// band over n items sorted by rating descending. ok is false for an unknown
// emotion.
func Window(emotion model.Emotion, n int) (start, end int, ok bool) {
	r, ok := emotion.Range()
	if !ok {
		return 0, 0, false
	}
	start = int(math.Floor(r.Lo * float64(n)))
	end = int(math.Floor(r.Hi * float64(n)))
	if end < start+1 {
		end = start + 1
	}
	if end > n {
		end = n
	}
	return start, end, true
}

// SelectByEmotion picks an item uniformly from the emotion's percentile
// band, ignoring excludeID. It falls back to the highest-rated item when the
// band is empty and returns false when no candidate exists.
func (s *Selector) SelectByEmotion(emotion model.Emotion, items []model.RatedItem, excludeID string) (model.RatedItem, bool) {
	sorted := make([]model.RatedItem, 0, len(items))
	for _, it := range items {
		if it.ID != excludeID {
			sorted = append(sorted, it)
		}
	}
	if len(sorted) == 0 {
		return model.RatedItem{}, false
	}
	SortDescending(sorted)

	start, end, ok := Window(emotion, len(sorted))
	if !ok {
		return model.RatedItem{}, false
	}
	if start >= end {
		return sorted[0], true
	}
	return sorted[start+s.intn(end-start)], true
}

// SelectRandom picks an item uniformly among those whose id is not in exclude.
func (s *Selector) SelectRandom(items []model.RatedItem, exclude map[string]struct{}) (model.RatedItem, bool) {
	candidates := make([]int, 0, len(items))
	for i, it := range items {
		if _, skip := exclude[it.ID]; !skip {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return model.RatedItem{}, false
	}
	return items[candidates[s.intn(len(candidates))]], true
}

func (s *Selector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}

// SortDescending orders items by rating descending, then id ascending.
func SortDescending(items []model.RatedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Rating != items[j].Rating {
			return items[i].Rating > items[j].Rating
		}
		return items[i].ID < items[j].ID
	})
}
