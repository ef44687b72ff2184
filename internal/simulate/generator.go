package simulate

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
)

// taste is an item together with how much its owner actually likes it. The
// service never sees the taste; it only learns it through comparisons.
type taste struct {
	ID    string
	Title string
	Score float64
}

// owner is one simulated user with a private taste model.
type owner struct {
	ID      string
	seeded  []taste
	unrated []taste
	tastes  map[string]float64
	rnd     *rand.Rand
}

func newOwner(index int, cfg *Config) *owner {
	o := &owner{
		ID:     "owner-" + uuid.New().String(),
		tastes: make(map[string]float64),
		rnd:    rand.New(rand.NewSource(cfg.Seed + int64(index))), //nolint:gosec // simulation noise is not security sensitive
	}
	for i := 0; i < cfg.SeedItems; i++ {
		o.seeded = append(o.seeded, o.newTaste(fmt.Sprintf("Seeded %d", i+1)))
	}
	for i := 0; i < cfg.Sessions; i++ {
		o.unrated = append(o.unrated, o.newTaste(fmt.Sprintf("Fresh %d", i+1)))
	}
	return o
}

func (o *owner) newTaste(title string) taste {
	t := taste{ID: uuid.New().String(), Title: title, Score: o.variedScore()}
	o.tastes[t.ID] = t.Score
	return t
}

// variedScore draws a taste from a mixture skewed toward the middle of the
// scale with occasional favourites and duds.
func (o *owner) variedScore() float64 {
	var s float64
	switch o.rnd.Intn(6) {
	case 0:
		s = 9 + o.rnd.Float64()
	case 1:
		s = 1 + o.rnd.Float64()*2
	case 2:
		s = 6.5 + o.rnd.Float64()*2
	default:
		s = 3.5 + o.rnd.Float64()*3.5
	}
	return math.Round(math.Min(maxTaste, math.Max(minTaste, s))*10) / 10
}

// emotionFor maps a taste score to the emotion a user would report.
func emotionFor(score float64) string {
	switch {
	case score >= lovedFloor:
		return "loved"
	case score >= likedFloor:
		return "liked"
	case score >= averageFloor:
		return "average"
	default:
		return "disliked"
	}
}

// judge answers a comparison between item and opponent the way a slightly
// inconsistent human would.
func (o *owner) judge(itemID, opponentID string) string {
	diff := o.tastes[itemID] - o.tastes[opponentID] + o.rnd.NormFloat64()*judgingNoise
	switch {
	case math.Abs(diff) < tieMargin:
		return "tie"
	case diff > 0:
		return "a_wins"
	default:
		return "b_wins"
	}
}
