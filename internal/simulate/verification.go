package simulate

import (
	"fmt"
	"math"
)

// validRating reports whether r lies on the rating scale with at most two
// decimals.
func validRating(r float64) bool {
	if r < minTaste || r > maxTaste {
		return false
	}
	return math.Abs(r*ratingScale-math.Round(r*ratingScale)) < ratingEpsilon
}

// verifySession checks a finished session snapshot.
func verifySession(s Session) []string {
	var out []string
	for _, c := range s.History {
		if !validRating(c.RatingAfter) {
			out = append(out, fmt.Sprintf("session %s round %d: rating %v off scale", s.SessionID, c.Round, c.RatingAfter))
		}
		if !validRating(c.OpponentAfter) {
			out = append(out, fmt.Sprintf("session %s round %d: opponent rating %v off scale", s.SessionID, c.Round, c.OpponentAfter))
		}
	}
	switch s.State {
	case "complete", "aborted":
		if s.Result == nil {
			return append(out, fmt.Sprintf("session %s: %s without result", s.SessionID, s.State))
		}
		if s.Result.GamesPlayed != len(s.History) {
			out = append(out, fmt.Sprintf("session %s: %d games for %d comparisons", s.SessionID, s.Result.GamesPlayed, len(s.History)))
		}
		if n := len(s.History); n > 0 && s.Result.FinalRating != s.History[n-1].RatingAfter {
			out = append(out, fmt.Sprintf("session %s: final rating %v differs from last round %v",
				s.SessionID, s.Result.FinalRating, s.History[n-1].RatingAfter))
		}
	}
	return out
}

// verifyLibrary checks an owner's stored items after all sessions ran.
// calibrated maps item id to the games its own session played.
func verifyLibrary(ownerID string, items []Item, want int, calibrated map[string]int) []string {
	var out []string
	if len(items) != want {
		out = append(out, fmt.Sprintf("owner %s: %d items stored, want %d", ownerID, len(items), want))
	}
	byID := make(map[string]Item, len(items))
	for i, it := range items {
		byID[it.ItemID] = it
		if !validRating(it.Rating) {
			out = append(out, fmt.Sprintf("owner %s item %s: rating %v off scale", ownerID, it.ItemID, it.Rating))
		}
		if i > 0 && items[i-1].Rating < it.Rating {
			out = append(out, fmt.Sprintf("owner %s: items not ordered by rating at %d", ownerID, i))
		}
	}
	for id, games := range calibrated {
		it, ok := byID[id]
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("owner %s: calibrated item %s not stored", ownerID, id))
		case it.GamesPlayed < games:
			out = append(out, fmt.Sprintf("owner %s item %s: %d games stored, session played %d", ownerID, id, it.GamesPlayed, games))
		}
	}
	return out
}

// concordance counts item pairs whose stored ratings order them the same
// way the owner's tastes do, out of all pairs with distinct values.
func concordance(items []Item, tastes map[string]float64) (agree, pairs int) {
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			dt := tastes[items[i].ItemID] - tastes[items[j].ItemID]
			dr := items[i].Rating - items[j].Rating
			if dt == 0 || dr == 0 {
				continue
			}
			pairs++
			if (dt > 0) == (dr > 0) {
				agree++
			}
		}
	}
	return agree, pairs
}
