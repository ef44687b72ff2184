package model

import "strings"

// Outcome is the result of one pairwise comparison. Side A is always the
// item being calibrated; side B is the opponent. The zero value is invalid.
type Outcome int

// Outcome values.
const (
	OutcomeUnknown Outcome = iota
	AWins
	BWins
	Tie
)

var outcomeNames = map[Outcome]string{
	AWins: "a_wins",
	BWins: "b_wins",
	Tie:   "tie",
}

// Valid reports whether o is one of AWins, BWins or Tie.
func (o Outcome) Valid() bool {
	_, ok := outcomeNames[o]
	return ok
}

func (o Outcome) String() string {
	if n, ok := outcomeNames[o]; ok {
		return n
	}
	return "unknown"
}

// ParseOutcome maps a_wins|b_wins|tie (any case) to an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for o, n := range outcomeNames {
		if n == key {
			return o, true
		}
	}
	return OutcomeUnknown, false
}
