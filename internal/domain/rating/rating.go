// Package rating implements the Elo-derived update rule used to calibrate a
// new item against items the user has already rated.
//
// Ratings live on a compressed 1-10 scale, so the logistic curve uses a
// divisor of 4 rather than the chess value of 400. Every function here is
// pure: identical inputs always produce identical outputs.
package rating

import (
	"errors"
	"math"

	"github.com/okian/calibrate/internal/domain/model"
)

// Update rule constants.
const (
	BootstrapStep      = 0.5 // fixed first-round step away from the opponent
	TieOffset          = 0.05
	MinDelta           = 0.1
	MaxDelta           = 0.7 // per-step cap, skipped on a major upset
	UnderdogMultiplier = 1.2
	UpsetGap           = 3.0
	UpsetBonus         = 3.0

	logisticDivisor = 4.0
)

// ErrInvalidOutcome is returned for an outcome outside AWins, BWins, Tie.
var ErrInvalidOutcome = errors.New("invalid comparison outcome")

// KFactor returns the learning rate for an item that has taken part in
// gamesPlayed comparisons. It never increases as gamesPlayed grows.
func KFactor(gamesPlayed int) float64 {
	switch {
	case gamesPlayed < 5:
		return 0.5
	case gamesPlayed < 10:
		return 0.25
	case gamesPlayed < 20:
		return 0.125
	default:
		return 0.1
	}
}

// ExpectedWinProbability returns the probability that an item rated a beats
// an item rated b.
func ExpectedWinProbability(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/logisticDivisor))
}

// Breakdown exposes the intermediate values of one update.
type Breakdown struct {
	Bootstrap   bool
	Expected    float64 // winner's expected win probability (A's for ties)
	WinnerDelta float64
	LoserDelta  float64
	Underdog    bool // the lower-rated side won
	Upset       bool // underdog win across a gap larger than UpsetGap
	NewA        float64
	NewB        float64
}

// PairwiseUpdate returns the new ratings of A (the item being calibrated)
// and B (its opponent) after one comparison. a is nil when A has never been
// rated, which selects the bootstrap rule.
func PairwiseUpdate(a *float64, b float64, aGames, bGames int, outcome model.Outcome) (newA, newB float64, err error) {
	bd, err := Explain(a, b, aGames, bGames, outcome)
	if err != nil {
		return 0, 0, err
	}
	return bd.NewA, bd.NewB, nil
}

// Explain computes the update and reports how it was derived.
func Explain(a *float64, b float64, aGames, bGames int, outcome model.Outcome) (Breakdown, error) {
	if !outcome.Valid() {
		return Breakdown{}, ErrInvalidOutcome
	}
	if a == nil {
		return bootstrap(b, outcome), nil
	}
	if outcome == model.Tie {
		return tie(*a, b), nil
	}
	return decisive(*a, b, aGames, bGames, outcome), nil
}

// bootstrap places a never-rated item half a point above or below its first
// opponent. The opponent is not re-scored against an unrated item, except on
// a tie where both sides move by TieOffset.
func bootstrap(b float64, outcome model.Outcome) Breakdown {
	bd := Breakdown{Bootstrap: true, NewB: b}
	switch outcome {
	case model.AWins:
		bd.NewA = model.Normalize(math.Min(model.MaxRating, b+BootstrapStep))
	case model.BWins:
		bd.NewA = model.Normalize(math.Max(model.MinRating, b-BootstrapStep))
	case model.Tie:
		// Two decimals: the ±0.05 offset would be lost at one decimal.
		bd.NewA = model.Round2(model.Clamp(b + TieOffset))
		bd.NewB = model.Round2(model.Clamp(b - TieOffset))
	}
	return bd
}

func tie(a, b float64) Breakdown {
	avg := (a + b) / 2
	return Breakdown{
		Expected: ExpectedWinProbability(a, b),
		NewA:     model.Normalize(avg + TieOffset),
		NewB:     model.Normalize(avg - TieOffset),
	}
}

func decisive(a, b float64, aGames, bGames int, outcome model.Outcome) Breakdown {
	winner, loser := a, b
	winnerGames, loserGames := aGames, bGames
	if outcome == model.BWins {
		winner, loser = b, a
		winnerGames, loserGames = bGames, aGames
	}

	p := ExpectedWinProbability(winner, loser)
	wd := math.Max(MinDelta, KFactor(winnerGames)*(1-p))
	ld := math.Max(MinDelta, KFactor(loserGames)*(1-p))

	underdog := winner < loser
	if underdog {
		wd *= UnderdogMultiplier
	}
	// Both the underdog multiplier and the upset bonus apply to a large upset.
	upset := underdog && loser-winner > UpsetGap
	if upset {
		wd += UpsetBonus
	} else {
		wd = math.Min(wd, MaxDelta)
		ld = math.Min(ld, MaxDelta)
	}

	newWinner := model.Normalize(winner + wd)
	newLoser := model.Normalize(loser - ld)

	bd := Breakdown{
		Expected:    p,
		WinnerDelta: wd,
		LoserDelta:  ld,
		Underdog:    underdog,
		Upset:       upset,
	}
	if outcome == model.AWins {
		bd.NewA, bd.NewB = newWinner, newLoser
	} else {
		bd.NewA, bd.NewB = newLoser, newWinner
	}
	return bd
}
