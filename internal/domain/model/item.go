// Package model contains domain models passed between layers.
package model

import (
	"math"
	"time"
)

// Rating bounds shared by every component that produces or stores ratings.
const (
	MinRating = 1.0
	MaxRating = 10.0
)

// Item is an item being rated for the first time.
type Item struct {
	ID    string
	Title string
}

// RatedItem is an item that already carries a calibrated personal score.
type RatedItem struct {
	ID          string
	Title       string
	Rating      float64 // in [MinRating, MaxRating]
	GamesPlayed int     // comparisons this item took part in
}

// RatingUpdate is an intent to durably store an opponent's new rating.
// It flows through the write-behind queue when persistence is asynchronous.
type RatingUpdate struct {
	Owner      string
	ItemID     string
	Rating     float64
	SessionID  string
	EnqueuedAt time.Time
}

// Clamp bounds r to [MinRating, MaxRating].
func Clamp(r float64) float64 {
	return math.Max(MinRating, math.Min(MaxRating, r))
}

// Round1 rounds r to one decimal place, half away from zero. r is first
// snapped to six decimals so values like 7.05 (stored as 7.0499...) round up.
func Round1(r float64) float64 {
	snapped := math.Round(r*1e6) / 1e5
	return math.Round(snapped) / 10
}

// Round2 rounds r to two decimal places.
func Round2(r float64) float64 {
	return math.Round(r*100) / 100
}

// Normalize clamps and then rounds r; every persisted rating goes through it.
func Normalize(r float64) float64 {
	return Round1(Clamp(r))
}
