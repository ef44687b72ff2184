package model

// ComparisonRecord is one append-only entry of a session's history.
type ComparisonRecord struct {
	Round          int
	OpponentID     string
	Outcome        Outcome
	RatingBefore   *float64 // nil for the bootstrap round
	RatingAfter    float64
	OpponentBefore float64
	OpponentAfter  float64
}

// Result is what a completed calibration flow hands back to its caller.
type Result struct {
	FinalRating float64
	History     []ComparisonRecord
	GamesPlayed int
}
