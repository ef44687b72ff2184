package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Owners     int           // Number of simulated users
	SeedItems  int           // Items rated up front per owner
	Sessions   int           // Calibration sessions per owner
	Workers    int           // Owners simulated concurrently
	Timeout    time.Duration // HTTP request timeout
	Seed       int64         // Seed for item tastes and judging noise
	OutputFile string        // Report file, skipped when empty
	Verbose    bool          // Log every comparison
}

// Item is a rated item as returned by GET /items.
type Item struct {
	ItemID      string  `json:"item_id"`
	Title       string  `json:"title,omitempty"`
	Rating      float64 `json:"rating"`
	GamesPlayed int     `json:"games_played"`
}

// Prompt is the comparison awaiting an outcome.
type Prompt struct {
	Round         int      `json:"round"`
	TotalRounds   int      `json:"total_rounds"`
	Opponent      Item     `json:"opponent"`
	CurrentRating *float64 `json:"current_rating"`
}

// Comparison is one resolved round.
type Comparison struct {
	Round          int      `json:"round"`
	OpponentID     string   `json:"opponent_id"`
	Outcome        string   `json:"outcome"`
	RatingBefore   *float64 `json:"rating_before"`
	RatingAfter    float64  `json:"rating_after"`
	OpponentBefore float64  `json:"opponent_before"`
	OpponentAfter  float64  `json:"opponent_after"`
}

// Result is the outcome of a finished session.
type Result struct {
	FinalRating float64 `json:"final_rating"`
	GamesPlayed int     `json:"games_played"`
}

// Session is the session snapshot returned by the API.
type Session struct {
	SessionID   string       `json:"session_id"`
	OwnerID     string       `json:"owner_id"`
	ItemID      string       `json:"item_id"`
	Emotion     string       `json:"emotion"`
	State       string       `json:"state"`
	Round       int          `json:"round"`
	TotalRounds int          `json:"total_rounds"`
	Rating      *float64     `json:"rating"`
	Prompt      *Prompt      `json:"prompt,omitempty"`
	History     []Comparison `json:"history"`
	Result      *Result      `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
}

type outcomeResponse struct {
	Comparison Comparison `json:"comparison"`
	Session    Session    `json:"session"`
}

// Stats holds run statistics.
type Stats struct {
	ItemsSeeded       int
	SessionsStarted   int
	SessionsCompleted int
	SessionsAborted   int
	SessionsFailed    int
	Comparisons       int
	Violations        []string
	Concordance       float64
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
