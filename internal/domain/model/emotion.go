package model

import "strings"

// Emotion is the user's first reaction to a new item. It picks the
// percentile band of the user's library used for the first comparison.
type Emotion int

// Emotion values, ordered from the top of the library downward.
const (
	EmotionUnknown Emotion = iota
	Loved
	Liked
	Average
	Disliked
)

// Range is a half-open percentile window [Lo, Hi) over the library sorted
// by rating descending. Disliked is closed at 1.0.
type Range struct {
	Lo float64
	Hi float64
}

var emotionRanges = map[Emotion]Range{
	Loved:    {Lo: 0.00, Hi: 0.25},
	Liked:    {Lo: 0.25, Hi: 0.50},
	Average:  {Lo: 0.50, Hi: 0.75},
	Disliked: {Lo: 0.75, Hi: 1.00},
}

var emotionNames = map[Emotion]string{
	Loved:    "loved",
	Liked:    "liked",
	Average:  "average",
	Disliked: "disliked",
}

// Emotions lists every valid emotion in percentile order.
func Emotions() []Emotion {
	return []Emotion{Loved, Liked, Average, Disliked}
}

// Valid reports whether e is a recognized category.
func (e Emotion) Valid() bool {
	_, ok := emotionRanges[e]
	return ok
}

// Range returns the percentile window for e. ok is false for unknown values.
func (e Emotion) Range() (Range, bool) {
	r, ok := emotionRanges[e]
	return r, ok
}

func (e Emotion) String() string {
	if n, ok := emotionNames[e]; ok {
		return n
	}
	return "unknown"
}

// ParseEmotion maps loved|liked|average|disliked (any case) to an Emotion.
func ParseEmotion(s string) (Emotion, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for e, n := range emotionNames {
		if n == key {
			return e, true
		}
	}
	return EmotionUnknown, false
}
