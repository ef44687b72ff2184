package simulate

// Taste bands an owner's emotion is derived from.
const (
	lovedFloor    = 8.5
	likedFloor    = 6.5
	averageFloor  = 4.0
	minTaste      = 1.0
	maxTaste      = 10.0
	tieMargin     = 0.75
	judgingNoise  = 0.5
	ratingScale   = 100
	ratingEpsilon = 1e-6
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	reportFilePermission = 0600
)
