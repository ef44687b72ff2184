package service

import "errors"

// Service errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrStaleRound      = errors.New("outcome does not match the pending round")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidRating   = errors.New("rating out of range")
	ErrNotStarted      = errors.New("service not started")
)
