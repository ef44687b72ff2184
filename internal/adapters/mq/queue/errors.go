package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrBackpressure = errors.New("rating update queue is full")
	ErrClosed       = errors.New("rating update queue is closed")
)
