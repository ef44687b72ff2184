package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound    = errors.New("item not found")
	ErrInvalidItem = errors.New("item requires owner and id")
	ErrLibraryFull = errors.New("owner library is full")
)
