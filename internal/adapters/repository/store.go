// Package repository stores each user's rated items and implements the
// flow persistence port on top of them.
package repository

import (
	"context"

	"github.com/okian/calibrate/internal/domain/flow"
	"github.com/okian/calibrate/internal/domain/model"
)

// Store provides read/write access to rated items, partitioned by owner.
type Store interface {
	// List returns the owner's items ordered by rating desc, then id asc.
	List(ctx context.Context, owner string) ([]model.RatedItem, error)

	// Get returns one item. Returns ErrNotFound if the item is unknown.
	Get(ctx context.Context, owner, itemID string) (model.RatedItem, error)

	// Upsert inserts or replaces an item.
	Upsert(ctx context.Context, owner string, item model.RatedItem) error

	// UpdateRating sets a new rating and counts one more game for the item.
	// Returns ErrNotFound if the item is unknown.
	UpdateRating(ctx context.Context, owner, itemID string, rating float64) error

	// Count returns the number of items the owner has rated.
	Count(ctx context.Context, owner string) int

	Close() error
}

// ForOwner binds store to one owner as a flow.Port.
func ForOwner(store Store, owner string) flow.Port {
	return flow.PortFunc(func(ctx context.Context, itemID string, rating float64) error {
		return store.UpdateRating(ctx, owner, itemID, rating)
	})
}

// normalize bounds r and trims float noise. Two decimals are kept so the
// tie offsets of a first comparison survive storage.
func normalize(r float64) float64 {
	return model.Round2(model.Clamp(r))
}

func validateItem(owner string, item model.RatedItem) error {
	if owner == "" || item.ID == "" {
		return ErrInvalidItem
	}
	return nil
}
