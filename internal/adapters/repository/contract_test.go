package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/calibrate/internal/domain/model"
)

// runStoreContract exercises the behaviour every Store must share. owner
// must be unused in the backing store.
func runStoreContract(t *testing.T, store Store, owner string) {
	t.Helper()
	ctx := context.Background()

	if n := store.Count(ctx, owner); n != 0 {
		t.Fatalf("expected empty library, got %d items", n)
	}
	items, err := store.List(ctx, owner)
	if err != nil {
		t.Fatalf("List on empty owner: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}

	seed := []model.RatedItem{
		{ID: "c", Title: "Gamma", Rating: 7.0, GamesPlayed: 1},
		{ID: "a", Title: "Alpha", Rating: 9.0, GamesPlayed: 3},
		{ID: "b", Title: "Beta", Rating: 8.0},
		{ID: "d", Title: "Delta", Rating: 8.0, GamesPlayed: 2},
	}
	for _, it := range seed {
		if err := store.Upsert(ctx, owner, it); err != nil {
			t.Fatalf("Upsert(%s): %v", it.ID, err)
		}
	}

	items, err = store.List(ctx, owner)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a", "b", "d", "c"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, items[i].ID)
		}
	}
	if items[0].Title != "Alpha" || items[0].GamesPlayed != 3 {
		t.Errorf("metadata not kept: %+v", items[0])
	}

	if err := store.UpdateRating(ctx, owner, "c", 9.54); err != nil {
		t.Fatalf("UpdateRating: %v", err)
	}
	got, err := store.Get(ctx, owner, "c")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Rating != 9.54 || got.GamesPlayed != 2 {
		t.Errorf("expected rating 9.54 with 2 games, got %+v", got)
	}
	items, _ = store.List(ctx, owner)
	if items[0].ID != "c" {
		t.Errorf("expected c to move to the top, got %s", items[0].ID)
	}

	if err := store.UpdateRating(ctx, owner, "a", 42); err != nil {
		t.Fatalf("UpdateRating clamp: %v", err)
	}
	if got, _ := store.Get(ctx, owner, "a"); got.Rating != model.MaxRating {
		t.Errorf("expected clamp to %v, got %v", model.MaxRating, got.Rating)
	}

	if err := store.UpdateRating(ctx, owner, "missing", 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, owner, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Upsert(ctx, owner, model.RatedItem{Rating: 5}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem, got %v", err)
	}

	if err := store.Upsert(ctx, owner, model.RatedItem{ID: "b", Title: "Beta 2", Rating: 1.5, GamesPlayed: 4}); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}
	if n := store.Count(ctx, owner); n != 4 {
		t.Errorf("expected 4 items after replace, got %d", n)
	}
	items, _ = store.List(ctx, owner)
	if last := items[len(items)-1]; last.ID != "b" || last.Title != "Beta 2" {
		t.Errorf("expected replaced b at the bottom, got %+v", last)
	}

	port := ForOwner(store, owner)
	if err := port.UpdateRating(ctx, "d", 6.5); err != nil {
		t.Fatalf("port UpdateRating: %v", err)
	}
	if got, _ := store.Get(ctx, owner, "d"); got.Rating != 6.5 || got.GamesPlayed != 3 {
		t.Errorf("port write not applied: %+v", got)
	}
	if err := port.UpdateRating(ctx, "missing", 6.5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound through port, got %v", err)
	}

	if n := store.Count(ctx, owner+"-other"); n != 0 {
		t.Errorf("owners must be isolated, got %d", n)
	}
}
