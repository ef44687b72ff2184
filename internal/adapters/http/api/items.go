package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/calibrate/internal/domain/model"
)

// ItemDependencies defines the rated item operations.
type ItemDependencies interface {
	Items(ctx context.Context, owner string) ([]model.RatedItem, error)
	SeedItem(ctx context.Context, owner string, item model.RatedItem) error
}

// ItemsHandler handles rated item requests.
type ItemsHandler struct {
	deps ItemDependencies
}

// NewItemsHandler creates a new items handler.
func NewItemsHandler(deps ItemDependencies) *ItemsHandler {
	return &ItemsHandler{deps: deps}
}

// seedRequest is the body of PUT /items.
type seedRequest struct {
	OwnerID     string   `json:"owner_id"`
	ItemID      string   `json:"item_id"`
	Title       string   `json:"title"`
	Rating      *float64 `json:"rating"`
	GamesPlayed int      `json:"games_played"`
}

func (req seedRequest) validate() error {
	switch {
	case strings.TrimSpace(req.OwnerID) == "":
		return errors.New("missing owner_id")
	case strings.TrimSpace(req.ItemID) == "":
		return errors.New("missing item_id")
	case req.Rating == nil:
		return errors.New("missing rating")
	case req.GamesPlayed < 0:
		return errors.New("games_played must not be negative")
	}
	return nil
}

// HandleList handles GET /items?owner_id=... requests.
func (h *ItemsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_items"
	owner := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if owner == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	items, err := h.deps.Items(r.Context(), owner)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSeed handles PUT /items requests.
func (h *ItemsHandler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	const op = "api.seed_item"
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	item := model.RatedItem{
		ID:          req.ItemID,
		Title:       req.Title,
		Rating:      *req.Rating,
		GamesPlayed: req.GamesPlayed,
	}
	if err := h.deps.SeedItem(r.Context(), req.OwnerID, item); err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	// Echo what the store keeps.
	item.Rating = model.Round2(model.Clamp(item.Rating))
	if item.GamesPlayed < 0 {
		item.GamesPlayed = 0
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}
