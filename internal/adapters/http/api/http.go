// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	eventqueue "github.com/okian/calibrate/internal/adapters/mq/queue"
	repository "github.com/okian/calibrate/internal/adapters/repository"
	service "github.com/okian/calibrate/internal/app"
	"github.com/okian/calibrate/internal/domain/flow"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	ItemDependencies
}

// Session mirrors the snapshot returned by session operations.
type Session = types.Session

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
	itemsHandler    *ItemsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		sessionsHandler: NewSessionsHandler(deps),
		itemsHandler:    NewItemsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /sessions", MetricsMiddleware(s.sessionsHandler.HandleStart, "sessions"))
	mux.HandleFunc("GET /sessions/{id}", MetricsMiddleware(s.sessionsHandler.HandleGet, "session"))
	mux.HandleFunc("DELETE /sessions/{id}", MetricsMiddleware(s.sessionsHandler.HandleAbandon, "session"))
	mux.HandleFunc("POST /sessions/{id}/outcome", MetricsMiddleware(s.sessionsHandler.HandleOutcome, "outcome"))

	mux.HandleFunc("GET /items", MetricsMiddleware(s.itemsHandler.HandleList, "items"))
	mux.HandleFunc("PUT /items", MetricsMiddleware(s.itemsHandler.HandleSeed, "items"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	recordErrorCode(w, code)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates upstream sentinels into a status and code.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, flow.ErrMissingParameters):
		return http.StatusBadRequest, "missing_parameters"
	case errors.Is(err, flow.ErrInvalidComparisonOutcome):
		return http.StatusBadRequest, "invalid_comparison_outcome"
	case errors.Is(err, repository.ErrInvalidItem), errors.Is(err, service.ErrInvalidRating):
		return http.StatusBadRequest, "invalid_item"
	case errors.Is(err, flow.ErrInsufficientRatedItems):
		return http.StatusUnprocessableEntity, "insufficient_rated_items"
	case errors.Is(err, flow.ErrNoOpponentAvailable):
		return http.StatusUnprocessableEntity, "no_opponent_available"
	case errors.Is(err, repository.ErrLibraryFull):
		return http.StatusUnprocessableEntity, "library_full"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrStaleRound):
		return http.StatusConflict, "stale_round"
	case errors.Is(err, flow.ErrFlowDone), errors.Is(err, flow.ErrNoPendingComparison):
		return http.StatusConflict, "session_finished"
	case errors.Is(err, eventqueue.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func parseSessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, WrapKind("api.session_id", ErrBadRequest, err)
	}
	return id, nil
}

type itemResponse struct {
	ItemID      string  `json:"item_id"`
	Title       string  `json:"title,omitempty"`
	Rating      float64 `json:"rating"`
	GamesPlayed int     `json:"games_played"`
}

func toItemResponse(it model.RatedItem) itemResponse {
	return itemResponse{ItemID: it.ID, Title: it.Title, Rating: it.Rating, GamesPlayed: it.GamesPlayed}
}

type promptResponse struct {
	Round         int          `json:"round"`
	TotalRounds   int          `json:"total_rounds"`
	Opponent      itemResponse `json:"opponent"`
	CurrentRating *float64     `json:"current_rating"`
}

type comparisonResponse struct {
	Round          int      `json:"round"`
	OpponentID     string   `json:"opponent_id"`
	Outcome        string   `json:"outcome"`
	RatingBefore   *float64 `json:"rating_before"`
	RatingAfter    float64  `json:"rating_after"`
	OpponentBefore float64  `json:"opponent_before"`
	OpponentAfter  float64  `json:"opponent_after"`
}

func toComparisonResponse(rec model.ComparisonRecord) comparisonResponse {
	return comparisonResponse{
		Round:          rec.Round,
		OpponentID:     rec.OpponentID,
		Outcome:        rec.Outcome.String(),
		RatingBefore:   rec.RatingBefore,
		RatingAfter:    rec.RatingAfter,
		OpponentBefore: rec.OpponentBefore,
		OpponentAfter:  rec.OpponentAfter,
	}
}

type resultResponse struct {
	FinalRating float64 `json:"final_rating"`
	GamesPlayed int     `json:"games_played"`
}

type sessionResponse struct {
	SessionID   string               `json:"session_id"`
	OwnerID     string               `json:"owner_id"`
	ItemID      string               `json:"item_id"`
	Title       string               `json:"title,omitempty"`
	Emotion     string               `json:"emotion"`
	State       string               `json:"state"`
	Round       int                  `json:"round"`
	TotalRounds int                  `json:"total_rounds"`
	Rating      *float64             `json:"rating"`
	Prompt      *promptResponse      `json:"prompt,omitempty"`
	History     []comparisonResponse `json:"history"`
	Result      *resultResponse      `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
}

func toSessionResponse(s Session) sessionResponse {
	out := sessionResponse{
		SessionID:   s.ID.String(),
		OwnerID:     s.Owner,
		ItemID:      s.Item.ID,
		Title:       s.Item.Title,
		Emotion:     s.Emotion.String(),
		State:       s.State.String(),
		Round:       s.Round,
		TotalRounds: s.TotalRounds,
		Rating:      s.Rating,
		History:     make([]comparisonResponse, 0, len(s.History)),
	}
	if s.Prompt != nil {
		out.Prompt = &promptResponse{
			Round:         s.Prompt.Round,
			TotalRounds:   s.Prompt.TotalRounds,
			Opponent:      toItemResponse(s.Prompt.Opponent),
			CurrentRating: s.Prompt.CurrentRating,
		}
	}
	for _, rec := range s.History {
		out.History = append(out.History, toComparisonResponse(rec))
	}
	if s.Result != nil {
		out.Result = &resultResponse{FinalRating: s.Result.FinalRating, GamesPlayed: s.Result.GamesPlayed}
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}
