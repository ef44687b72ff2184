package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/calibrate/internal/domain/model"
)

// SessionDependencies defines the calibration session operations.
type SessionDependencies interface {
	StartSession(ctx context.Context, owner string, item model.Item, emotion model.Emotion) (Session, error)
	Session(ctx context.Context, id uuid.UUID) (Session, error)
	SubmitOutcome(ctx context.Context, id uuid.UUID, round int, outcome model.Outcome) (model.ComparisonRecord, Session, error)
	Abandon(ctx context.Context, id uuid.UUID) error
}

// SessionsHandler handles calibration session requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// startRequest is the body of POST /sessions.
type startRequest struct {
	OwnerID string `json:"owner_id"`
	ItemID  string `json:"item_id"`
	Title   string `json:"title"`
	Emotion string `json:"emotion"`
}

func (req startRequest) validate() (model.Emotion, error) {
	switch {
	case strings.TrimSpace(req.OwnerID) == "":
		return 0, errors.New("missing owner_id")
	case strings.TrimSpace(req.ItemID) == "":
		return 0, errors.New("missing item_id")
	}
	e, ok := model.ParseEmotion(req.Emotion)
	if !ok {
		return 0, errors.New("emotion must be one of loved, liked, average, disliked")
	}
	return e, nil
}

// outcomeRequest is the body of POST /sessions/{id}/outcome.
type outcomeRequest struct {
	Round   int    `json:"round"`
	Outcome string `json:"outcome"`
}

type outcomeResponse struct {
	Comparison comparisonResponse `json:"comparison"`
	Session    sessionResponse    `json:"session"`
}

// HandleStart handles POST /sessions requests.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	emotion, err := req.validate()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	s, err := h.deps.StartSession(r.Context(), req.OwnerID, model.Item{ID: req.ItemID, Title: req.Title}, emotion)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(s))
}

// HandleGet handles GET /sessions/{id} requests.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseSessionID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s, err := h.deps.Session(r.Context(), id)
	if err != nil {
		writeServiceError(w, Wrap("api.get_session", err))
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// HandleOutcome handles POST /sessions/{id}/outcome requests.
func (h *SessionsHandler) HandleOutcome(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_outcome"
	id, err := parseSessionID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Round < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("round must be positive")))
		return
	}
	outcome, ok := model.ParseOutcome(req.Outcome)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_comparison_outcome",
			WrapKind(op, ErrBadRequest, errors.New("outcome must be one of a_wins, b_wins, tie")))
		return
	}

	rec, s, err := h.deps.SubmitOutcome(r.Context(), id, req.Round, outcome)
	if err != nil {
		writeServiceError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{
		Comparison: toComparisonResponse(rec),
		Session:    toSessionResponse(s),
	})
}

// HandleAbandon handles DELETE /sessions/{id} requests.
func (h *SessionsHandler) HandleAbandon(w http.ResponseWriter, r *http.Request) {
	id, err := parseSessionID(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.deps.Abandon(r.Context(), id); err != nil {
		writeServiceError(w, Wrap("api.abandon_session", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
