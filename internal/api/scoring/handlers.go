// internal/api/scoring/handlers.go
package scoring

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/api/apiutil"
	"github.com/codr1/crease/internal/api/authz"
	"github.com/codr1/crease/internal/cricket"
	scoringengine "github.com/codr1/crease/internal/scoring"
)

const (
	scoringRequestTimeout = 30 * time.Second
	scoringQueryTimeout   = 5 * time.Second
	matchIDPathKey        = "matchID"
	inningsPathKey        = "innings"
	overPathKey           = "over"
	inningsQueryKey       = "innings"
	overQueryKey          = "over"
)

// Engine is the ball-by-ball scoring service the handlers drive.
type Engine interface {
	EnterBall(ctx context.Context, matchID, callerID string, input scoringengine.BallInput) (cricket.Delivery, error)
	UndoLastBall(ctx context.Context, matchID, callerID string, innings int) (cricket.Delivery, error)
	GetBallsByMatch(ctx context.Context, matchID string, innings, overNumber int) ([]cricket.Delivery, error)
	GetScoringData(ctx context.Context, matchID, callerID string) (scoringengine.ScoringData, error)
	GetOverSummary(ctx context.Context, matchID string, innings, overNumber int) (cricket.OverSummary, error)
}

type Handler struct {
	engine Engine
}

func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

type ballsResponse struct {
	Deliveries []cricket.Delivery `json:"deliveries"`
}

// POST /api/v1/matches/{matchID}/balls
func (h *Handler) HandleEnterBall(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.RequireCaller(w, r)
	if !ok {
		return
	}
	matchID := chi.URLParam(r, matchIDPathKey)

	var input scoringengine.BallInput
	if err := apiutil.DecodeJSON(r, &input); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), scoringRequestTimeout)
	defer cancel()

	delivery, err := h.engine.EnterBall(ctx, matchID, caller.ID, input)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, delivery)
}

// DELETE /api/v1/matches/{matchID}/balls/last?innings=
func (h *Handler) HandleUndoLastBall(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.RequireCaller(w, r)
	if !ok {
		return
	}
	matchID := chi.URLParam(r, matchIDPathKey)

	innings, err := apiutil.ParseOptionalIntField(r.URL.Query().Get(inningsQueryKey), inningsQueryKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), scoringRequestTimeout)
	defer cancel()

	removed, err := h.engine.UndoLastBall(ctx, matchID, caller.ID, innings)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, removed)
}

// GET /api/v1/matches/{matchID}/balls?innings=&over=
func (h *Handler) HandleListBalls(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, matchIDPathKey)
	query := r.URL.Query()

	innings, err := apiutil.ParseOptionalIntField(query.Get(inningsQueryKey), inningsQueryKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	over, err := apiutil.ParseOptionalIntField(query.Get(overQueryKey), overQueryKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), scoringQueryTimeout)
	defer cancel()

	deliveries, err := h.engine.GetBallsByMatch(ctx, matchID, innings, over)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if deliveries == nil {
		deliveries = []cricket.Delivery{}
	}
	writeJSON(w, r, http.StatusOK, ballsResponse{Deliveries: deliveries})
}

// GET /api/v1/matches/{matchID}/scoring
func (h *Handler) HandleScoringData(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, matchIDPathKey)

	// Anonymous callers get the view with CanScore false.
	var callerID string
	if caller := authz.CallerFromContext(r.Context()); caller != nil {
		callerID = caller.ID
	}

	ctx, cancel := context.WithTimeout(r.Context(), scoringQueryTimeout)
	defer cancel()

	data, err := h.engine.GetScoringData(ctx, matchID, callerID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, data)
}

// GET /api/v1/matches/{matchID}/overs/{innings}/{over}
func (h *Handler) HandleOverSummary(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, matchIDPathKey)

	innings, err := apiutil.ParsePositiveIntField(chi.URLParam(r, inningsPathKey), inningsPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	over, err := apiutil.ParsePositiveIntField(chi.URLParam(r, overPathKey), overPathKey)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), scoringQueryTimeout)
	defer cancel()

	summary, err := h.engine.GetOverSummary(ctx, matchID, innings, over)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write scoring response")
	}
}
