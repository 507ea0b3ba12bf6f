// internal/api/approvals/handlers.go
package approvals

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/api/apiutil"
	approvalengine "github.com/codr1/crease/internal/approvals"
	"github.com/codr1/crease/internal/cricket"
)

const (
	approvalsRequestTimeout = 30 * time.Second
	matchIDPathKey          = "matchID"
	approvalIDPathKey       = "approvalID"
)

// Engine is the approval workflow the handlers drive.
type Engine interface {
	RequestApproval(ctx context.Context, matchID, requesterID string, approvalType cricket.ApprovalType) (cricket.ApprovalRequest, error)
	RespondToApproval(ctx context.Context, approvalID, responderID string, approve bool) (approvalengine.Outcome, error)
	CancelApproval(ctx context.Context, approvalID, requesterID string) (approvalengine.Outcome, error)
	GetPendingApprovalsForUser(ctx context.Context, userID string) ([]cricket.ApprovalRequest, error)
	ListApprovals(ctx context.Context, matchID string) ([]cricket.ApprovalRequest, error)
	RequestMatchStart(ctx context.Context, matchID, requesterID string) (cricket.MatchStartApproval, error)
	RespondMatchStart(ctx context.Context, approvalID, responderID string, approve bool) (cricket.MatchStartApproval, error)
}

type Handler struct {
	engine Engine
}

func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

type requestApprovalRequest struct {
	Type string `json:"type"`
}

type respondRequest struct {
	Approve *bool `json:"approve"`
}

type approvalsResponse struct {
	Approvals []cricket.ApprovalRequest `json:"approvals"`
}

func (req respondRequest) decision() (bool, error) {
	if req.Approve == nil {
		return false, cricket.Validation("approve is required")
	}
	return *req.Approve, nil
}

// POST /api/v1/matches/{matchID}/approvals
func (h *Handler) HandleRequestApproval(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.RequireCaller(w, r)
	if !ok {
		return
	}
	matchID := chi.URLParam(r, matchIDPathKey)

	var req requestApprovalRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	approvalType, err := cricket.ParseApprovalType(req.Type)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), approvalsRequestTimeout)
	defer cancel()

	request, err := h.engine.RequestApproval(ctx, matchID, caller.ID, approvalType)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, request)
}

// POST /api/v1/approvals/{approvalID}/respond
func (h *Handler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.RequireCaller(w, r)
	if !ok {
		return
	}
	approvalID := chi.URLParam(r, approvalIDPathKey)

	var req respondRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	approve, err := req.decision()
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), approvalsRequestTimeout)
	defer cancel()

	outcome, err := h.engine.RespondToApproval(ctx, approvalID, caller.ID, approve)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, outcome)
}

// POST /api/v1/approvals/{approvalID}/cancel
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.RequireCaller(w, r)
	if !ok {
		return
	}
	approvalID := chi.URLParam(r, approvalIDPathKey)

	ctx, cancel := context.WithTimeout(r.Context(), approvalsRequestTimeout)
	defer cancel()

	outcome, err := h.engine.CancelApproval(ctx, approvalID, caller.ID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, outcome)
}

// GET /api/v1/approvals/pending
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.RequireCaller(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), approvalsRequestTimeout)
	defer cancel()

	pending, err := h.engine.GetPendingApprovalsForUser(ctx, caller.ID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if pending == nil {
		pending = []cricket.ApprovalRequest{}
	}
	writeJSON(w, r, http.StatusOK, approvalsResponse{Approvals: pending})
}

// GET /api/v1/matches/{matchID}/approvals
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, matchIDPathKey)

	ctx, cancel := context.WithTimeout(r.Context(), approvalsRequestTimeout)
	defer cancel()

	history, err := h.engine.ListApprovals(ctx, matchID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if history == nil {
		history = []cricket.ApprovalRequest{}
	}
	writeJSON(w, r, http.StatusOK, approvalsResponse{Approvals: history})
}

// POST /api/v1/matches/{matchID}/start-request
func (h *Handler) HandleRequestMatchStart(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.RequireCaller(w, r)
	if !ok {
		return
	}
	matchID := chi.URLParam(r, matchIDPathKey)

	ctx, cancel := context.WithTimeout(r.Context(), approvalsRequestTimeout)
	defer cancel()

	approval, err := h.engine.RequestMatchStart(ctx, matchID, caller.ID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, approval)
}

// POST /api/v1/match-start/{approvalID}/respond
func (h *Handler) HandleRespondMatchStart(w http.ResponseWriter, r *http.Request) {
	caller, ok := apiutil.RequireCaller(w, r)
	if !ok {
		return
	}
	approvalID := chi.URLParam(r, approvalIDPathKey)

	var req respondRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	approve, err := req.decision()
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), approvalsRequestTimeout)
	defer cancel()

	approval, err := h.engine.RespondMatchStart(ctx, approvalID, caller.ID, approve)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, approval)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write approvals response")
	}
}
