package approvals

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/audit"
	"github.com/codr1/crease/internal/cricket"
	db "github.com/codr1/crease/internal/db"
	dbgen "github.com/codr1/crease/internal/db/generated"
	"github.com/codr1/crease/internal/email"
	"github.com/codr1/crease/internal/live"
	"github.com/codr1/crease/internal/models"
)

// matchStartType labels the single-step start flow in notifications.
const matchStartType = "MATCH_START"

// RequestMatchStart opens a single-step request to take a scheduled match
// straight to LIVE. The match stays SCHEDULED while the request is open and
// an earlier open request is cancelled.
func (e *Engine) RequestMatchStart(ctx context.Context, matchID, requesterID string) (cricket.MatchStartApproval, error) {
	if err := cricket.ValidateID("matchId", matchID); err != nil {
		return cricket.MatchStartApproval{}, err
	}
	if err := cricket.ValidateID("callerId", requesterID); err != nil {
		return cricket.MatchStartApproval{}, err
	}

	logger := log.Ctx(ctx).With().
		Str("component", "approval_engine").
		Str("match_id", matchID).
		Str("requested_by", requesterID).
		Logger()

	match, err := e.loadMatch(ctx, e.db.Queries, matchID)
	if err != nil {
		return cricket.MatchStartApproval{}, err
	}
	caps, err := e.loadCaptains(ctx, match)
	if err != nil {
		return cricket.MatchStartApproval{}, err
	}
	if !caps.isCaptain(requesterID) {
		return cricket.MatchStartApproval{}, cricket.Forbidden("only a captain of either team can request the match start")
	}

	now := e.now()
	var created dbgen.MatchStartApproval
	err = e.db.RunInTx(ctx, func(txdb *db.DB) error {
		current, err := e.loadMatch(ctx, txdb.Queries, matchID)
		if err != nil {
			return err
		}
		if status := cricket.MatchStatus(current.Status); status != cricket.StatusScheduled {
			return cricket.StatusConflict([]cricket.MatchStatus{cricket.StatusScheduled}, status)
		}
		if _, err := txdb.Queries.CancelPendingMatchStarts(ctx, matchID, now); err != nil {
			return db.Classify(err, "cancel pending match starts")
		}
		created, err = txdb.Queries.CreateMatchStartApproval(ctx, dbgen.CreateMatchStartApprovalParams{
			ID:          uuid.NewString(),
			MatchID:     matchID,
			RequestedBy: requesterID,
			RequestedAt: now,
		})
		if err != nil {
			return db.Classify(err, "create match start approval")
		}
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Match start request failed")
		return cricket.MatchStartApproval{}, err
	}

	request := models.MatchStartApprovalFromDB(created)
	logger.Info().Str("approval_id", request.ID).Msg("Match start requested")

	e.audit.LogAction(ctx, audit.Event{
		ActorID:    requesterID,
		Action:     audit.ActionMatchStartRequest,
		MatchID:    matchID,
		ApprovalID: request.ID,
		After:      request,
		At:         now,
	})
	e.notifier.NotifyApprovalRequested(ctx, email.ApprovalNotice{
		ApprovalID:  request.ID,
		MatchID:     matchID,
		Type:        matchStartType,
		Status:      string(request.Status),
		RequestedBy: requesterID,
		RecipientID: caps.opponentOf(requesterID),
		MatchLabel:  caps.label(),
	})

	return request, nil
}

// RespondMatchStart lets the opposing captain approve (SCHEDULED to LIVE) or
// reject (match stays SCHEDULED) a match start request.
func (e *Engine) RespondMatchStart(ctx context.Context, approvalID, responderID string, approve bool) (cricket.MatchStartApproval, error) {
	if err := cricket.ValidateID("approvalId", approvalID); err != nil {
		return cricket.MatchStartApproval{}, err
	}
	if err := cricket.ValidateID("callerId", responderID); err != nil {
		return cricket.MatchStartApproval{}, err
	}

	logger := log.Ctx(ctx).With().
		Str("component", "approval_engine").
		Str("approval_id", approvalID).
		Str("responder_id", responderID).
		Bool("approve", approve).
		Logger()

	request, err := e.loadMatchStart(ctx, e.db.Queries, approvalID)
	if err != nil {
		return cricket.MatchStartApproval{}, err
	}
	match, err := e.loadMatch(ctx, e.db.Queries, request.MatchID)
	if err != nil {
		return cricket.MatchStartApproval{}, err
	}
	caps, err := e.loadCaptains(ctx, match)
	if err != nil {
		return cricket.MatchStartApproval{}, err
	}
	if responderID != caps.opponentOf(request.RequestedBy) {
		return cricket.MatchStartApproval{}, cricket.Forbidden("only the opposing captain can respond to this request")
	}

	now := e.now()
	status := cricket.ApprovalRejected
	if approve {
		status = cricket.ApprovalApproved
	}
	var resolved dbgen.MatchStartApproval
	err = e.db.RunInTx(ctx, func(txdb *db.DB) error {
		current, err := e.loadMatch(ctx, txdb.Queries, request.MatchID)
		if err != nil {
			return err
		}
		if cricket.MatchStatus(current.Status).IsTerminal() {
			return cricket.Conflictf("match is already %s", current.Status)
		}

		approvedBy := sql.NullString{}
		if approve {
			approvedBy = sql.NullString{String: responderID, Valid: true}
		}
		resolved, err = txdb.Queries.ResolveMatchStartApproval(ctx, dbgen.ResolveMatchStartApprovalParams{
			ID:         approvalID,
			Status:     string(status),
			ApprovedBy: approvedBy,
			ResolvedAt: now,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return cricket.Conflict("match start request is no longer pending")
			}
			return db.Classify(err, "resolve match start approval")
		}
		if !approve {
			return nil
		}

		if err := e.transition(ctx, txdb.Queries, request.MatchID, cricket.StatusScheduled, cricket.StatusLive, now); err != nil {
			return err
		}
		if err := txdb.Queries.MarkLiveApproved(ctx, dbgen.MarkStageApprovedParams{
			ID:         request.MatchID,
			ApprovedBy: approvedBy,
			ApprovedAt: now,
		}); err != nil {
			return db.Classify(err, "record live approval")
		}
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Match start response failed")
		return cricket.MatchStartApproval{}, err
	}

	result := models.MatchStartApprovalFromDB(resolved)
	logger.Info().Str("match_id", result.MatchID).Str("status", string(result.Status)).Msg("Match start resolved")

	e.audit.LogAction(ctx, audit.Event{
		ActorID:    responderID,
		Action:     audit.ActionMatchStartResolved,
		MatchID:    result.MatchID,
		ApprovalID: result.ID,
		Before:     map[string]any{"status": match.Status},
		After:      result,
		At:         now,
	})
	e.notifier.NotifyApprovalResolved(ctx, email.ApprovalNotice{
		ApprovalID:  result.ID,
		MatchID:     result.MatchID,
		Type:        matchStartType,
		Status:      string(result.Status),
		RequestedBy: result.RequestedBy,
		RecipientID: result.RequestedBy,
		MatchLabel:  caps.label(),
	})
	if approve {
		e.publishStatus(ctx, live.EventStatusChanged, result.MatchID, nil)
	}

	return result, nil
}

func (e *Engine) loadMatchStart(ctx context.Context, queries *dbgen.Queries, approvalID string) (dbgen.MatchStartApproval, error) {
	request, err := queries.GetMatchStartApproval(ctx, approvalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbgen.MatchStartApproval{}, cricket.NotFound("match start approval", approvalID)
		}
		return dbgen.MatchStartApproval{}, db.Classify(err, "load match start approval")
	}
	return request, nil
}
