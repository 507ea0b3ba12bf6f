// Package approvals runs the dual-captain workflow that moves a match through
// its lifecycle.
package approvals

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/audit"
	"github.com/codr1/crease/internal/cricket"
	db "github.com/codr1/crease/internal/db"
	dbgen "github.com/codr1/crease/internal/db/generated"
	"github.com/codr1/crease/internal/directory"
	"github.com/codr1/crease/internal/email"
	"github.com/codr1/crease/internal/live"
	"github.com/codr1/crease/internal/models"
)

// requiredSignatures is the size of the FINAL_SCORE signer set that
// completes a match.
const requiredSignatures = 2

// stage describes one approval-gated transition: the match must be in From
// to ask, waits in Pending, and moves to To once approved.
type stage struct {
	From    cricket.MatchStatus
	Pending cricket.MatchStatus
	To      cricket.MatchStatus
}

var stages = map[cricket.ApprovalType]stage{
	cricket.ApprovalStartScoring: {
		From:    cricket.StatusScheduled,
		Pending: cricket.StatusScoringPending,
		To:      cricket.StatusFirstInnings,
	},
	cricket.ApprovalStartSecondInnings: {
		From:    cricket.StatusFirstInnings,
		Pending: cricket.StatusSecondInningsPending,
		To:      cricket.StatusSecondInnings,
	},
	cricket.ApprovalFinalScore: {
		From:    cricket.StatusSecondInnings,
		Pending: cricket.StatusFinalPending,
		To:      cricket.StatusCompleted,
	},
}

// StatsRecalculator refreshes derived standings once a match completes.
type StatsRecalculator interface {
	RecalculateStats(ctx context.Context, matchID string) error
}

type Engine struct {
	db        *db.DB
	directory directory.Directory
	audit     audit.Logger
	notifier  email.Notifier
	stats     StatsRecalculator
	publisher live.Publisher
	clock     func() time.Time
}

type Option func(*Engine)

func WithAudit(logger audit.Logger) Option {
	return func(e *Engine) { e.audit = logger }
}

func WithNotifier(notifier email.Notifier) Option {
	return func(e *Engine) { e.notifier = notifier }
}

func WithStats(stats StatsRecalculator) Option {
	return func(e *Engine) { e.stats = stats }
}

func WithPublisher(publisher live.Publisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func NewEngine(database *db.DB, dir directory.Directory, opts ...Option) (*Engine, error) {
	if database == nil {
		return nil, errors.New("approval engine requires a database")
	}
	if dir == nil {
		return nil, errors.New("approval engine requires a directory")
	}
	e := &Engine{
		db:        database,
		directory: dir,
		audit:     audit.Nop{},
		notifier:  email.NoopNotifier{},
		publisher: live.NopPublisher{},
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Outcome is the result of resolving an approval request.
type Outcome struct {
	Approval    cricket.ApprovalRequest `json:"approval"`
	MatchStatus cricket.MatchStatus     `json:"matchStatus"`
	// Signatures is the FINAL_SCORE signer count after this response.
	Signatures int `json:"signatures,omitempty"`
}

// captains identifies both captains of a match.
type captains struct {
	TeamA directory.Team
	TeamB directory.Team
}

func (c captains) isCaptain(userID string) bool {
	return userID != "" && (userID == c.TeamA.CaptainID || userID == c.TeamB.CaptainID)
}

// opponentOf returns the captain of the team the requester does not lead.
func (c captains) opponentOf(requesterID string) string {
	if requesterID == c.TeamA.CaptainID {
		return c.TeamB.CaptainID
	}
	return c.TeamA.CaptainID
}

func (c captains) label() string {
	return c.TeamA.Name + " vs " + c.TeamB.Name
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

func (e *Engine) loadMatch(ctx context.Context, queries *dbgen.Queries, matchID string) (dbgen.Match, error) {
	match, err := queries.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbgen.Match{}, cricket.NotFound("match", matchID)
		}
		return dbgen.Match{}, db.Classify(err, "load match")
	}
	return match, nil
}

func (e *Engine) loadCaptains(ctx context.Context, match dbgen.Match) (captains, error) {
	teamA, err := e.directory.GetTeam(ctx, match.TeamAID)
	if err != nil {
		return captains{}, err
	}
	teamB, err := e.directory.GetTeam(ctx, match.TeamBID)
	if err != nil {
		return captains{}, err
	}
	return captains{TeamA: teamA, TeamB: teamB}, nil
}

// RequestApproval opens a request to move the match to the next stage and
// parks the match in the matching pending status. A request made while the
// match is already pending for the same type supersedes the open one.
func (e *Engine) RequestApproval(ctx context.Context, matchID, requesterID string, approvalType cricket.ApprovalType) (cricket.ApprovalRequest, error) {
	if err := cricket.ValidateID("matchId", matchID); err != nil {
		return cricket.ApprovalRequest{}, err
	}
	if err := cricket.ValidateID("callerId", requesterID); err != nil {
		return cricket.ApprovalRequest{}, err
	}
	st, ok := stages[approvalType]
	if !ok {
		return cricket.ApprovalRequest{}, cricket.Validationf("unknown approval type %q", approvalType)
	}

	logger := log.Ctx(ctx).With().
		Str("component", "approval_engine").
		Str("match_id", matchID).
		Str("requested_by", requesterID).
		Str("type", string(approvalType)).
		Logger()

	match, err := e.loadMatch(ctx, e.db.Queries, matchID)
	if err != nil {
		return cricket.ApprovalRequest{}, err
	}
	caps, err := e.loadCaptains(ctx, match)
	if err != nil {
		return cricket.ApprovalRequest{}, err
	}
	if !caps.isCaptain(requesterID) {
		return cricket.ApprovalRequest{}, cricket.Forbidden("only a captain of either team can request approval")
	}
	settings, err := e.directory.ApprovalSettings(ctx, requesterID)
	if err != nil {
		return cricket.ApprovalRequest{}, err
	}

	now := e.now()
	var (
		created   dbgen.ApprovalRequest
		before    cricket.MatchStatus
		cancelled int64
	)
	err = e.db.RunInTx(ctx, func(txdb *db.DB) error {
		current, err := e.loadMatch(ctx, txdb.Queries, matchID)
		if err != nil {
			return err
		}
		before = cricket.MatchStatus(current.Status)
		if before != st.From && before != st.Pending {
			return cricket.StatusConflict([]cricket.MatchStatus{st.From}, before)
		}

		cancelled, err = txdb.Queries.CancelPendingApprovals(ctx, dbgen.CancelPendingApprovalsParams{
			MatchID:    matchID,
			Type:       string(approvalType),
			ResolvedAt: now,
		})
		if err != nil {
			return db.Classify(err, "cancel pending approvals")
		}

		created, err = txdb.Queries.CreateApprovalRequest(ctx, dbgen.CreateApprovalRequestParams{
			ID:                 uuid.NewString(),
			MatchID:            matchID,
			Type:               string(approvalType),
			RequestedBy:        requesterID,
			RequestedAt:        now,
			AutoApproveAt:      now.Add(settings.AutoApproveTimeout),
			AutoApproveEnabled: settings.AutoApproveEnabled,
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				return cricket.Conflict("another request for this stage is already pending")
			}
			return db.Classify(err, "create approval request")
		}

		if before == st.From {
			return e.transition(ctx, txdb.Queries, matchID, st.From, st.Pending, now)
		}
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Approval request failed")
		return cricket.ApprovalRequest{}, err
	}

	request := models.ApprovalRequestFromDB(created)
	logger.Info().
		Str("approval_id", request.ID).
		Int64("superseded", cancelled).
		Time("auto_approve_at", request.AutoApproveAt).
		Msg("Approval requested")

	e.audit.LogAction(ctx, audit.Event{
		ActorID:    requesterID,
		Action:     audit.ActionApprovalRequested,
		MatchID:    matchID,
		ApprovalID: request.ID,
		Before:     map[string]any{"status": before},
		After:      map[string]any{"status": st.Pending, "approval": request},
		At:         now,
	})
	e.notifier.NotifyApprovalRequested(ctx, email.ApprovalNotice{
		ApprovalID:    request.ID,
		MatchID:       matchID,
		Type:          string(approvalType),
		Status:        string(request.Status),
		RequestedBy:   requesterID,
		RecipientID:   caps.opponentOf(requesterID),
		MatchLabel:    caps.label(),
		AutoApproveAt: request.AutoApproveAt,
		AutoApprove:   request.AutoApproveEnabled,
	})
	e.publishStatus(ctx, live.EventApproval, matchID, &request)

	return request, nil
}

// decision is how a pending request gets resolved.
type decision struct {
	approve bool
	// status is the terminal request status written on resolution.
	status cricket.ApprovalStatus
	// responderID is empty for system resolutions.
	responderID string
	auto        bool
}

// RespondToApproval records the opponent captain's answer. FINAL_SCORE
// requests also accept a signature from either captain and only complete the
// match once both have signed; rejecting one is still the opponent's call.
func (e *Engine) RespondToApproval(ctx context.Context, approvalID, responderID string, approve bool) (Outcome, error) {
	if err := cricket.ValidateID("approvalId", approvalID); err != nil {
		return Outcome{}, err
	}
	if err := cricket.ValidateID("callerId", responderID); err != nil {
		return Outcome{}, err
	}

	request, err := e.loadRequest(ctx, e.db.Queries, approvalID)
	if err != nil {
		return Outcome{}, err
	}
	match, err := e.loadMatch(ctx, e.db.Queries, request.MatchID)
	if err != nil {
		return Outcome{}, err
	}
	caps, err := e.loadCaptains(ctx, match)
	if err != nil {
		return Outcome{}, err
	}

	approvalType := cricket.ApprovalType(request.Type)
	opponent := caps.opponentOf(request.RequestedBy)
	allowed := responderID == opponent
	if approvalType == cricket.ApprovalFinalScore && approve {
		allowed = caps.isCaptain(responderID)
	}
	if !allowed {
		return Outcome{}, cricket.Forbidden("only the opposing captain can respond to this request")
	}

	d := decision{approve: approve, status: cricket.ApprovalRejected, responderID: responderID}
	if approve {
		d.status = cricket.ApprovalApproved
	}
	return e.resolve(ctx, approvalID, caps, d)
}

// CancelApproval withdraws a pending request on behalf of the captain who
// made it and rolls the match back like a rejection.
func (e *Engine) CancelApproval(ctx context.Context, approvalID, requesterID string) (Outcome, error) {
	if err := cricket.ValidateID("approvalId", approvalID); err != nil {
		return Outcome{}, err
	}
	if err := cricket.ValidateID("callerId", requesterID); err != nil {
		return Outcome{}, err
	}

	request, err := e.loadRequest(ctx, e.db.Queries, approvalID)
	if err != nil {
		return Outcome{}, err
	}
	if request.RequestedBy != requesterID {
		return Outcome{}, cricket.Forbidden("only the requesting captain can cancel this request")
	}
	match, err := e.loadMatch(ctx, e.db.Queries, request.MatchID)
	if err != nil {
		return Outcome{}, err
	}
	caps, err := e.loadCaptains(ctx, match)
	if err != nil {
		return Outcome{}, err
	}
	return e.resolve(ctx, approvalID, caps, decision{
		approve:     false,
		status:      cricket.ApprovalCancelled,
		responderID: requesterID,
	})
}

// AutoApprove resolves a request whose deadline has passed as if the
// opponent approved it, attributed to the system.
func (e *Engine) AutoApprove(ctx context.Context, approvalID string) (Outcome, error) {
	return e.resolveOnDeadline(ctx, approvalID, decision{
		approve: true,
		status:  cricket.ApprovalAutoApproved,
		auto:    true,
	})
}

// Expire closes a request whose deadline has passed without auto-approval
// and rolls the match back like a rejection.
func (e *Engine) Expire(ctx context.Context, approvalID string) (Outcome, error) {
	return e.resolveOnDeadline(ctx, approvalID, decision{
		approve: false,
		status:  cricket.ApprovalExpired,
		auto:    true,
	})
}

func (e *Engine) resolveOnDeadline(ctx context.Context, approvalID string, d decision) (Outcome, error) {
	if err := cricket.ValidateID("approvalId", approvalID); err != nil {
		return Outcome{}, err
	}
	request, err := e.loadRequest(ctx, e.db.Queries, approvalID)
	if err != nil {
		return Outcome{}, err
	}
	if e.now().Before(request.AutoApproveAt) {
		return Outcome{}, cricket.Conflictf("approval %s is not due until %s", approvalID, request.AutoApproveAt.Format(time.RFC3339))
	}
	if d.approve && !request.AutoApproveEnabled {
		return Outcome{}, cricket.Conflictf("approval %s does not allow auto-approval", approvalID)
	}
	match, err := e.loadMatch(ctx, e.db.Queries, request.MatchID)
	if err != nil {
		return Outcome{}, err
	}
	caps, err := e.loadCaptains(ctx, match)
	if err != nil {
		return Outcome{}, err
	}
	return e.resolve(ctx, approvalID, caps, d)
}

func (e *Engine) loadRequest(ctx context.Context, queries *dbgen.Queries, approvalID string) (dbgen.ApprovalRequest, error) {
	request, err := queries.GetApprovalRequest(ctx, approvalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbgen.ApprovalRequest{}, cricket.NotFound("approval", approvalID)
		}
		return dbgen.ApprovalRequest{}, db.Classify(err, "load approval")
	}
	return request, nil
}

func (e *Engine) resolve(ctx context.Context, approvalID string, caps captains, d decision) (Outcome, error) {
	logger := log.Ctx(ctx).With().
		Str("component", "approval_engine").
		Str("approval_id", approvalID).
		Str("responder_id", d.responderID).
		Str("decision", string(d.status)).
		Logger()

	now := e.now()
	var (
		outcome Outcome
		request dbgen.ApprovalRequest
		before  cricket.MatchStatus
	)
	err := e.db.RunInTx(ctx, func(txdb *db.DB) error {
		var err error
		request, err = e.loadRequest(ctx, txdb.Queries, approvalID)
		if err != nil {
			return err
		}
		if cricket.ApprovalStatus(request.Status) != cricket.ApprovalPending {
			return cricket.Conflictf("approval is already %s", request.Status)
		}
		match, err := e.loadMatch(ctx, txdb.Queries, request.MatchID)
		if err != nil {
			return err
		}
		before = cricket.MatchStatus(match.Status)
		if before.IsTerminal() {
			return cricket.Conflictf("match is already %s", before)
		}

		approvalType := cricket.ApprovalType(request.Type)
		st := stages[approvalType]
		if before != st.Pending {
			return cricket.StatusConflict([]cricket.MatchStatus{st.Pending}, before)
		}

		if !d.approve {
			outcome, err = e.rollback(ctx, txdb.Queries, request, st, d, now)
			return err
		}
		if approvalType == cricket.ApprovalFinalScore {
			outcome, err = e.signFinalScore(ctx, txdb.Queries, request, caps, d, now)
			return err
		}
		outcome, err = e.advance(ctx, txdb.Queries, request, st, d, now)
		return err
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Approval response failed")
		return Outcome{}, err
	}

	logger.Info().
		Str("match_id", request.MatchID).
		Str("match_status", string(outcome.MatchStatus)).
		Str("approval_status", string(outcome.Approval.Status)).
		Msg("Approval resolved")

	e.afterResolve(ctx, logger, request, caps, d, before, outcome, now)
	return outcome, nil
}

func (e *Engine) advance(ctx context.Context, queries *dbgen.Queries, request dbgen.ApprovalRequest, st stage, d decision, now time.Time) (Outcome, error) {
	resolved, err := e.closeRequest(ctx, queries, request.ID, d, now)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.transition(ctx, queries, request.MatchID, st.Pending, st.To, now); err != nil {
		return Outcome{}, err
	}

	stamp := dbgen.MarkStageApprovedParams{
		ID:         request.MatchID,
		ApprovedBy: sql.NullString{String: d.responderID, Valid: d.responderID != ""},
		ApprovedAt: now,
	}
	switch cricket.ApprovalType(request.Type) {
	case cricket.ApprovalStartScoring:
		err = queries.MarkScoringApproved(ctx, stamp)
	case cricket.ApprovalStartSecondInnings:
		err = queries.MarkSecondInningsApproved(ctx, stamp)
	}
	if err != nil {
		return Outcome{}, db.Classify(err, "record stage approval")
	}

	return Outcome{Approval: models.ApprovalRequestFromDB(resolved), MatchStatus: st.To}, nil
}

// signFinalScore adds the responder and the requester to the signer set and
// completes the match once both captains are in it.
func (e *Engine) signFinalScore(ctx context.Context, queries *dbgen.Queries, request dbgen.ApprovalRequest, caps captains, d decision, now time.Time) (Outcome, error) {
	responderID := d.responderID
	if d.auto {
		responderID = caps.opponentOf(request.RequestedBy)
	}
	signers := []dbgen.AddFinalApproverParams{
		{MatchID: request.MatchID, ApproverID: responderID, ApprovedAt: now, AutoApproved: d.auto},
		{MatchID: request.MatchID, ApproverID: request.RequestedBy, ApprovedAt: now},
	}
	for _, signer := range signers {
		if signer.ApproverID == "" {
			continue
		}
		if err := queries.AddFinalApprover(ctx, signer); err != nil {
			return Outcome{}, db.Classify(err, "record final score signature")
		}
	}

	approvers, err := queries.ListFinalApprovers(ctx, request.MatchID)
	if err != nil {
		return Outcome{}, db.Classify(err, "list final score signatures")
	}
	signed := 0
	for _, approver := range approvers {
		if caps.isCaptain(approver.ApproverID) {
			signed++
		}
	}

	if signed < requiredSignatures {
		return Outcome{
			Approval:    models.ApprovalRequestFromDB(request),
			MatchStatus: cricket.StatusFinalPending,
			Signatures:  signed,
		}, nil
	}

	st := stages[cricket.ApprovalFinalScore]
	resolved, err := e.closeRequest(ctx, queries, request.ID, d, now)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.transition(ctx, queries, request.MatchID, st.Pending, st.To, now); err != nil {
		return Outcome{}, err
	}
	if err := queries.MarkFinalApproved(ctx, dbgen.MarkStageApprovedParams{ID: request.MatchID, ApprovedAt: now}); err != nil {
		return Outcome{}, db.Classify(err, "record final approval")
	}

	return Outcome{
		Approval:    models.ApprovalRequestFromDB(resolved),
		MatchStatus: st.To,
		Signatures:  signed,
	}, nil
}

// rollback closes the request and returns the match to the status it had
// before the request was made.
func (e *Engine) rollback(ctx context.Context, queries *dbgen.Queries, request dbgen.ApprovalRequest, st stage, d decision, now time.Time) (Outcome, error) {
	resolved, err := e.closeRequest(ctx, queries, request.ID, d, now)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.transition(ctx, queries, request.MatchID, st.Pending, st.From, now); err != nil {
		return Outcome{}, err
	}
	if cricket.ApprovalType(request.Type) == cricket.ApprovalFinalScore {
		if err := queries.ClearFinalApprovers(ctx, request.MatchID); err != nil {
			return Outcome{}, db.Classify(err, "clear final score signatures")
		}
	}
	return Outcome{Approval: models.ApprovalRequestFromDB(resolved), MatchStatus: st.From}, nil
}

func (e *Engine) closeRequest(ctx context.Context, queries *dbgen.Queries, approvalID string, d decision, now time.Time) (dbgen.ApprovalRequest, error) {
	approvedBy := sql.NullString{}
	if d.approve && d.responderID != "" {
		approvedBy = sql.NullString{String: d.responderID, Valid: true}
	}
	resolved, err := queries.ResolveApprovalRequest(ctx, dbgen.ResolveApprovalRequestParams{
		ID:              approvalID,
		Status:          string(d.status),
		ApprovedBy:      approvedBy,
		ResolvedAt:      now,
		WasAutoApproved: d.auto && d.approve,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbgen.ApprovalRequest{}, cricket.Conflict("approval is no longer pending")
		}
		return dbgen.ApprovalRequest{}, db.Classify(err, "resolve approval")
	}
	return resolved, nil
}

// transition moves the match from one status to another, failing when a
// concurrent writer got there first.
func (e *Engine) transition(ctx context.Context, queries *dbgen.Queries, matchID string, from, to cricket.MatchStatus, now time.Time) error {
	changed, err := queries.TransitionMatchStatus(ctx, dbgen.TransitionMatchStatusParams{
		ID:        matchID,
		From:      string(from),
		To:        string(to),
		UpdatedAt: now,
	})
	if err != nil {
		return db.Classify(err, "update match status")
	}
	if changed == 0 {
		current, err := e.loadMatch(ctx, queries, matchID)
		if err != nil {
			return err
		}
		return cricket.StatusConflict([]cricket.MatchStatus{from}, cricket.MatchStatus(current.Status))
	}
	return nil
}

func (e *Engine) afterResolve(ctx context.Context, logger zerolog.Logger, request dbgen.ApprovalRequest, caps captains, d decision, before cricket.MatchStatus, outcome Outcome, now time.Time) {
	action := audit.ActionApprovalApproved
	switch {
	case d.approve && outcome.Approval.Status == cricket.ApprovalPending:
		action = audit.ActionApprovalSigned
	case d.status == cricket.ApprovalRejected:
		action = audit.ActionApprovalRejected
	case d.status == cricket.ApprovalCancelled:
		action = audit.ActionApprovalCancelled
	case d.status == cricket.ApprovalAutoApproved:
		action = audit.ActionApprovalAutoApproved
	case d.status == cricket.ApprovalExpired:
		action = audit.ActionApprovalExpired
	}
	e.audit.LogAction(ctx, audit.Event{
		ActorID:    d.responderID,
		Action:     action,
		MatchID:    request.MatchID,
		ApprovalID: request.ID,
		Before:     map[string]any{"status": before},
		After: map[string]any{
			"status":         outcome.MatchStatus,
			"approvalStatus": outcome.Approval.Status,
			"signatures":     outcome.Signatures,
		},
		At: now,
	})

	if outcome.Approval.Status != cricket.ApprovalPending {
		recipient := request.RequestedBy
		if d.status == cricket.ApprovalCancelled {
			recipient = caps.opponentOf(request.RequestedBy)
		}
		e.notifier.NotifyApprovalResolved(ctx, email.ApprovalNotice{
			ApprovalID:  request.ID,
			MatchID:     request.MatchID,
			Type:        request.Type,
			Status:      string(outcome.Approval.Status),
			RequestedBy: request.RequestedBy,
			RecipientID: recipient,
			MatchLabel:  caps.label(),
		})
	}

	if outcome.MatchStatus == cricket.StatusCompleted && e.stats != nil {
		if err := e.stats.RecalculateStats(ctx, request.MatchID); err != nil {
			logger.Error().Err(err).Str("match_id", request.MatchID).Msg("Stats recalculation failed after match completion")
		}
	}

	approval := outcome.Approval
	e.publishStatus(ctx, live.EventStatusChanged, request.MatchID, &approval)
}

// publishStatus pushes the committed match state to live subscribers.
func (e *Engine) publishStatus(ctx context.Context, kind, matchID string, approval *cricket.ApprovalRequest) {
	match, err := e.db.Queries.GetMatch(ctx, matchID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("match_id", matchID).Msg("Failed to load match for live update")
		return
	}
	update := live.NewUpdate(kind, models.MatchFromDB(match))
	update.Approval = approval
	e.publisher.Publish(update)
}

// GetPendingApprovalsForUser lists open requests the user is expected to
// answer: requests on matches where they captain a team and did not ask.
func (e *Engine) GetPendingApprovalsForUser(ctx context.Context, userID string) ([]cricket.ApprovalRequest, error) {
	if err := cricket.ValidateID("callerId", userID); err != nil {
		return nil, err
	}
	rows, err := e.db.Queries.ListPendingApprovalsForCaptain(ctx, userID)
	if err != nil {
		return nil, db.Classify(err, "list pending approvals")
	}
	return models.ApprovalRequestsFromDB(rows), nil
}

// ListApprovals returns every request made for a match, oldest first.
func (e *Engine) ListApprovals(ctx context.Context, matchID string) ([]cricket.ApprovalRequest, error) {
	if err := cricket.ValidateID("matchId", matchID); err != nil {
		return nil, err
	}
	if _, err := e.loadMatch(ctx, e.db.Queries, matchID); err != nil {
		return nil, err
	}
	rows, err := e.db.Queries.ListApprovalsByMatch(ctx, matchID)
	if err != nil {
		return nil, db.Classify(err, "list approvals")
	}
	return models.ApprovalRequestsFromDB(rows), nil
}

// DueApprovals lists pending requests whose auto-approval deadline is at or
// before now.
func (e *Engine) DueApprovals(ctx context.Context, now time.Time) ([]cricket.ApprovalRequest, error) {
	rows, err := e.db.Queries.ListDueApprovals(ctx, now.UTC())
	if err != nil {
		return nil, db.Classify(err, "list due approvals")
	}
	return models.ApprovalRequestsFromDB(rows), nil
}
