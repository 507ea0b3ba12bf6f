// Package audit records who changed a match and how.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	dbgen "github.com/codr1/crease/internal/db/generated"
)

const (
	ActionApprovalRequested    = "approval.requested"
	ActionApprovalApproved     = "approval.approved"
	ActionApprovalSigned       = "approval.signed"
	ActionApprovalRejected     = "approval.rejected"
	ActionApprovalCancelled    = "approval.cancelled"
	ActionApprovalAutoApproved = "approval.auto_approved"
	ActionApprovalExpired      = "approval.expired"
	ActionMatchStartRequest    = "match_start.requested"
	ActionMatchStartResolved   = "match_start.resolved"
	ActionBallEntered          = "ball.entered"
	ActionBallUndone           = "ball.undone"
)

// Event is one audited action. Before and After are encoded as JSON.
type Event struct {
	ActorID    string
	Action     string
	MatchID    string
	ApprovalID string
	Before     any
	After      any
	At         time.Time
}

// Logger is the sink the engines write to.
type Logger interface {
	LogAction(ctx context.Context, evt Event)
}

type Store interface {
	CreateAuditLog(ctx context.Context, arg dbgen.CreateAuditLogParams) (dbgen.AuditLog, error)
}

// Recorder appends events to the audit_log table. Failures are logged and
// never returned.
type Recorder struct {
	store Store
	clock func() time.Time
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, clock: time.Now}
}

func (r *Recorder) LogAction(ctx context.Context, evt Event) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.record(ctx, evt); err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("action", evt.Action).
			Str("match_id", evt.MatchID).
			Msg("Failed to record audit event")
	}
}

func (r *Recorder) record(ctx context.Context, evt Event) error {
	if evt.At.IsZero() {
		evt.At = r.clock().UTC()
	}
	before, err := encodeState(evt.Before)
	if err != nil {
		return fmt.Errorf("encode before state: %w", err)
	}
	after, err := encodeState(evt.After)
	if err != nil {
		return fmt.Errorf("encode after state: %w", err)
	}
	_, err = r.store.CreateAuditLog(ctx, dbgen.CreateAuditLogParams{
		ActorID:     optional(evt.ActorID),
		Action:      evt.Action,
		MatchID:     optional(evt.MatchID),
		ApprovalID:  optional(evt.ApprovalID),
		BeforeState: before,
		AfterState:  after,
		CreatedAt:   evt.At,
	})
	return err
}

func encodeState(state any) (sql.NullString, error) {
	if state == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func optional(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

// Nop discards every event.
type Nop struct{}

func (Nop) LogAction(context.Context, Event) {}
