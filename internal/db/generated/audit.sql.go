package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const createAuditLog = `
INSERT INTO audit_log (actor_id, action, match_id, approval_id, before_state, after_state, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id, actor_id, action, match_id, approval_id, before_state, after_state, created_at`

type CreateAuditLogParams struct {
	ActorID     sql.NullString
	Action      string
	MatchID     sql.NullString
	ApprovalID  sql.NullString
	BeforeState sql.NullString
	AfterState  sql.NullString
	CreatedAt   time.Time
}

func (q *Queries) CreateAuditLog(ctx context.Context, arg CreateAuditLogParams) (AuditLog, error) {
	var i AuditLog
	err := q.db.QueryRowContext(ctx, createAuditLog,
		arg.ActorID,
		arg.Action,
		arg.MatchID,
		arg.ApprovalID,
		arg.BeforeState,
		arg.AfterState,
		arg.CreatedAt,
	).Scan(
		&i.ID,
		&i.ActorID,
		&i.Action,
		&i.MatchID,
		&i.ApprovalID,
		&i.BeforeState,
		&i.AfterState,
		&i.CreatedAt,
	)
	return i, err
}

const listAuditLogByMatch = `
SELECT id, actor_id, action, match_id, approval_id, before_state, after_state, created_at
FROM audit_log
WHERE match_id = ?
ORDER BY id`

func (q *Queries) ListAuditLogByMatch(ctx context.Context, matchID string) ([]AuditLog, error) {
	rows, err := q.db.QueryContext(ctx, listAuditLogByMatch, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AuditLog
	for rows.Next() {
		var i AuditLog
		if err := rows.Scan(
			&i.ID,
			&i.ActorID,
			&i.Action,
			&i.MatchID,
			&i.ApprovalID,
			&i.BeforeState,
			&i.AfterState,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
