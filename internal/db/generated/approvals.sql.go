package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const approvalColumns = `id, match_id, type, requested_by, status, approved_by,
    requested_at, resolved_at, auto_approve_at, auto_approve_enabled, was_auto_approved`

func scanApprovalRequest(row interface{ Scan(...any) error }) (ApprovalRequest, error) {
	var i ApprovalRequest
	err := row.Scan(
		&i.ID,
		&i.MatchID,
		&i.Type,
		&i.RequestedBy,
		&i.Status,
		&i.ApprovedBy,
		&i.RequestedAt,
		&i.ResolvedAt,
		&i.AutoApproveAt,
		&i.AutoApproveEnabled,
		&i.WasAutoApproved,
	)
	return i, err
}

func scanApprovalRequests(rows *sql.Rows) ([]ApprovalRequest, error) {
	defer rows.Close()
	var items []ApprovalRequest
	for rows.Next() {
		i, err := scanApprovalRequest(rows)
		if err != nil {
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

const cancelPendingApprovals = `
UPDATE approval_requests
SET status = 'CANCELLED', resolved_at = ?
WHERE match_id = ? AND type = ? AND status = 'PENDING'`

type CancelPendingApprovalsParams struct {
	MatchID    string
	Type       string
	ResolvedAt time.Time
}

func (q *Queries) CancelPendingApprovals(ctx context.Context, arg CancelPendingApprovalsParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, cancelPendingApprovals, arg.ResolvedAt, arg.MatchID, arg.Type)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createApprovalRequest = `
INSERT INTO approval_requests (
    id, match_id, type, requested_by, status, requested_at, auto_approve_at, auto_approve_enabled
) VALUES (?, ?, ?, ?, 'PENDING', ?, ?, ?)
RETURNING ` + approvalColumns

type CreateApprovalRequestParams struct {
	ID                 string
	MatchID            string
	Type               string
	RequestedBy        string
	RequestedAt        time.Time
	AutoApproveAt      time.Time
	AutoApproveEnabled bool
}

func (q *Queries) CreateApprovalRequest(ctx context.Context, arg CreateApprovalRequestParams) (ApprovalRequest, error) {
	row := q.db.QueryRowContext(ctx, createApprovalRequest,
		arg.ID,
		arg.MatchID,
		arg.Type,
		arg.RequestedBy,
		arg.RequestedAt,
		arg.AutoApproveAt,
		arg.AutoApproveEnabled,
	)
	return scanApprovalRequest(row)
}

const getApprovalRequest = `SELECT ` + approvalColumns + ` FROM approval_requests WHERE id = ?`

func (q *Queries) GetApprovalRequest(ctx context.Context, id string) (ApprovalRequest, error) {
	return scanApprovalRequest(q.db.QueryRowContext(ctx, getApprovalRequest, id))
}

const resolveApprovalRequest = `
UPDATE approval_requests
SET status = ?, approved_by = ?, resolved_at = ?, was_auto_approved = ?
WHERE id = ? AND status = 'PENDING'
RETURNING ` + approvalColumns

type ResolveApprovalRequestParams struct {
	ID              string
	Status          string
	ApprovedBy      sql.NullString
	ResolvedAt      time.Time
	WasAutoApproved bool
}

// ResolveApprovalRequest returns sql.ErrNoRows when the request is no longer pending.
func (q *Queries) ResolveApprovalRequest(ctx context.Context, arg ResolveApprovalRequestParams) (ApprovalRequest, error) {
	row := q.db.QueryRowContext(ctx, resolveApprovalRequest,
		arg.Status,
		arg.ApprovedBy,
		arg.ResolvedAt,
		arg.WasAutoApproved,
		arg.ID,
	)
	return scanApprovalRequest(row)
}

const listPendingApprovalsForCaptain = `
SELECT ar.id, ar.match_id, ar.type, ar.requested_by, ar.status, ar.approved_by,
    ar.requested_at, ar.resolved_at, ar.auto_approve_at, ar.auto_approve_enabled, ar.was_auto_approved
FROM approval_requests ar
JOIN matches m ON m.id = ar.match_id
JOIN teams ta ON ta.id = m.team_a_id
JOIN teams tb ON tb.id = m.team_b_id
WHERE ar.status = 'PENDING'
  AND ar.requested_by <> ?1
  AND (ta.captain_id = ?1 OR tb.captain_id = ?1)
ORDER BY ar.requested_at, ar.id`

func (q *Queries) ListPendingApprovalsForCaptain(ctx context.Context, userID string) ([]ApprovalRequest, error) {
	rows, err := q.db.QueryContext(ctx, listPendingApprovalsForCaptain, userID)
	if err != nil {
		return nil, err
	}
	return scanApprovalRequests(rows)
}

const listApprovalsByMatch = `SELECT ` + approvalColumns + `
FROM approval_requests
WHERE match_id = ?
ORDER BY requested_at, id`

func (q *Queries) ListApprovalsByMatch(ctx context.Context, matchID string) ([]ApprovalRequest, error) {
	rows, err := q.db.QueryContext(ctx, listApprovalsByMatch, matchID)
	if err != nil {
		return nil, err
	}
	return scanApprovalRequests(rows)
}

const listDueApprovals = `SELECT ` + approvalColumns + `
FROM approval_requests
WHERE status = 'PENDING' AND auto_approve_at <= ?
ORDER BY auto_approve_at, id`

func (q *Queries) ListDueApprovals(ctx context.Context, now time.Time) ([]ApprovalRequest, error) {
	rows, err := q.db.QueryContext(ctx, listDueApprovals, now)
	if err != nil {
		return nil, err
	}
	return scanApprovalRequests(rows)
}

const addFinalApprover = `
INSERT INTO match_final_approvals (match_id, approver_id, approved_at, auto_approved)
VALUES (?, ?, ?, ?)
ON CONFLICT (match_id, approver_id) DO NOTHING`

type AddFinalApproverParams struct {
	MatchID      string
	ApproverID   string
	ApprovedAt   time.Time
	AutoApproved bool
}

func (q *Queries) AddFinalApprover(ctx context.Context, arg AddFinalApproverParams) error {
	_, err := q.db.ExecContext(ctx, addFinalApprover, arg.MatchID, arg.ApproverID, arg.ApprovedAt, arg.AutoApproved)
	return err
}

const listFinalApprovers = `
SELECT match_id, approver_id, approved_at, auto_approved
FROM match_final_approvals
WHERE match_id = ?
ORDER BY approved_at, approver_id`

func (q *Queries) ListFinalApprovers(ctx context.Context, matchID string) ([]MatchFinalApproval, error) {
	rows, err := q.db.QueryContext(ctx, listFinalApprovers, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MatchFinalApproval
	for rows.Next() {
		var i MatchFinalApproval
		if err := rows.Scan(&i.MatchID, &i.ApproverID, &i.ApprovedAt, &i.AutoApproved); err != nil {
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

const clearFinalApprovers = `DELETE FROM match_final_approvals WHERE match_id = ?`

func (q *Queries) ClearFinalApprovers(ctx context.Context, matchID string) error {
	_, err := q.db.ExecContext(ctx, clearFinalApprovers, matchID)
	return err
}

const matchStartColumns = `id, match_id, requested_by, status, approved_by, requested_at, resolved_at`

func scanMatchStartApproval(row interface{ Scan(...any) error }) (MatchStartApproval, error) {
	var i MatchStartApproval
	err := row.Scan(
		&i.ID,
		&i.MatchID,
		&i.RequestedBy,
		&i.Status,
		&i.ApprovedBy,
		&i.RequestedAt,
		&i.ResolvedAt,
	)
	return i, err
}

const cancelPendingMatchStarts = `
UPDATE match_start_approvals
SET status = 'CANCELLED', resolved_at = ?
WHERE match_id = ? AND status = 'PENDING'`

func (q *Queries) CancelPendingMatchStarts(ctx context.Context, matchID string, resolvedAt time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, cancelPendingMatchStarts, resolvedAt, matchID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createMatchStartApproval = `
INSERT INTO match_start_approvals (id, match_id, requested_by, status, requested_at)
VALUES (?, ?, ?, 'PENDING', ?)
RETURNING ` + matchStartColumns

type CreateMatchStartApprovalParams struct {
	ID          string
	MatchID     string
	RequestedBy string
	RequestedAt time.Time
}

func (q *Queries) CreateMatchStartApproval(ctx context.Context, arg CreateMatchStartApprovalParams) (MatchStartApproval, error) {
	row := q.db.QueryRowContext(ctx, createMatchStartApproval, arg.ID, arg.MatchID, arg.RequestedBy, arg.RequestedAt)
	return scanMatchStartApproval(row)
}

const getMatchStartApproval = `SELECT ` + matchStartColumns + ` FROM match_start_approvals WHERE id = ?`

func (q *Queries) GetMatchStartApproval(ctx context.Context, id string) (MatchStartApproval, error) {
	return scanMatchStartApproval(q.db.QueryRowContext(ctx, getMatchStartApproval, id))
}

const resolveMatchStartApproval = `
UPDATE match_start_approvals
SET status = ?, approved_by = ?, resolved_at = ?
WHERE id = ? AND status = 'PENDING'
RETURNING ` + matchStartColumns

type ResolveMatchStartApprovalParams struct {
	ID         string
	Status     string
	ApprovedBy sql.NullString
	ResolvedAt time.Time
}

func (q *Queries) ResolveMatchStartApproval(ctx context.Context, arg ResolveMatchStartApprovalParams) (MatchStartApproval, error) {
	row := q.db.QueryRowContext(ctx, resolveMatchStartApproval, arg.Status, arg.ApprovedBy, arg.ResolvedAt, arg.ID)
	return scanMatchStartApproval(row)
}
