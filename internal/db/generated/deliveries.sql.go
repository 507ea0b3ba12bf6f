package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const deliveryColumns = `seq, id, match_id, innings, over_number, ball_number,
    striker_id, non_striker_id, bowler_id, runs,
    is_wicket, wicket_kind, dismissed_id, fielder_id,
    is_wide, is_no_ball, is_bye, is_leg_bye, entered_at, entered_by`

func scanDelivery(row interface{ Scan(...any) error }) (Delivery, error) {
	var i Delivery
	err := row.Scan(
		&i.Seq,
		&i.ID,
		&i.MatchID,
		&i.Innings,
		&i.OverNumber,
		&i.BallNumber,
		&i.StrikerID,
		&i.NonStrikerID,
		&i.BowlerID,
		&i.Runs,
		&i.IsWicket,
		&i.WicketKind,
		&i.DismissedID,
		&i.FielderID,
		&i.IsWide,
		&i.IsNoBall,
		&i.IsBye,
		&i.IsLegBye,
		&i.EnteredAt,
		&i.EnteredBy,
	)
	return i, err
}

func scanDeliveries(rows *sql.Rows) ([]Delivery, error) {
	defer rows.Close()
	var items []Delivery
	for rows.Next() {
		i, err := scanDelivery(rows)
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

const insertDelivery = `
INSERT INTO deliveries (
    id, match_id, innings, over_number, ball_number,
    striker_id, non_striker_id, bowler_id, runs,
    is_wicket, wicket_kind, dismissed_id, fielder_id,
    is_wide, is_no_ball, is_bye, is_leg_bye, entered_at, entered_by
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + deliveryColumns

type InsertDeliveryParams struct {
	ID           string
	MatchID      string
	Innings      int64
	OverNumber   int64
	BallNumber   int64
	StrikerID    string
	NonStrikerID string
	BowlerID     string
	Runs         int64
	IsWicket     bool
	WicketKind   sql.NullString
	DismissedID  sql.NullString
	FielderID    sql.NullString
	IsWide       bool
	IsNoBall     bool
	IsBye        bool
	IsLegBye     bool
	EnteredAt    time.Time
	EnteredBy    string
}

func (q *Queries) InsertDelivery(ctx context.Context, arg InsertDeliveryParams) (Delivery, error) {
	row := q.db.QueryRowContext(ctx, insertDelivery,
		arg.ID,
		arg.MatchID,
		arg.Innings,
		arg.OverNumber,
		arg.BallNumber,
		arg.StrikerID,
		arg.NonStrikerID,
		arg.BowlerID,
		arg.Runs,
		arg.IsWicket,
		arg.WicketKind,
		arg.DismissedID,
		arg.FielderID,
		arg.IsWide,
		arg.IsNoBall,
		arg.IsBye,
		arg.IsLegBye,
		arg.EnteredAt,
		arg.EnteredBy,
	)
	return scanDelivery(row)
}

type OverKey struct {
	MatchID    string
	Innings    int64
	OverNumber int64
}

const countLegalBallsInOver = `
SELECT COUNT(*) FROM deliveries
WHERE match_id = ? AND innings = ? AND over_number = ?
  AND is_wide = 0 AND is_no_ball = 0`

func (q *Queries) CountLegalBallsInOver(ctx context.Context, arg OverKey) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countLegalBallsInOver, arg.MatchID, arg.Innings, arg.OverNumber).Scan(&count)
	return count, err
}

const deliveryPositionTaken = `
SELECT EXISTS (
    SELECT 1 FROM deliveries
    WHERE match_id = ? AND innings = ? AND over_number = ? AND ball_number = ?
)`

func (q *Queries) DeliveryPositionTaken(ctx context.Context, arg OverKey, ballNumber int64) (bool, error) {
	var taken bool
	err := q.db.QueryRowContext(ctx, deliveryPositionTaken, arg.MatchID, arg.Innings, arg.OverNumber, ballNumber).Scan(&taken)
	return taken, err
}

const listDeliveriesByMatch = `SELECT ` + deliveryColumns + `
FROM deliveries
WHERE match_id = ?
ORDER BY innings, over_number, ball_number, seq`

func (q *Queries) ListDeliveriesByMatch(ctx context.Context, matchID string) ([]Delivery, error) {
	rows, err := q.db.QueryContext(ctx, listDeliveriesByMatch, matchID)
	if err != nil {
		return nil, err
	}
	return scanDeliveries(rows)
}

const listDeliveriesByInnings = `SELECT ` + deliveryColumns + `
FROM deliveries
WHERE match_id = ? AND innings = ?
ORDER BY over_number, ball_number, seq`

func (q *Queries) ListDeliveriesByInnings(ctx context.Context, matchID string, innings int64) ([]Delivery, error) {
	rows, err := q.db.QueryContext(ctx, listDeliveriesByInnings, matchID, innings)
	if err != nil {
		return nil, err
	}
	return scanDeliveries(rows)
}

const listDeliveriesByOver = `SELECT ` + deliveryColumns + `
FROM deliveries
WHERE match_id = ? AND innings = ? AND over_number = ?
ORDER BY ball_number, seq`

func (q *Queries) ListDeliveriesByOver(ctx context.Context, arg OverKey) ([]Delivery, error) {
	rows, err := q.db.QueryContext(ctx, listDeliveriesByOver, arg.MatchID, arg.Innings, arg.OverNumber)
	if err != nil {
		return nil, err
	}
	return scanDeliveries(rows)
}

const getLatestDelivery = `SELECT ` + deliveryColumns + `
FROM deliveries
WHERE match_id = ?
ORDER BY entered_at DESC, seq DESC
LIMIT 1`

func (q *Queries) GetLatestDelivery(ctx context.Context, matchID string) (Delivery, error) {
	return scanDelivery(q.db.QueryRowContext(ctx, getLatestDelivery, matchID))
}

const getLatestDeliveryInInnings = `SELECT ` + deliveryColumns + `
FROM deliveries
WHERE match_id = ? AND innings = ?
ORDER BY entered_at DESC, seq DESC
LIMIT 1`

func (q *Queries) GetLatestDeliveryInInnings(ctx context.Context, matchID string, innings int64) (Delivery, error) {
	return scanDelivery(q.db.QueryRowContext(ctx, getLatestDeliveryInInnings, matchID, innings))
}

const deleteDelivery = `DELETE FROM deliveries WHERE id = ?`

func (q *Queries) DeleteDelivery(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDelivery, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
