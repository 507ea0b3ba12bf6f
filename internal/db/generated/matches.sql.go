package dbgen

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

const matchColumns = `id, tournament_id, team_a_id, team_b_id, venue, scheduled_at, status,
    innings1_runs, innings1_wickets, innings1_overs,
    innings2_runs, innings2_wickets, innings2_overs,
    scoring_approved_by, scoring_approved_at,
    second_innings_approved_by, second_innings_approved_at,
    first_innings_complete, second_innings_complete,
    final_approved_at, live_approved_by, updated_at`

func scanMatch(row interface{ Scan(...any) error }) (Match, error) {
	var i Match
	err := row.Scan(
		&i.ID,
		&i.TournamentID,
		&i.TeamAID,
		&i.TeamBID,
		&i.Venue,
		&i.ScheduledAt,
		&i.Status,
		&i.Innings1Runs,
		&i.Innings1Wickets,
		&i.Innings1Overs,
		&i.Innings2Runs,
		&i.Innings2Wickets,
		&i.Innings2Overs,
		&i.ScoringApprovedBy,
		&i.ScoringApprovedAt,
		&i.SecondInningsApprovedBy,
		&i.SecondInningsApprovedAt,
		&i.FirstInningsComplete,
		&i.SecondInningsComplete,
		&i.FinalApprovedAt,
		&i.LiveApprovedBy,
		&i.UpdatedAt,
	)
	return i, err
}

const getMatch = `SELECT ` + matchColumns + ` FROM matches WHERE id = ?`

func (q *Queries) GetMatch(ctx context.Context, id string) (Match, error) {
	return scanMatch(q.db.QueryRowContext(ctx, getMatch, id))
}

const createMatch = `
INSERT INTO matches (id, tournament_id, team_a_id, team_b_id, venue, scheduled_at, status, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + matchColumns

type CreateMatchParams struct {
	ID           string
	TournamentID sql.NullString
	TeamAID      string
	TeamBID      string
	Venue        string
	ScheduledAt  time.Time
	Status       string
	UpdatedAt    time.Time
}

func (q *Queries) CreateMatch(ctx context.Context, arg CreateMatchParams) (Match, error) {
	row := q.db.QueryRowContext(ctx, createMatch,
		arg.ID,
		arg.TournamentID,
		arg.TeamAID,
		arg.TeamBID,
		arg.Venue,
		arg.ScheduledAt,
		arg.Status,
		arg.UpdatedAt,
	)
	return scanMatch(row)
}

const transitionMatchStatus = `
UPDATE matches
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?`

type TransitionMatchStatusParams struct {
	ID        string
	From      string
	To        string
	UpdatedAt time.Time
}

// TransitionMatchStatus moves a match from one status to another and reports
// how many rows changed; zero means the match was no longer in From.
func (q *Queries) TransitionMatchStatus(ctx context.Context, arg TransitionMatchStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, transitionMatchStatus, arg.To, arg.UpdatedAt, arg.ID, arg.From)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markScoringApproved = `
UPDATE matches
SET scoring_approved_by = ?, scoring_approved_at = ?, updated_at = ?
WHERE id = ?`

type MarkStageApprovedParams struct {
	ID         string
	ApprovedBy sql.NullString
	ApprovedAt time.Time
}

func (q *Queries) MarkScoringApproved(ctx context.Context, arg MarkStageApprovedParams) error {
	_, err := q.db.ExecContext(ctx, markScoringApproved, arg.ApprovedBy, arg.ApprovedAt, arg.ApprovedAt, arg.ID)
	return err
}

const markSecondInningsApproved = `
UPDATE matches
SET second_innings_approved_by = ?, second_innings_approved_at = ?,
    first_innings_complete = 1, updated_at = ?
WHERE id = ?`

func (q *Queries) MarkSecondInningsApproved(ctx context.Context, arg MarkStageApprovedParams) error {
	_, err := q.db.ExecContext(ctx, markSecondInningsApproved, arg.ApprovedBy, arg.ApprovedAt, arg.ApprovedAt, arg.ID)
	return err
}

const markFinalApproved = `
UPDATE matches
SET final_approved_at = ?, second_innings_complete = 1, updated_at = ?
WHERE id = ?`

func (q *Queries) MarkFinalApproved(ctx context.Context, arg MarkStageApprovedParams) error {
	_, err := q.db.ExecContext(ctx, markFinalApproved, arg.ApprovedAt, arg.ApprovedAt, arg.ID)
	return err
}

const markLiveApproved = `
UPDATE matches
SET live_approved_by = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) MarkLiveApproved(ctx context.Context, arg MarkStageApprovedParams) error {
	_, err := q.db.ExecContext(ctx, markLiveApproved, arg.ApprovedBy, arg.ApprovedAt, arg.ID)
	return err
}

const updateInnings1Score = `
UPDATE matches
SET innings1_runs = ?, innings1_wickets = ?, innings1_overs = ?, updated_at = ?
WHERE id = ?`

const updateInnings2Score = `
UPDATE matches
SET innings2_runs = ?, innings2_wickets = ?, innings2_overs = ?, updated_at = ?
WHERE id = ?`

type UpdateInningsScoreParams struct {
	ID        string
	Innings   int64
	Runs      int64
	Wickets   int64
	Overs     decimal.Decimal
	UpdatedAt time.Time
}

func (q *Queries) UpdateInningsScore(ctx context.Context, arg UpdateInningsScoreParams) error {
	query := updateInnings1Score
	if arg.Innings == 2 {
		query = updateInnings2Score
	}
	_, err := q.db.ExecContext(ctx, query, arg.Runs, arg.Wickets, arg.Overs, arg.UpdatedAt, arg.ID)
	return err
}

const listCompletedTournamentMatches = `SELECT ` + matchColumns + `
FROM matches
WHERE tournament_id = ? AND status = 'COMPLETED'
ORDER BY scheduled_at, id`

func (q *Queries) ListCompletedTournamentMatches(ctx context.Context, tournamentID string) ([]Match, error) {
	rows, err := q.db.QueryContext(ctx, listCompletedTournamentMatches, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Match
	for rows.Next() {
		i, err := scanMatch(rows)
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
