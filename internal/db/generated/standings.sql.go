package dbgen

import (
	"context"
)

const deleteTournamentStandings = `DELETE FROM tournament_standings WHERE tournament_id = ?`

func (q *Queries) DeleteTournamentStandings(ctx context.Context, tournamentID string) error {
	_, err := q.db.ExecContext(ctx, deleteTournamentStandings, tournamentID)
	return err
}

const insertTournamentStanding = `
INSERT INTO tournament_standings (
    tournament_id, team_id, played, won, lost, tied, points,
    runs_for, runs_against, net_run_rate, position, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTournamentStanding(ctx context.Context, arg TournamentStanding) error {
	_, err := q.db.ExecContext(ctx, insertTournamentStanding,
		arg.TournamentID,
		arg.TeamID,
		arg.Played,
		arg.Won,
		arg.Lost,
		arg.Tied,
		arg.Points,
		arg.RunsFor,
		arg.RunsAgainst,
		arg.NetRunRate,
		arg.Position,
		arg.UpdatedAt,
	)
	return err
}

const listTournamentStandings = `
SELECT tournament_id, team_id, played, won, lost, tied, points,
    runs_for, runs_against, net_run_rate, position, updated_at
FROM tournament_standings
WHERE tournament_id = ?
ORDER BY position`

func (q *Queries) ListTournamentStandings(ctx context.Context, tournamentID string) ([]TournamentStanding, error) {
	rows, err := q.db.QueryContext(ctx, listTournamentStandings, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TournamentStanding
	for rows.Next() {
		var i TournamentStanding
		if err := rows.Scan(
			&i.TournamentID,
			&i.TeamID,
			&i.Played,
			&i.Won,
			&i.Lost,
			&i.Tied,
			&i.Points,
			&i.RunsFor,
			&i.RunsAgainst,
			&i.NetRunRate,
			&i.Position,
			&i.UpdatedAt,
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
