// Package leagues keeps tournament standings in step with completed matches.
package leagues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/codr1/crease/internal/cricket"
	db "github.com/codr1/crease/internal/db"
	dbgen "github.com/codr1/crease/internal/db/generated"
)

const (
	PointsWin  = 2
	PointsTie  = 1
	PointsLoss = 0
)

var (
	ballsPerOver = decimal.NewFromInt(cricket.MaxLegalBallsPerOver)
	nrrPlaces    = int32(3)
)

type TeamStanding struct {
	TeamID      string          `json:"teamId"`
	Position    int             `json:"position"`
	Played      int             `json:"played"`
	Won         int             `json:"won"`
	Lost        int             `json:"lost"`
	Tied        int             `json:"tied"`
	Points      int             `json:"points"`
	RunsFor     int             `json:"runsFor"`
	RunsAgainst int             `json:"runsAgainst"`
	NetRunRate  decimal.Decimal `json:"netRunRate"`
}

type teamStats struct {
	TeamStanding
	ballsFaced       int
	ballsBowled      int
	headToHeadPoints map[string]int
}

func (t *teamStats) record(runsFor, ballsFaced, runsAgainst, ballsBowled int, opponentID string) {
	t.Played++
	t.RunsFor += runsFor
	t.RunsAgainst += runsAgainst
	t.ballsFaced += ballsFaced
	t.ballsBowled += ballsBowled

	switch {
	case runsFor > runsAgainst:
		t.Won++
		t.Points += PointsWin
		t.headToHeadPoints[opponentID] += PointsWin
	case runsFor < runsAgainst:
		t.Lost++
		t.Points += PointsLoss
	default:
		t.Tied++
		t.Points += PointsTie
		t.headToHeadPoints[opponentID] += PointsTie
	}
}

// netRunRate is runs scored per over faced minus runs conceded per over bowled.
func (t *teamStats) netRunRate() decimal.Decimal {
	return runRate(t.RunsFor, t.ballsFaced).Sub(runRate(t.RunsAgainst, t.ballsBowled)).Round(nrrPlaces)
}

func runRate(runs, balls int) decimal.Decimal {
	if balls == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(runs)).Mul(ballsPerOver).Div(decimal.NewFromInt(int64(balls)))
}

// CalculateStandings ranks every team that appears in the given completed
// matches. Team A bats first, so innings 1 is team A's total.
func CalculateStandings(matches []dbgen.Match) ([]TeamStanding, error) {
	teams := make(map[string]*teamStats)
	entry := func(teamID string) *teamStats {
		team, ok := teams[teamID]
		if !ok {
			team = &teamStats{
				TeamStanding:     TeamStanding{TeamID: teamID},
				headToHeadPoints: make(map[string]int),
			}
			teams[teamID] = team
		}
		return team
	}

	for _, match := range matches {
		if cricket.MatchStatus(match.Status) != cricket.StatusCompleted {
			return nil, fmt.Errorf("match %s is %s, not COMPLETED", match.ID, match.Status)
		}
		if match.TeamAID == match.TeamBID {
			return nil, fmt.Errorf("match %s has the same team on both sides", match.ID)
		}

		ballsA := cricket.BallsFromOvers(match.Innings1Overs)
		ballsB := cricket.BallsFromOvers(match.Innings2Overs)
		runsA := int(match.Innings1Runs)
		runsB := int(match.Innings2Runs)

		entry(match.TeamAID).record(runsA, ballsA, runsB, ballsB, match.TeamBID)
		entry(match.TeamBID).record(runsB, ballsB, runsA, ballsA, match.TeamAID)
	}

	ordered := make([]*teamStats, 0, len(teams))
	for _, team := range teams {
		team.NetRunRate = team.netRunRate()
		ordered = append(ordered, team)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Points != ordered[j].Points {
			return ordered[i].Points > ordered[j].Points
		}
		return ordered[i].TeamID < ordered[j].TeamID
	})

	sortStandingsByTiebreakers(ordered)

	standings := make([]TeamStanding, 0, len(ordered))
	for i, team := range ordered {
		team.Position = i + 1
		standings = append(standings, team.TeamStanding)
	}
	return standings, nil
}

// sortStandingsByTiebreakers orders teams level on points by net run rate,
// then head-to-head points among the level teams, then runs scored.
func sortStandingsByTiebreakers(ordered []*teamStats) {
	if len(ordered) < 2 {
		return
	}

	start := 0
	for start < len(ordered) {
		end := start + 1
		for end < len(ordered) && ordered[end].Points == ordered[start].Points {
			end++
		}

		if end-start > 1 {
			group := ordered[start:end]
			groupSet := make(map[string]struct{}, len(group))
			for _, team := range group {
				groupSet[team.TeamID] = struct{}{}
			}

			sort.SliceStable(group, func(i, j int) bool {
				if cmp := group[i].NetRunRate.Cmp(group[j].NetRunRate); cmp != 0 {
					return cmp > 0
				}
				headToHeadI := headToHeadPoints(group[i], groupSet)
				headToHeadJ := headToHeadPoints(group[j], groupSet)
				if headToHeadI != headToHeadJ {
					return headToHeadI > headToHeadJ
				}
				if group[i].RunsFor != group[j].RunsFor {
					return group[i].RunsFor > group[j].RunsFor
				}
				return group[i].TeamID < group[j].TeamID
			})
		}

		start = end
	}
}

func headToHeadPoints(team *teamStats, group map[string]struct{}) int {
	total := 0
	for opponentID, points := range team.headToHeadPoints {
		if _, ok := group[opponentID]; ok {
			total += points
		}
	}
	return total
}

// Recalculator rebuilds a tournament's standings table when one of its
// matches completes.
type Recalculator struct {
	db    *db.DB
	clock func() time.Time
}

func NewRecalculator(database *db.DB) (*Recalculator, error) {
	if database == nil {
		return nil, errors.New("stats recalculator requires a database")
	}
	return &Recalculator{db: database, clock: time.Now}, nil
}

// RecalculateStats replaces the standings of the match's tournament. Matches
// outside a tournament have nothing to update.
func (r *Recalculator) RecalculateStats(ctx context.Context, matchID string) error {
	logger := log.Ctx(ctx).With().
		Str("component", "stats_recalculator").
		Str("match_id", matchID).
		Logger()

	match, err := r.db.Queries.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cricket.NotFound("match", matchID)
		}
		return fmt.Errorf("load match: %w", err)
	}
	if !match.TournamentID.Valid {
		logger.Debug().Msg("Match is not part of a tournament; skipping standings")
		return nil
	}
	tournamentID := match.TournamentID.String
	now := r.clock().UTC()

	var standings []TeamStanding
	err = r.db.RunInTx(ctx, func(txdb *db.DB) error {
		matches, err := txdb.Queries.ListCompletedTournamentMatches(ctx, tournamentID)
		if err != nil {
			return fmt.Errorf("list completed matches: %w", err)
		}
		standings, err = CalculateStandings(matches)
		if err != nil {
			return err
		}

		if err := txdb.Queries.DeleteTournamentStandings(ctx, tournamentID); err != nil {
			return fmt.Errorf("clear standings: %w", err)
		}
		for _, standing := range standings {
			if err := txdb.Queries.InsertTournamentStanding(ctx, dbgen.TournamentStanding{
				TournamentID: tournamentID,
				TeamID:       standing.TeamID,
				Played:       int64(standing.Played),
				Won:          int64(standing.Won),
				Lost:         int64(standing.Lost),
				Tied:         int64(standing.Tied),
				Points:       int64(standing.Points),
				RunsFor:      int64(standing.RunsFor),
				RunsAgainst:  int64(standing.RunsAgainst),
				NetRunRate:   standing.NetRunRate,
				Position:     int64(standing.Position),
				UpdatedAt:    now,
			}); err != nil {
				return fmt.Errorf("store standing for team %s: %w", standing.TeamID, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Str("tournament_id", tournamentID).Msg("Failed to recalculate standings")
		return err
	}

	logger.Info().
		Str("tournament_id", tournamentID).
		Int("teams", len(standings)).
		Msg("Standings recalculated")
	return nil
}

// Standings returns the stored table for a tournament, best first.
func (r *Recalculator) Standings(ctx context.Context, tournamentID string) ([]TeamStanding, error) {
	if err := cricket.ValidateID("tournamentId", tournamentID); err != nil {
		return nil, err
	}
	rows, err := r.db.Queries.ListTournamentStandings(ctx, tournamentID)
	if err != nil {
		return nil, db.Classify(err, "list standings")
	}
	standings := make([]TeamStanding, 0, len(rows))
	for _, row := range rows {
		standings = append(standings, TeamStanding{
			TeamID:      row.TeamID,
			Position:    int(row.Position),
			Played:      int(row.Played),
			Won:         int(row.Won),
			Lost:        int(row.Lost),
			Tied:        int(row.Tied),
			Points:      int(row.Points),
			RunsFor:     int(row.RunsFor),
			RunsAgainst: int(row.RunsAgainst),
			NetRunRate:  row.NetRunRate,
		})
	}
	return standings, nil
}
