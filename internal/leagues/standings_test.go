package leagues

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codr1/crease/internal/cricket"
	dbgen "github.com/codr1/crease/internal/db/generated"
	"github.com/codr1/crease/internal/testutil"
)

func completed(id, teamA, teamB string, runsA int64, oversA string, runsB int64, oversB string) dbgen.Match {
	return dbgen.Match{
		ID:            id,
		TeamAID:       teamA,
		TeamBID:       teamB,
		Status:        string(cricket.StatusCompleted),
		Innings1Runs:  runsA,
		Innings1Overs: decimal.RequireFromString(oversA),
		Innings2Runs:  runsB,
		Innings2Overs: decimal.RequireFromString(oversB),
	}
}

func TestCalculateStandings(t *testing.T) {
	matches := []dbgen.Match{
		completed("m1", "alpha", "bravo", 120, "20", 100, "20"),
		completed("m2", "bravo", "charlie", 90, "20", 91, "15.3"),
		completed("m3", "charlie", "alpha", 80, "20", 80, "20"),
	}

	standings, err := CalculateStandings(matches)
	require.NoError(t, err)
	require.Len(t, standings, 3)

	byTeam := make(map[string]TeamStanding)
	for _, s := range standings {
		byTeam[s.TeamID] = s
	}

	alpha := byTeam["alpha"]
	assert.Equal(t, 2, alpha.Played)
	assert.Equal(t, 1, alpha.Won)
	assert.Equal(t, 1, alpha.Tied)
	assert.Equal(t, 3, alpha.Points)
	assert.Equal(t, 200, alpha.RunsFor)
	assert.Equal(t, 180, alpha.RunsAgainst)
	// 200/40 - 180/40
	assert.True(t, decimal.RequireFromString("0.5").Equal(alpha.NetRunRate), alpha.NetRunRate.String())

	charlie := byTeam["charlie"]
	assert.Equal(t, 3, charlie.Points)
	assert.Equal(t, 1, charlie.Won)
	assert.Equal(t, 1, charlie.Tied)

	bravo := byTeam["bravo"]
	assert.Equal(t, 0, bravo.Points)
	assert.Equal(t, 2, bravo.Lost)
	assert.Equal(t, 3, bravo.Position)

	// alpha and charlie are level on points; charlie scored faster.
	assert.Equal(t, "charlie", standings[0].TeamID)
	assert.Equal(t, "alpha", standings[1].TeamID)
	assert.Equal(t, 1, standings[0].Position)
}

func TestCalculateStandingsHeadToHead(t *testing.T) {
	matches := []dbgen.Match{
		completed("m1", "alpha", "bravo", 100, "10", 90, "10"),
		completed("m2", "bravo", "alpha", 100, "10", 90, "10"),
		completed("m3", "alpha", "charlie", 50, "10", 60, "10"),
		completed("m4", "bravo", "charlie", 50, "10", 60, "10"),
	}

	standings, err := CalculateStandings(matches)
	require.NoError(t, err)
	require.Len(t, standings, 3)
	assert.Equal(t, "charlie", standings[0].TeamID)
	// alpha and bravo: same points, same run rate, one win each head to head,
	// same runs; the team id settles it.
	assert.Equal(t, "alpha", standings[1].TeamID)
	assert.Equal(t, "bravo", standings[2].TeamID)
}

func TestCalculateStandingsRejectsIncompleteMatch(t *testing.T) {
	match := completed("m1", "alpha", "bravo", 10, "1", 5, "1")
	match.Status = string(cricket.StatusFinalPending)

	_, err := CalculateStandings([]dbgen.Match{match})
	require.Error(t, err)
}

func TestCalculateStandingsEmpty(t *testing.T) {
	standings, err := CalculateStandings(nil)
	require.NoError(t, err)
	assert.Empty(t, standings)
}

func TestRecalculateStats(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	tournamentID := testutil.SeedTournament(t, database, "Summer League")
	fixture := testutil.SeedMatch(t, database, testutil.WithStatus(cricket.StatusCompleted), testutil.InTournament(tournamentID))
	testutil.SeedMatch(t, database, testutil.WithStatus(cricket.StatusSecondInnings), testutil.InTournament(tournamentID))

	for innings, runs := range map[int64]int64{1: 150, 2: 149} {
		require.NoError(t, database.Queries.UpdateInningsScore(ctx, dbgen.UpdateInningsScoreParams{
			ID:        fixture.MatchID,
			Innings:   innings,
			Runs:      runs,
			Overs:     decimal.NewFromInt(20),
			UpdatedAt: time.Now().UTC(),
		}))
	}

	recalculator, err := NewRecalculator(database)
	require.NoError(t, err)
	require.NoError(t, recalculator.RecalculateStats(ctx, fixture.MatchID))

	standings, err := recalculator.Standings(ctx, tournamentID)
	require.NoError(t, err)
	require.Len(t, standings, 2)
	assert.Equal(t, fixture.TeamAID, standings[0].TeamID)
	assert.Equal(t, PointsWin, standings[0].Points)
	assert.Equal(t, 1, standings[0].Position)
	assert.True(t, decimal.RequireFromString("0.05").Equal(standings[0].NetRunRate), standings[0].NetRunRate.String())
	assert.Equal(t, fixture.TeamBID, standings[1].TeamID)
	assert.Equal(t, 1, standings[1].Lost)

	// Running it again replaces rather than duplicates.
	require.NoError(t, recalculator.RecalculateStats(ctx, fixture.MatchID))
	standings, err = recalculator.Standings(ctx, tournamentID)
	require.NoError(t, err)
	assert.Len(t, standings, 2)
}

func TestRecalculateStatsWithoutTournament(t *testing.T) {
	database := testutil.NewTestDB(t)
	fixture := testutil.SeedMatch(t, database, testutil.WithStatus(cricket.StatusCompleted))

	recalculator, err := NewRecalculator(database)
	require.NoError(t, err)
	require.NoError(t, recalculator.RecalculateStats(context.Background(), fixture.MatchID))

	err = recalculator.RecalculateStats(context.Background(), "00000000-0000-4000-8000-000000000000")
	require.ErrorIs(t, err, cricket.ErrNotFound)
}
