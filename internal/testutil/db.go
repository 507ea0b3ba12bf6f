package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/codr1/crease/internal/cricket"
	"github.com/codr1/crease/internal/db"
	dbgen "github.com/codr1/crease/internal/db/generated"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// Fixture is a match between two teams with captains, three players each,
// an admin and a user who belongs to neither team.
type Fixture struct {
	TournamentID string
	MatchID      string
	TeamAID      string
	TeamBID      string
	CaptainA     string
	CaptainB     string
	PlayersA     []string
	PlayersB     []string
	AdminID      string
	OutsiderID   string
}

type FixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	status       cricket.MatchStatus
	tournamentID string
}

// WithStatus seeds the match in the given status instead of SCHEDULED.
func WithStatus(status cricket.MatchStatus) FixtureOption {
	return func(c *fixtureConfig) { c.status = status }
}

// InTournament attaches the match to an existing tournament.
func InTournament(tournamentID string) FixtureOption {
	return func(c *fixtureConfig) { c.tournamentID = tournamentID }
}

func SeedMatch(t *testing.T, database *db.DB, opts ...FixtureOption) Fixture {
	t.Helper()

	cfg := fixtureConfig{status: cricket.StatusScheduled}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()
	q := database.Queries
	now := time.Now().UTC()

	f := Fixture{
		TournamentID: cfg.tournamentID,
		AdminID:      SeedUser(t, database, "Umpire Admin", "admin"),
		OutsiderID:   SeedUser(t, database, "Spectator", "player"),
	}

	f.CaptainA = SeedUser(t, database, "Captain A", "player")
	f.CaptainB = SeedUser(t, database, "Captain B", "player")
	f.TeamAID = SeedTeam(t, database, "Team A", f.CaptainA)
	f.TeamBID = SeedTeam(t, database, "Team B", f.CaptainB)
	f.PlayersA = []string{f.CaptainA}
	f.PlayersB = []string{f.CaptainB}
	for i := 0; i < 2; i++ {
		f.PlayersA = append(f.PlayersA, SeedUser(t, database, "Batter A", "player"))
		f.PlayersB = append(f.PlayersB, SeedUser(t, database, "Bowler B", "player"))
	}
	for _, id := range f.PlayersA {
		AddMember(t, database, f.TeamAID, id)
	}
	for _, id := range f.PlayersB {
		AddMember(t, database, f.TeamBID, id)
	}

	tournament := sql.NullString{}
	if f.TournamentID != "" {
		tournament = sql.NullString{String: f.TournamentID, Valid: true}
	}
	match, err := q.CreateMatch(ctx, dbgen.CreateMatchParams{
		ID:           uuid.NewString(),
		TournamentID: tournament,
		TeamAID:      f.TeamAID,
		TeamBID:      f.TeamBID,
		Venue:        "Lord's",
		ScheduledAt:  now.Add(24 * time.Hour),
		Status:       string(cfg.status),
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("create match: %v", err)
	}
	f.MatchID = match.ID

	return f
}

func SeedUser(t *testing.T, database *db.DB, name, role string) string {
	t.Helper()
	user, err := database.Queries.CreateUser(context.Background(), dbgen.CreateUserParams{
		ID:        uuid.NewString(),
		Name:      name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user.ID
}

func SeedTeam(t *testing.T, database *db.DB, name, captainID string) string {
	t.Helper()
	team, err := database.Queries.CreateTeam(context.Background(), dbgen.CreateTeamParams{
		ID:        uuid.NewString(),
		Name:      name,
		CaptainID: sql.NullString{String: captainID, Valid: captainID != ""},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	return team.ID
}

func AddMember(t *testing.T, database *db.DB, teamID, userID string) {
	t.Helper()
	err := database.Queries.AddTeamMember(context.Background(), dbgen.AddTeamMemberParams{
		TeamID:   teamID,
		UserID:   userID,
		Status:   "active",
		JoinedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("add team member: %v", err)
	}
}

func SeedTournament(t *testing.T, database *db.DB, name string) string {
	t.Helper()
	id := uuid.NewString()
	if err := database.Queries.CreateTournament(context.Background(), id, name, time.Now().UTC()); err != nil {
		t.Fatalf("create tournament: %v", err)
	}
	return id
}

// SetApprovalSettings overrides the auto-approval settings of a user.
func SetApprovalSettings(t *testing.T, database *db.DB, userID string, enabled bool, timeoutMinutes int64) {
	t.Helper()
	err := database.Queries.UpsertUserSettings(context.Background(), dbgen.UserSetting{
		UserID:                    userID,
		AutoApproveEnabled:        enabled,
		AutoApproveTimeoutMinutes: timeoutMinutes,
	})
	if err != nil {
		t.Fatalf("set approval settings: %v", err)
	}
}

func GetMatch(t *testing.T, database *db.DB, matchID string) dbgen.Match {
	t.Helper()
	match, err := database.Queries.GetMatch(context.Background(), matchID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	return match
}
