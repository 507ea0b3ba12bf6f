package directory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codr1/crease/internal/cricket"
	"github.com/codr1/crease/internal/directory"
	"github.com/codr1/crease/internal/testutil"
)

func TestStoreLookups(t *testing.T) {
	database := testutil.NewTestDB(t)
	f := testutil.SeedMatch(t, database)
	store := directory.NewStore(database.Queries, 5*time.Minute)
	ctx := context.Background()

	team, err := store.GetTeam(ctx, f.TeamAID)
	require.NoError(t, err)
	assert.Equal(t, f.CaptainA, team.CaptainID)

	admin, err := store.GetUser(ctx, f.AdminID)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	member, err := store.IsActiveMember(ctx, f.TeamBID, f.PlayersB[1])
	require.NoError(t, err)
	assert.True(t, member)

	member, err = store.IsActiveMember(ctx, f.TeamBID, f.PlayersA[1])
	require.NoError(t, err)
	assert.False(t, member)

	roster, err := store.ListActiveRoster(ctx, f.TeamAID)
	require.NoError(t, err)
	assert.Len(t, roster, 3)
}

func TestStoreMissingTeam(t *testing.T) {
	database := testutil.NewTestDB(t)
	store := directory.NewStore(database.Queries, 0)

	_, err := store.GetTeam(context.Background(), "00000000-0000-4000-8000-000000000000")
	require.ErrorIs(t, err, cricket.ErrNotFound)
}

func TestApprovalSettingsDefaults(t *testing.T) {
	database := testutil.NewTestDB(t)
	f := testutil.SeedMatch(t, database)
	store := directory.NewStore(database.Queries, 7*time.Minute)
	ctx := context.Background()

	settings, err := store.ApprovalSettings(ctx, f.CaptainA)
	require.NoError(t, err)
	assert.True(t, settings.AutoApproveEnabled)
	assert.Equal(t, 7*time.Minute, settings.AutoApproveTimeout)

	testutil.SetApprovalSettings(t, database, f.CaptainA, false, 30)
	settings, err = store.ApprovalSettings(ctx, f.CaptainA)
	require.NoError(t, err)
	assert.False(t, settings.AutoApproveEnabled)
	assert.Equal(t, 30*time.Minute, settings.AutoApproveTimeout)
}
