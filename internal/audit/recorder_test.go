package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbgen "github.com/codr1/crease/internal/db/generated"
	"github.com/codr1/crease/internal/testutil"
)

type failingStore struct{ calls int }

func (s *failingStore) CreateAuditLog(context.Context, dbgen.CreateAuditLogParams) (dbgen.AuditLog, error) {
	s.calls++
	return dbgen.AuditLog{}, errors.New("disk full")
}

func TestRecorderPersistsEvent(t *testing.T) {
	database := testutil.NewTestDB(t)
	f := testutil.SeedMatch(t, database)
	recorder := NewRecorder(database.Queries)
	ctx := context.Background()

	recorder.LogAction(ctx, Event{
		ActorID: f.CaptainA,
		Action:  ActionApprovalRequested,
		MatchID: f.MatchID,
		Before:  map[string]string{"status": "SCHEDULED"},
		After:   map[string]string{"status": "SCORING_PENDING"},
	})

	entries, err := database.Queries.ListAuditLogByMatch(ctx, f.MatchID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionApprovalRequested, entries[0].Action)
	assert.Equal(t, f.CaptainA, entries[0].ActorID.String)
	assert.JSONEq(t, `{"status":"SCORING_PENDING"}`, entries[0].AfterState.String)
	assert.False(t, entries[0].ApprovalID.Valid)
}

func TestRecorderSwallowsStoreErrors(t *testing.T) {
	store := &failingStore{}
	recorder := NewRecorder(store)

	assert.NotPanics(t, func() {
		recorder.LogAction(context.Background(), Event{Action: ActionBallEntered})
	})
	assert.Equal(t, 1, store.calls)
}
