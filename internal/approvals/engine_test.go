package approvals

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codr1/crease/internal/audit"
	"github.com/codr1/crease/internal/cricket"
	db "github.com/codr1/crease/internal/db"
	"github.com/codr1/crease/internal/directory"
	"github.com/codr1/crease/internal/live"
	"github.com/codr1/crease/internal/testutil"
)

type fakeStats struct {
	mu      sync.Mutex
	matches []string
	err     error
}

func (f *fakeStats) RecalculateStats(_ context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches = append(f.matches, matchID)
	return f.err
}

type recordingPublisher struct {
	mu      sync.Mutex
	updates []live.Update
}

func (p *recordingPublisher) Publish(update live.Update) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, update)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	engine    *Engine
	db        *db.DB
	fixture   testutil.Fixture
	stats     *fakeStats
	publisher *recordingPublisher
	clock     *testClock
}

func newHarness(t *testing.T, status cricket.MatchStatus) harness {
	t.Helper()
	database := testutil.NewTestDB(t)
	fixture := testutil.SeedMatch(t, database, testutil.WithStatus(status))
	stats := &fakeStats{}
	publisher := &recordingPublisher{}
	clock := &testClock{now: time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)}

	engine, err := NewEngine(database, directory.NewStore(database.Queries, 5*time.Minute),
		WithAudit(audit.NewRecorder(database.Queries)),
		WithStats(stats),
		WithPublisher(publisher),
		WithClock(clock.Now),
	)
	require.NoError(t, err)

	return harness{engine: engine, db: database, fixture: fixture, stats: stats, publisher: publisher, clock: clock}
}

func (h harness) matchStatus(t *testing.T) cricket.MatchStatus {
	t.Helper()
	return cricket.MatchStatus(testutil.GetMatch(t, h.db, h.fixture.MatchID).Status)
}

func (h harness) approvalsByStatus(t *testing.T) map[cricket.ApprovalStatus]int {
	t.Helper()
	all, err := h.engine.ListApprovals(context.Background(), h.fixture.MatchID)
	require.NoError(t, err)
	counts := make(map[cricket.ApprovalStatus]int)
	for _, a := range all {
		counts[a.Status]++
	}
	return counts
}

func TestFullApprovalCycle(t *testing.T) {
	h := newHarness(t, cricket.StatusScheduled)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalStartScoring)
	require.NoError(t, err)
	assert.Equal(t, cricket.ApprovalPending, request.Status)
	assert.True(t, request.AutoApproveEnabled)
	assert.True(t, request.AutoApproveAt.Equal(h.clock.Now().Add(5*time.Minute)))
	assert.Equal(t, cricket.StatusScoringPending, h.matchStatus(t))
	assert.Equal(t, map[cricket.ApprovalStatus]int{cricket.ApprovalPending: 1}, h.approvalsByStatus(t))

	outcome, err := h.engine.RespondToApproval(ctx, request.ID, f.CaptainB, true)
	require.NoError(t, err)
	assert.Equal(t, cricket.StatusFirstInnings, outcome.MatchStatus)
	assert.Equal(t, cricket.ApprovalApproved, outcome.Approval.Status)
	require.NotNil(t, outcome.Approval.ApprovedBy)
	assert.Equal(t, f.CaptainB, *outcome.Approval.ApprovedBy)
	assert.False(t, outcome.Approval.WasAutoApproved)

	match := testutil.GetMatch(t, h.db, f.MatchID)
	assert.Equal(t, string(cricket.StatusFirstInnings), match.Status)
	assert.Equal(t, f.CaptainB, match.ScoringApprovedBy.String)
	assert.True(t, match.ScoringApprovedAt.Valid)
	assert.Empty(t, h.stats.matches)

	entries, err := h.db.Queries.ListAuditLogByMatch(ctx, f.MatchID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionApprovalRequested, entries[0].Action)
	assert.Equal(t, audit.ActionApprovalApproved, entries[1].Action)

	require.Len(t, h.publisher.updates, 2)
	assert.Equal(t, live.EventApproval, h.publisher.updates[0].Type)
	assert.Equal(t, cricket.StatusScoringPending, h.publisher.updates[0].Status)
	assert.Equal(t, live.EventStatusChanged, h.publisher.updates[1].Type)
	assert.Equal(t, cricket.StatusFirstInnings, h.publisher.updates[1].Status)
}

func TestRequestApprovalSupersedesPendingRequest(t *testing.T) {
	h := newHarness(t, cricket.StatusScheduled)
	ctx := context.Background()
	f := h.fixture

	first, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalStartScoring)
	require.NoError(t, err)
	second, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalStartScoring)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	assert.Equal(t, map[cricket.ApprovalStatus]int{
		cricket.ApprovalPending:   1,
		cricket.ApprovalCancelled: 1,
	}, h.approvalsByStatus(t))
	assert.Equal(t, cricket.StatusScoringPending, h.matchStatus(t))

	_, err = h.engine.RespondToApproval(ctx, first.ID, f.CaptainB, true)
	require.ErrorIs(t, err, cricket.ErrConflict)
	assert.Equal(t, cricket.StatusScoringPending, h.matchStatus(t))
}

func TestRequestApprovalRejectsWrongStatus(t *testing.T) {
	h := newHarness(t, cricket.StatusScheduled)

	_, err := h.engine.RequestApproval(context.Background(), h.fixture.MatchID, h.fixture.CaptainA, cricket.ApprovalStartSecondInnings)
	require.ErrorIs(t, err, cricket.ErrConflict)
	assert.EqualError(t, err, "match status must be FIRST_INNINGS, current: SCHEDULED")
	assert.Empty(t, h.approvalsByStatus(t))
	assert.Equal(t, cricket.StatusScheduled, h.matchStatus(t))
}

func TestRequestApprovalValidation(t *testing.T) {
	h := newHarness(t, cricket.StatusScheduled)
	ctx := context.Background()
	f := h.fixture

	_, err := h.engine.RequestApproval(ctx, "not-a-uuid", f.CaptainA, cricket.ApprovalStartScoring)
	require.ErrorIs(t, err, cricket.ErrValidation)

	_, err = h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalType("TOSS"))
	require.ErrorIs(t, err, cricket.ErrValidation)

	_, err = h.engine.RequestApproval(ctx, f.MatchID, f.PlayersA[1], cricket.ApprovalStartScoring)
	require.ErrorIs(t, err, cricket.ErrForbidden)

	_, err = h.engine.RequestApproval(ctx, "00000000-0000-4000-8000-000000000000", f.CaptainA, cricket.ApprovalStartScoring)
	require.ErrorIs(t, err, cricket.ErrNotFound)
}

func TestRespondOnlyByOpponent(t *testing.T) {
	h := newHarness(t, cricket.StatusScheduled)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainB, cricket.ApprovalStartScoring)
	require.NoError(t, err)

	_, err = h.engine.RespondToApproval(ctx, request.ID, f.CaptainB, true)
	require.ErrorIs(t, err, cricket.ErrForbidden)
	_, err = h.engine.RespondToApproval(ctx, request.ID, f.OutsiderID, true)
	require.ErrorIs(t, err, cricket.ErrForbidden)
	_, err = h.engine.RespondToApproval(ctx, request.ID, f.AdminID, true)
	require.ErrorIs(t, err, cricket.ErrForbidden)
	assert.Equal(t, cricket.StatusScoringPending, h.matchStatus(t))

	_, err = h.engine.RespondToApproval(ctx, request.ID, f.CaptainA, true)
	require.NoError(t, err)
	assert.Equal(t, cricket.StatusFirstInnings, h.matchStatus(t))
}

func TestRespondToMissingOrResolvedApproval(t *testing.T) {
	h := newHarness(t, cricket.StatusScheduled)
	ctx := context.Background()
	f := h.fixture

	_, err := h.engine.RespondToApproval(ctx, "00000000-0000-4000-8000-000000000000", f.CaptainB, true)
	require.ErrorIs(t, err, cricket.ErrNotFound)

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalStartScoring)
	require.NoError(t, err)
	_, err = h.engine.RespondToApproval(ctx, request.ID, f.CaptainB, false)
	require.NoError(t, err)

	_, err = h.engine.RespondToApproval(ctx, request.ID, f.CaptainB, true)
	require.ErrorIs(t, err, cricket.ErrConflict)
	assert.Equal(t, cricket.StatusScheduled, h.matchStatus(t))
}

func TestRejectionRollsBackSecondInnings(t *testing.T) {
	h := newHarness(t, cricket.StatusFirstInnings)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalStartSecondInnings)
	require.NoError(t, err)
	assert.Equal(t, cricket.StatusSecondInningsPending, h.matchStatus(t))

	outcome, err := h.engine.RespondToApproval(ctx, request.ID, f.CaptainB, false)
	require.NoError(t, err)
	assert.Equal(t, cricket.ApprovalRejected, outcome.Approval.Status)
	assert.Nil(t, outcome.Approval.ApprovedBy)
	assert.Equal(t, cricket.StatusFirstInnings, outcome.MatchStatus)
	assert.Equal(t, cricket.StatusFirstInnings, h.matchStatus(t))

	match := testutil.GetMatch(t, h.db, f.MatchID)
	assert.False(t, match.FirstInningsComplete)
}

func TestSecondInningsApprovalMarksFirstInningsComplete(t *testing.T) {
	h := newHarness(t, cricket.StatusFirstInnings)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainB, cricket.ApprovalStartSecondInnings)
	require.NoError(t, err)
	_, err = h.engine.RespondToApproval(ctx, request.ID, f.CaptainA, true)
	require.NoError(t, err)

	match := testutil.GetMatch(t, h.db, f.MatchID)
	assert.Equal(t, string(cricket.StatusSecondInnings), match.Status)
	assert.True(t, match.FirstInningsComplete)
	assert.Equal(t, f.CaptainA, match.SecondInningsApprovedBy.String)
}

func TestFinalScoreNeedsBothSignatures(t *testing.T) {
	h := newHarness(t, cricket.StatusSecondInnings)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalFinalScore)
	require.NoError(t, err)
	assert.Equal(t, cricket.StatusFinalPending, h.matchStatus(t))

	// The requester signing again still leaves one signature.
	outcome, err := h.engine.RespondToApproval(ctx, request.ID, f.CaptainA, true)
	require.NoError(t, err)
	assert.Equal(t, cricket.StatusFinalPending, outcome.MatchStatus)
	assert.Equal(t, cricket.ApprovalPending, outcome.Approval.Status)
	assert.Equal(t, 1, outcome.Signatures)
	assert.Equal(t, cricket.StatusFinalPending, h.matchStatus(t))
	assert.Empty(t, h.stats.matches)

	entries, err := h.db.Queries.ListAuditLogByMatch(ctx, f.MatchID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionApprovalSigned, entries[1].Action)

	outcome, err = h.engine.RespondToApproval(ctx, request.ID, f.CaptainB, true)
	require.NoError(t, err)
	assert.Equal(t, cricket.StatusCompleted, outcome.MatchStatus)
	assert.Equal(t, cricket.ApprovalApproved, outcome.Approval.Status)
	assert.Equal(t, 2, outcome.Signatures)

	match := testutil.GetMatch(t, h.db, f.MatchID)
	assert.Equal(t, string(cricket.StatusCompleted), match.Status)
	assert.True(t, match.SecondInningsComplete)
	assert.True(t, match.FinalApprovedAt.Valid)
	assert.Equal(t, []string{f.MatchID}, h.stats.matches)

	signers, err := h.db.Queries.ListFinalApprovers(ctx, f.MatchID)
	require.NoError(t, err)
	assert.Len(t, signers, 2)
}

func TestFinalScoreOpponentApprovalCountsRequester(t *testing.T) {
	h := newHarness(t, cricket.StatusSecondInnings)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainB, cricket.ApprovalFinalScore)
	require.NoError(t, err)

	outcome, err := h.engine.RespondToApproval(ctx, request.ID, f.CaptainA, true)
	require.NoError(t, err)
	assert.Equal(t, cricket.StatusCompleted, outcome.MatchStatus)
	assert.Equal(t, 2, outcome.Signatures)

	// Completed matches accept no new requests.
	_, err = h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalFinalScore)
	require.ErrorIs(t, err, cricket.ErrConflict)
}

func TestFinalScoreRejectionClearsSignatures(t *testing.T) {
	h := newHarness(t, cricket.StatusSecondInnings)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalFinalScore)
	require.NoError(t, err)
	_, err = h.engine.RespondToApproval(ctx, request.ID, f.CaptainA, true)
	require.NoError(t, err)

	outcome, err := h.engine.RespondToApproval(ctx, request.ID, f.CaptainB, false)
	require.NoError(t, err)
	assert.Equal(t, cricket.StatusSecondInnings, outcome.MatchStatus)

	signers, err := h.db.Queries.ListFinalApprovers(ctx, f.MatchID)
	require.NoError(t, err)
	assert.Empty(t, signers)
}

func TestFinalScoreRejectionIsOpponentOnly(t *testing.T) {
	h := newHarness(t, cricket.StatusSecondInnings)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalFinalScore)
	require.NoError(t, err)

	_, err = h.engine.RespondToApproval(ctx, request.ID, f.CaptainA, false)
	require.ErrorIs(t, err, cricket.ErrForbidden)
	assert.Equal(t, cricket.StatusFinalPending, h.matchStatus(t))
	assert.Equal(t, 1, h.approvalsByStatus(t)[cricket.ApprovalPending])
}

func TestCancelApproval(t *testing.T) {
	h := newHarness(t, cricket.StatusSecondInnings)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalFinalScore)
	require.NoError(t, err)
	_, err = h.engine.RespondToApproval(ctx, request.ID, f.CaptainA, true)
	require.NoError(t, err)

	_, err = h.engine.CancelApproval(ctx, request.ID, f.CaptainB)
	require.ErrorIs(t, err, cricket.ErrForbidden)

	outcome, err := h.engine.CancelApproval(ctx, request.ID, f.CaptainA)
	require.NoError(t, err)
	assert.Equal(t, cricket.ApprovalCancelled, outcome.Approval.Status)
	assert.Nil(t, outcome.Approval.ApprovedBy)
	assert.Equal(t, cricket.StatusSecondInnings, outcome.MatchStatus)
	assert.Equal(t, cricket.StatusSecondInnings, h.matchStatus(t))

	signers, err := h.db.Queries.ListFinalApprovers(ctx, f.MatchID)
	require.NoError(t, err)
	assert.Empty(t, signers)

	entries, err := h.db.Queries.ListAuditLogByMatch(ctx, f.MatchID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, audit.ActionApprovalCancelled, entries[len(entries)-1].Action)

	_, err = h.engine.CancelApproval(ctx, request.ID, f.CaptainA)
	require.ErrorIs(t, err, cricket.ErrConflict)
}

func TestStatsFailureDoesNotFailApproval(t *testing.T) {
	h := newHarness(t, cricket.StatusSecondInnings)
	h.stats.err = errors.New("standings table locked")
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalFinalScore)
	require.NoError(t, err)
	outcome, err := h.engine.RespondToApproval(ctx, request.ID, f.CaptainB, true)
	require.NoError(t, err)
	assert.Equal(t, cricket.StatusCompleted, outcome.MatchStatus)
	assert.Equal(t, cricket.StatusCompleted, h.matchStatus(t))
}

func TestAutoApprove(t *testing.T) {
	h := newHarness(t, cricket.StatusScheduled)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalStartScoring)
	require.NoError(t, err)

	_, err = h.engine.AutoApprove(ctx, request.ID)
	require.ErrorIs(t, err, cricket.ErrConflict)

	h.clock.Advance(5 * time.Minute)
	due, err := h.engine.DueApprovals(ctx, h.clock.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, request.ID, due[0].ID)

	outcome, err := h.engine.AutoApprove(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, cricket.ApprovalAutoApproved, outcome.Approval.Status)
	assert.True(t, outcome.Approval.WasAutoApproved)
	assert.Nil(t, outcome.Approval.ApprovedBy)
	assert.Equal(t, cricket.StatusFirstInnings, h.matchStatus(t))

	match := testutil.GetMatch(t, h.db, f.MatchID)
	assert.False(t, match.ScoringApprovedBy.Valid)
	assert.True(t, match.ScoringApprovedAt.Valid)
}

func TestAutoApproveFinalScoreSignsForOpponent(t *testing.T) {
	h := newHarness(t, cricket.StatusSecondInnings)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalFinalScore)
	require.NoError(t, err)
	h.clock.Advance(10 * time.Minute)

	outcome, err := h.engine.AutoApprove(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, cricket.StatusCompleted, outcome.MatchStatus)

	signers, err := h.db.Queries.ListFinalApprovers(ctx, f.MatchID)
	require.NoError(t, err)
	require.Len(t, signers, 2)
	for _, signer := range signers {
		assert.Equal(t, signer.ApproverID == f.CaptainB, signer.AutoApproved)
	}
}

func TestExpireRollsBack(t *testing.T) {
	h := newHarness(t, cricket.StatusScheduled)
	ctx := context.Background()
	f := h.fixture
	testutil.SetApprovalSettings(t, h.db, f.CaptainA, false, 10)

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalStartScoring)
	require.NoError(t, err)
	assert.False(t, request.AutoApproveEnabled)
	assert.True(t, request.AutoApproveAt.Equal(h.clock.Now().Add(10*time.Minute)))

	h.clock.Advance(10 * time.Minute)
	_, err = h.engine.AutoApprove(ctx, request.ID)
	require.ErrorIs(t, err, cricket.ErrConflict)

	outcome, err := h.engine.Expire(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, cricket.ApprovalExpired, outcome.Approval.Status)
	assert.False(t, outcome.Approval.WasAutoApproved)
	assert.Equal(t, cricket.StatusScheduled, h.matchStatus(t))
}

func TestGetPendingApprovalsForUser(t *testing.T) {
	h := newHarness(t, cricket.StatusScheduled)
	ctx := context.Background()
	f := h.fixture

	request, err := h.engine.RequestApproval(ctx, f.MatchID, f.CaptainA, cricket.ApprovalStartScoring)
	require.NoError(t, err)

	pending, err := h.engine.GetPendingApprovalsForUser(ctx, f.CaptainB)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, request.ID, pending[0].ID)

	pending, err = h.engine.GetPendingApprovalsForUser(ctx, f.CaptainA)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = h.engine.GetPendingApprovalsForUser(ctx, f.OutsiderID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMatchStartFlow(t *testing.T) {
	h := newHarness(t, cricket.StatusScheduled)
	ctx := context.Background()
	f := h.fixture

	rejected, err := h.engine.RequestMatchStart(ctx, f.MatchID, f.CaptainA)
	require.NoError(t, err)
	assert.Equal(t, cricket.StatusScheduled, h.matchStatus(t))

	_, err = h.engine.RespondMatchStart(ctx, rejected.ID, f.CaptainA, true)
	require.ErrorIs(t, err, cricket.ErrForbidden)

	result, err := h.engine.RespondMatchStart(ctx, rejected.ID, f.CaptainB, false)
	require.NoError(t, err)
	assert.Equal(t, cricket.ApprovalRejected, result.Status)
	assert.Equal(t, cricket.StatusScheduled, h.matchStatus(t))

	request, err := h.engine.RequestMatchStart(ctx, f.MatchID, f.CaptainB)
	require.NoError(t, err)
	result, err = h.engine.RespondMatchStart(ctx, request.ID, f.CaptainA, true)
	require.NoError(t, err)
	assert.Equal(t, cricket.ApprovalApproved, result.Status)

	match := testutil.GetMatch(t, h.db, f.MatchID)
	assert.Equal(t, string(cricket.StatusLive), match.Status)
	assert.Equal(t, f.CaptainA, match.LiveApprovedBy.String)

	_, err = h.engine.RequestMatchStart(ctx, f.MatchID, f.CaptainA)
	require.ErrorIs(t, err, cricket.ErrConflict)
}

func TestConcurrentRequestsLeaveOnePending(t *testing.T) {
	h := newHarness(t, cricket.StatusScheduled)
	ctx := context.Background()
	f := h.fixture

	var wg sync.WaitGroup
	for _, captain := range []string{f.CaptainA, f.CaptainB, f.CaptainA, f.CaptainB} {
		wg.Add(1)
		go func(captain string) {
			defer wg.Done()
			_, _ = h.engine.RequestApproval(ctx, f.MatchID, captain, cricket.ApprovalStartScoring)
		}(captain)
	}
	wg.Wait()

	assert.Equal(t, 1, h.approvalsByStatus(t)[cricket.ApprovalPending])
	assert.Equal(t, cricket.StatusScoringPending, h.matchStatus(t))
}
