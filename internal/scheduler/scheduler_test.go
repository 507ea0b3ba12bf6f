package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codr1/crease/internal/approvals"
	"github.com/codr1/crease/internal/config"
	"github.com/codr1/crease/internal/cricket"
	"github.com/codr1/crease/internal/directory"
	"github.com/codr1/crease/internal/testutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop() })
	return svc
}

func TestAddJobValidation(t *testing.T) {
	svc := newService(t)
	noop := func(context.Context) {}

	_, err := svc.AddJob(" ", "* * * * *", noop)
	require.ErrorIs(t, err, ErrEmptyJobName)
	_, err = svc.AddJob("job", "", noop)
	require.ErrorIs(t, err, ErrEmptyCronExpr)
	_, err = svc.AddJob("job", "not a cron", noop)
	require.Error(t, err)

	job, err := svc.AddJob("job", "*/5 * * * *", noop)
	require.NoError(t, err)
	assert.Equal(t, "job", job.Name())
	assert.Len(t, svc.Jobs(), 1)
}

func TestNilServiceIsNotInitialized(t *testing.T) {
	var svc *Service
	_, err := svc.AddJob("job", "* * * * *", func(context.Context) {})
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, svc.Stop(), ErrNotInitialized)
}

func TestStopIsIdempotent(t *testing.T) {
	svc, err := New(context.Background())
	require.NoError(t, err)
	svc.Start()
	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())
}

type fakeResolver struct {
	mu       sync.Mutex
	due      []cricket.ApprovalRequest
	dueErr   error
	errs     map[string]error
	approved []string
	expired  []string
}

func (f *fakeResolver) DueApprovals(context.Context, time.Time) ([]cricket.ApprovalRequest, error) {
	return f.due, f.dueErr
}

func (f *fakeResolver) AutoApprove(_ context.Context, id string) (approvals.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return approvals.Outcome{}, err
	}
	f.approved = append(f.approved, id)
	return approvals.Outcome{}, nil
}

func (f *fakeResolver) Expire(_ context.Context, id string) (approvals.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[id]; err != nil {
		return approvals.Outcome{}, err
	}
	f.expired = append(f.expired, id)
	return approvals.Outcome{}, nil
}

func TestSweepApprovalsCountsOutcomes(t *testing.T) {
	resolver := &fakeResolver{
		due: []cricket.ApprovalRequest{
			{ID: "a1", AutoApproveEnabled: true},
			{ID: "a2", AutoApproveEnabled: false},
			{ID: "a3", AutoApproveEnabled: true},
			{ID: "a4", AutoApproveEnabled: false},
		},
		errs: map[string]error{
			"a3": cricket.Conflict("approval is already APPROVED"),
			"a4": errors.New("disk I/O error"),
		},
	}

	result, err := SweepApprovals(context.Background(), resolver, time.Now())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{AutoApproved: 1, Expired: 1, Skipped: 1, Failed: 1}, result)
	assert.Equal(t, []string{"a1"}, resolver.approved)
	assert.Equal(t, []string{"a2"}, resolver.expired)
}

func TestSweepApprovalsListFailure(t *testing.T) {
	resolver := &fakeResolver{dueErr: errors.New("database is locked")}

	_, err := SweepApprovals(context.Background(), resolver, time.Now())
	require.Error(t, err)

	_, err = SweepApprovals(context.Background(), nil, time.Now())
	require.Error(t, err)
}

func TestSweepApprovalsWithEngine(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	first := testutil.SeedMatch(t, database)
	second := testutil.SeedMatch(t, database, testutil.WithStatus(cricket.StatusFirstInnings))
	testutil.SetApprovalSettings(t, database, second.CaptainB, false, 5)

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	engine, err := approvals.NewEngine(database, directory.NewStore(database.Queries, 5*time.Minute),
		approvals.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	_, err = engine.RequestApproval(ctx, first.MatchID, first.CaptainA, cricket.ApprovalStartScoring)
	require.NoError(t, err)
	_, err = engine.RequestApproval(ctx, second.MatchID, second.CaptainB, cricket.ApprovalStartSecondInnings)
	require.NoError(t, err)

	result, err := SweepApprovals(ctx, engine, now)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)

	now = now.Add(6 * time.Minute)
	result, err = SweepApprovals(ctx, engine, now)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{AutoApproved: 1, Expired: 1}, result)

	assert.Equal(t, string(cricket.StatusFirstInnings), testutil.GetMatch(t, database, first.MatchID).Status)
	assert.Equal(t, string(cricket.StatusFirstInnings), testutil.GetMatch(t, database, second.MatchID).Status)

	result, err = SweepApprovals(ctx, engine, now)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)
}

func TestRegisterApprovalSweep(t *testing.T) {
	svc := newService(t)
	cfg := config.Default().Approvals

	cfg.SweepEnabled = false
	require.NoError(t, RegisterApprovalSweep(svc, cfg, &fakeResolver{}, nil))
	assert.Empty(t, svc.Jobs())

	cfg.SweepEnabled = true
	require.Error(t, RegisterApprovalSweep(svc, cfg, nil, nil))
	require.NoError(t, RegisterApprovalSweep(svc, cfg, &fakeResolver{}, nil))
	require.Len(t, svc.Jobs(), 1)
	assert.Equal(t, approvalSweepJobName, svc.Jobs()[0].Name())
}
