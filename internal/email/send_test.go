package email

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codr1/crease/internal/directory"
)

type fakeEmailSender struct {
	sendCalls    int32
	sendStarted  chan struct{}
	sendCtxErrCh chan error
	recipients   chan string
}

func newFakeEmailSender() *fakeEmailSender {
	return &fakeEmailSender{
		sendStarted:  make(chan struct{}, 1),
		sendCtxErrCh: make(chan error, 1),
		recipients:   make(chan string, 1),
	}
}

func (f *fakeEmailSender) Send(ctx context.Context, recipient, subject, body string) error {
	atomic.AddInt32(&f.sendCalls, 1)
	select {
	case f.recipients <- recipient:
	default:
	}
	select {
	case f.sendStarted <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		err := ctx.Err()
		select {
		case f.sendCtxErrCh <- err:
		default:
		}
		return err
	case <-time.After(200 * time.Millisecond):
		return nil
	}
}

type fakeUsers map[string]directory.User

func (f fakeUsers) GetUser(_ context.Context, id string) (directory.User, error) {
	user, ok := f[id]
	if !ok {
		return directory.User{}, errors.New("user not found")
	}
	return user, nil
}

func waitForSignal(t *testing.T, ch <-chan struct{}, message string) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(200 * time.Millisecond):
		t.Fatal(message)
	}
}

func TestNotifyApprovalRequested_SurvivesCallerCancellation(t *testing.T) {
	sender := newFakeEmailSender()
	notifier := NewMailNotifier(sender, fakeUsers{
		"captain-b": {ID: "captain-b", Email: "captain.b@test.com"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	notifier.NotifyApprovalRequested(ctx, ApprovalNotice{
		ApprovalID:  "approval-1",
		MatchID:     "match-1",
		Type:        "START_SCORING",
		RecipientID: "captain-b",
	})

	waitForSignal(t, sender.sendStarted, "expected approval email send to start")
	cancel()

	select {
	case err := <-sender.sendCtxErrCh:
		t.Fatalf("send should not observe request cancellation, got %v", err)
	case <-time.After(300 * time.Millisecond):
	}
	if got := <-sender.recipients; got != "captain.b@test.com" {
		t.Fatalf("expected captain.b@test.com, got %q", got)
	}
	if atomic.LoadInt32(&sender.sendCalls) != 1 {
		t.Fatalf("expected one send call, got %d", atomic.LoadInt32(&sender.sendCalls))
	}
}

func TestNotifyApprovalResolved_SkipsUsersWithoutEmail(t *testing.T) {
	sender := newFakeEmailSender()
	notifier := NewMailNotifier(sender, fakeUsers{"captain-a": {ID: "captain-a"}})

	notifier.NotifyApprovalResolved(context.Background(), ApprovalNotice{
		ApprovalID:  "approval-1",
		Status:      "APPROVED",
		RecipientID: "captain-a",
	})
	notifier.NotifyApprovalResolved(context.Background(), ApprovalNotice{RecipientID: "unknown"})

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&sender.sendCalls) != 0 {
		t.Fatalf("expected no send calls, got %d", atomic.LoadInt32(&sender.sendCalls))
	}
}

func TestBuildApprovalEmails(t *testing.T) {
	deadline := time.Date(2026, 5, 2, 14, 30, 0, 0, time.UTC)
	requested := BuildApprovalRequestedEmail(ApprovalNotice{
		ApprovalID:    "approval-1",
		Type:          "START_SECOND_INNINGS",
		MatchLabel:    "Team A vs Team B",
		AutoApprove:   true,
		AutoApproveAt: deadline,
	})
	if !strings.Contains(requested.Subject, "Team A vs Team B") {
		t.Fatalf("unexpected subject %q", requested.Subject)
	}
	if !strings.Contains(requested.Body, "start the second innings") || !strings.Contains(requested.Body, "14:30 UTC") {
		t.Fatalf("unexpected body %q", requested.Body)
	}

	resolved := BuildApprovalResolvedEmail(ApprovalNotice{
		ApprovalID: "approval-1",
		MatchID:    "match-9",
		Type:       "FINAL_SCORE",
		Status:     "AUTO_APPROVED",
	})
	if resolved.Subject != "Request auto-approved: match match-9" {
		t.Fatalf("unexpected subject %q", resolved.Subject)
	}
	withdrawn := BuildApprovalResolvedEmail(ApprovalNotice{
		ApprovalID: "approval-2",
		MatchID:    "match-9",
		Type:       "FINAL_SCORE",
		Status:     "CANCELLED",
	})
	if withdrawn.Subject != "Request withdrawn: match match-9" {
		t.Fatalf("unexpected subject %q", withdrawn.Subject)
	}
	if !strings.Contains(withdrawn.Body, "No response is needed") {
		t.Fatalf("unexpected body %q", withdrawn.Body)
	}
}
