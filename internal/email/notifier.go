package email

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/directory"
)

const notificationTimeout = 5 * time.Second

// Notifier tells captains about approval requests. Implementations must not
// block the caller and never report failures.
type Notifier interface {
	NotifyApprovalRequested(ctx context.Context, notice ApprovalNotice)
	NotifyApprovalResolved(ctx context.Context, notice ApprovalNotice)
}

type NoopNotifier struct{}

func (NoopNotifier) NotifyApprovalRequested(context.Context, ApprovalNotice) {}
func (NoopNotifier) NotifyApprovalResolved(context.Context, ApprovalNotice)  {}

type UserLookup interface {
	GetUser(ctx context.Context, id string) (directory.User, error)
}

// MailNotifier e-mails the recipient of a notice through an EmailSender.
type MailNotifier struct {
	sender  EmailSender
	users   UserLookup
	timeout time.Duration
}

func NewMailNotifier(sender EmailSender, users UserLookup) *MailNotifier {
	return &MailNotifier{sender: sender, users: users, timeout: notificationTimeout}
}

func (n *MailNotifier) NotifyApprovalRequested(ctx context.Context, notice ApprovalNotice) {
	n.send(ctx, notice, BuildApprovalRequestedEmail(notice))
}

func (n *MailNotifier) NotifyApprovalResolved(ctx context.Context, notice ApprovalNotice) {
	n.send(ctx, notice, BuildApprovalResolvedEmail(notice))
}

func (n *MailNotifier) send(ctx context.Context, notice ApprovalNotice, message Message) {
	if n == nil || n.sender == nil || n.users == nil || notice.RecipientID == "" {
		return
	}
	logger := log.Ctx(ctx).With().
		Str("component", "email_notifier").
		Str("approval_id", notice.ApprovalID).
		Str("recipient_id", notice.RecipientID).
		Logger()

	user, err := n.users.GetUser(ctx, notice.RecipientID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load recipient for approval email")
		return
	}
	recipient := strings.TrimSpace(user.Email)
	if recipient == "" {
		return
	}

	go func() {
		sendCtx, cancel := newEmailContext(ctx, n.timeout)
		defer cancel()
		if err := n.sender.Send(sendCtx, recipient, message.Subject, message.Body); err != nil {
			logger.Error().Err(err).Msg("Failed to send approval email")
			return
		}
		logger.Debug().Msg("Approval email sent")
	}()
}
