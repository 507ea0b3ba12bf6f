package email

import (
	"fmt"
	"strings"
	"time"
)

type Message struct {
	Subject string
	Body    string
}

// ApprovalNotice describes an approval request for the captain who has to act
// on it, or for the requester once it is resolved.
type ApprovalNotice struct {
	ApprovalID    string
	MatchID       string
	Type          string
	Status        string
	RequestedBy   string
	RecipientID   string
	MatchLabel    string
	AutoApproveAt time.Time
	AutoApprove   bool
}

func TypeLabel(approvalType string) string {
	switch strings.TrimSpace(approvalType) {
	case "START_SCORING":
		return "start scoring"
	case "START_SECOND_INNINGS":
		return "start the second innings"
	case "FINAL_SCORE":
		return "confirm the final score"
	case "MATCH_START":
		return "start the match"
	}
	return "change the match status"
}

func BuildApprovalRequestedEmail(notice ApprovalNotice) Message {
	label := matchLabel(notice)
	var body strings.Builder
	fmt.Fprintf(&body, "The opposing captain has asked to %s for %s.\n\n", TypeLabel(notice.Type), label)
	if notice.AutoApprove && !notice.AutoApproveAt.IsZero() {
		fmt.Fprintf(&body, "If you do not respond, the request is approved automatically at %s.\n",
			notice.AutoApproveAt.UTC().Format("15:04 MST, Jan 2"))
	} else {
		body.WriteString("The request stays open until you respond.\n")
	}
	fmt.Fprintf(&body, "\nRequest: %s\n", notice.ApprovalID)

	return Message{
		Subject: fmt.Sprintf("Approval needed: %s", label),
		Body:    body.String(),
	}
}

func BuildApprovalResolvedEmail(notice ApprovalNotice) Message {
	label := matchLabel(notice)
	outcome := strings.ToLower(strings.ReplaceAll(notice.Status, "_", "-"))
	if outcome == "" {
		outcome = "resolved"
	}
	// Withdrawn requests go to the captain who was asked to respond.
	if notice.Status == "CANCELLED" {
		return Message{
			Subject: fmt.Sprintf("Request withdrawn: %s", label),
			Body: fmt.Sprintf("The request to %s for %s was withdrawn. No response is needed.\n\nRequest: %s\n",
				TypeLabel(notice.Type), label, notice.ApprovalID),
		}
	}
	return Message{
		Subject: fmt.Sprintf("Request %s: %s", outcome, label),
		Body: fmt.Sprintf("Your request to %s for %s was %s.\n\nRequest: %s\n",
			TypeLabel(notice.Type), label, outcome, notice.ApprovalID),
	}
}

func matchLabel(notice ApprovalNotice) string {
	if label := strings.TrimSpace(notice.MatchLabel); label != "" {
		return label
	}
	return "match " + notice.MatchID
}
