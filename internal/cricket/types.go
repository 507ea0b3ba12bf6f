// Package cricket holds the match, approval and delivery model shared by the
// approval and scoring engines.
package cricket

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type MatchStatus string

const (
	StatusScheduled            MatchStatus = "SCHEDULED"
	StatusScoringPending       MatchStatus = "SCORING_PENDING"
	StatusFirstInnings         MatchStatus = "FIRST_INNINGS"
	StatusSecondInningsPending MatchStatus = "SECOND_INNINGS_PENDING"
	StatusSecondInnings        MatchStatus = "SECOND_INNINGS"
	StatusFinalPending         MatchStatus = "FINAL_PENDING"
	StatusCompleted            MatchStatus = "COMPLETED"
	StatusCancelled            MatchStatus = "CANCELLED"
	// StatusLive is only reached through the single-step match start approval.
	StatusLive MatchStatus = "LIVE"
)

// IsTerminal reports whether no further transitions are allowed.
func (s MatchStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ScoringInnings returns the innings that may receive deliveries in this
// status, or 0 when scoring is closed.
func (s MatchStatus) ScoringInnings() int {
	switch s {
	case StatusFirstInnings:
		return 1
	case StatusSecondInnings:
		return 2
	default:
		return 0
	}
}

type ApprovalType string

const (
	ApprovalStartScoring       ApprovalType = "START_SCORING"
	ApprovalStartSecondInnings ApprovalType = "START_SECOND_INNINGS"
	ApprovalFinalScore         ApprovalType = "FINAL_SCORE"
)

func ParseApprovalType(raw string) (ApprovalType, error) {
	switch t := ApprovalType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case ApprovalStartScoring, ApprovalStartSecondInnings, ApprovalFinalScore:
		return t, nil
	default:
		return "", Validation("type must be one of START_SCORING, START_SECOND_INNINGS, FINAL_SCORE")
	}
}

type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "PENDING"
	ApprovalApproved     ApprovalStatus = "APPROVED"
	ApprovalRejected     ApprovalStatus = "REJECTED"
	ApprovalCancelled    ApprovalStatus = "CANCELLED"
	ApprovalAutoApproved ApprovalStatus = "AUTO_APPROVED"
	ApprovalExpired      ApprovalStatus = "EXPIRED"
)

type WicketKind string

const (
	WicketBowled    WicketKind = "BOWLED"
	WicketCaught    WicketKind = "CAUGHT"
	WicketLBW       WicketKind = "LBW"
	WicketRunOut    WicketKind = "RUN_OUT"
	WicketStumped   WicketKind = "STUMPED"
	WicketHitWicket WicketKind = "HIT_WICKET"
)

func ParseWicketKind(raw string) (WicketKind, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch k := WicketKind(normalized); k {
	case WicketBowled, WicketCaught, WicketLBW, WicketRunOut, WicketStumped, WicketHitWicket:
		return k, true
	default:
		return "", false
	}
}

// RequiresFielder reports whether the dismissal involves a fielder.
func (k WicketKind) RequiresFielder() bool {
	return k == WicketCaught || k == WicketRunOut || k == WicketStumped
}

const (
	MaxLegalBallsPerOver = 6
	MaxBallNumber        = 10
	MaxRunsPerDelivery   = 6
)

// InningsScore is the cached projection of one innings. Overs uses cricket
// notation: 2.3 means two complete overs and three legal balls.
type InningsScore struct {
	Runs    int             `json:"runs"`
	Wickets int             `json:"wickets"`
	Overs   decimal.Decimal `json:"overs"`
}

type Match struct {
	ID                      string       `json:"id"`
	TournamentID            *string      `json:"tournamentId,omitempty"`
	TeamAID                 string       `json:"teamAId"`
	TeamBID                 string       `json:"teamBId"`
	Venue                   string       `json:"venue"`
	ScheduledAt             time.Time    `json:"scheduledAt"`
	Status                  MatchStatus  `json:"status"`
	Innings1                InningsScore `json:"innings1"`
	Innings2                InningsScore `json:"innings2"`
	ScoringApprovedBy       *string      `json:"scoringApprovedBy,omitempty"`
	ScoringApprovedAt       *time.Time   `json:"scoringApprovedAt,omitempty"`
	SecondInningsApprovedBy *string      `json:"secondInningsApprovedBy,omitempty"`
	SecondInningsApprovedAt *time.Time   `json:"secondInningsApprovedAt,omitempty"`
	FirstInningsComplete    bool         `json:"firstInningsComplete"`
	SecondInningsComplete   bool         `json:"secondInningsComplete"`
	FinalApprovedAt         *time.Time   `json:"finalApprovedAt,omitempty"`
	LiveApprovedBy          *string      `json:"liveApprovedBy,omitempty"`
	UpdatedAt               time.Time    `json:"updatedAt"`
}

// BattingTeamID returns the batting side for an innings; team A always bats first.
func (m Match) BattingTeamID(innings int) string {
	if innings == 2 {
		return m.TeamBID
	}
	return m.TeamAID
}

func (m Match) BowlingTeamID(innings int) string {
	if innings == 2 {
		return m.TeamAID
	}
	return m.TeamBID
}

type ApprovalRequest struct {
	ID                 string         `json:"id"`
	MatchID            string         `json:"matchId"`
	Type               ApprovalType   `json:"type"`
	RequestedBy        string         `json:"requestedBy"`
	Status             ApprovalStatus `json:"status"`
	ApprovedBy         *string        `json:"approvedBy,omitempty"`
	RequestedAt        time.Time      `json:"requestedAt"`
	ResolvedAt         *time.Time     `json:"resolvedAt,omitempty"`
	AutoApproveAt      time.Time      `json:"autoApproveAt"`
	AutoApproveEnabled bool           `json:"autoApproveEnabled"`
	WasAutoApproved    bool           `json:"wasAutoApproved"`
}

// MatchStartApproval is the single-step request that moves a scheduled match
// straight to LIVE.
type MatchStartApproval struct {
	ID          string         `json:"id"`
	MatchID     string         `json:"matchId"`
	RequestedBy string         `json:"requestedBy"`
	Status      ApprovalStatus `json:"status"`
	ApprovedBy  *string        `json:"approvedBy,omitempty"`
	RequestedAt time.Time      `json:"requestedAt"`
	ResolvedAt  *time.Time     `json:"resolvedAt,omitempty"`
}

type Delivery struct {
	ID           string      `json:"id"`
	Seq          int64       `json:"seq"`
	MatchID      string      `json:"matchId"`
	Innings      int         `json:"innings"`
	OverNumber   int         `json:"overNumber"`
	BallNumber   int         `json:"ballNumber"`
	StrikerID    string      `json:"strikerId"`
	NonStrikerID string      `json:"nonStrikerId"`
	BowlerID     string      `json:"bowlerId"`
	Runs         int         `json:"runs"`
	IsWicket     bool        `json:"isWicket"`
	WicketKind   *WicketKind `json:"wicketType,omitempty"`
	DismissedID  *string     `json:"dismissedPlayerId,omitempty"`
	FielderID    *string     `json:"fielderId,omitempty"`
	IsWide       bool        `json:"isWide"`
	IsNoBall     bool        `json:"isNoBall"`
	IsBye        bool        `json:"isBye"`
	IsLegBye     bool        `json:"isLegBye"`
	EnteredAt    time.Time   `json:"enteredAt"`
	EnteredBy    string      `json:"enteredBy"`
}

// IsLegal reports whether the delivery counts toward the six-ball over.
func (d Delivery) IsLegal() bool {
	return !d.IsWide && !d.IsNoBall
}

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsValidID reports whether id is a lowercase 8-4-4-4-12 hex UUID.
func IsValidID(id string) bool {
	return uuidRegex.MatchString(id)
}

// ValidateID returns a validation error naming field when id is malformed.
func ValidateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return Validationf("%s is required", field)
	}
	if !IsValidID(id) {
		return Validationf("%s must be a lowercase UUID", field)
	}
	return nil
}
