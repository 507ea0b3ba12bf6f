package dbgen

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        string
	Name      string
	Email     sql.NullString
	Role      string
	CreatedAt time.Time
}

type UserSetting struct {
	UserID                    string
	AutoApproveEnabled        bool
	AutoApproveTimeoutMinutes int64
}

type Team struct {
	ID        string
	Name      string
	CaptainID sql.NullString
	CreatedAt time.Time
}

type TeamMember struct {
	TeamID   string
	UserID   string
	Name     string
	Status   string
	JoinedAt time.Time
}

type Match struct {
	ID                      string
	TournamentID            sql.NullString
	TeamAID                 string
	TeamBID                 string
	Venue                   string
	ScheduledAt             time.Time
	Status                  string
	Innings1Runs            int64
	Innings1Wickets         int64
	Innings1Overs           decimal.Decimal
	Innings2Runs            int64
	Innings2Wickets         int64
	Innings2Overs           decimal.Decimal
	ScoringApprovedBy       sql.NullString
	ScoringApprovedAt       sql.NullTime
	SecondInningsApprovedBy sql.NullString
	SecondInningsApprovedAt sql.NullTime
	FirstInningsComplete    bool
	SecondInningsComplete   bool
	FinalApprovedAt         sql.NullTime
	LiveApprovedBy          sql.NullString
	UpdatedAt               time.Time
}

type ApprovalRequest struct {
	ID                 string
	MatchID            string
	Type               string
	RequestedBy        string
	Status             string
	ApprovedBy         sql.NullString
	RequestedAt        time.Time
	ResolvedAt         sql.NullTime
	AutoApproveAt      time.Time
	AutoApproveEnabled bool
	WasAutoApproved    bool
}

type MatchFinalApproval struct {
	MatchID      string
	ApproverID   string
	ApprovedAt   time.Time
	AutoApproved bool
}

type MatchStartApproval struct {
	ID          string
	MatchID     string
	RequestedBy string
	Status      string
	ApprovedBy  sql.NullString
	RequestedAt time.Time
	ResolvedAt  sql.NullTime
}

type Delivery struct {
	Seq          int64
	ID           string
	MatchID      string
	Innings      int64
	OverNumber   int64
	BallNumber   int64
	StrikerID    string
	NonStrikerID string
	BowlerID     string
	Runs         int64
	IsWicket     bool
	WicketKind   sql.NullString
	DismissedID  sql.NullString
	FielderID    sql.NullString
	IsWide       bool
	IsNoBall     bool
	IsBye        bool
	IsLegBye     bool
	EnteredAt    time.Time
	EnteredBy    string
}

type AuditLog struct {
	ID          int64
	ActorID     sql.NullString
	Action      string
	MatchID     sql.NullString
	ApprovalID  sql.NullString
	BeforeState sql.NullString
	AfterState  sql.NullString
	CreatedAt   time.Time
}

type TournamentStanding struct {
	TournamentID string
	TeamID       string
	Played       int64
	Won          int64
	Lost         int64
	Tied         int64
	Points       int64
	RunsFor      int64
	RunsAgainst  int64
	NetRunRate   decimal.Decimal
	Position     int64
	UpdatedAt    time.Time
}
