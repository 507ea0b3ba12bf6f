// Package directory provides read-only lookups of users, teams and rosters.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codr1/crease/internal/cricket"
	dbgen "github.com/codr1/crease/internal/db/generated"
)

const RoleAdmin = "admin"

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Team struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CaptainID string `json:"captainId,omitempty"`
}

type Member struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// ApprovalSettings control how a captain's requests time out.
type ApprovalSettings struct {
	AutoApproveEnabled bool
	AutoApproveTimeout time.Duration
}

type Directory interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetTeam(ctx context.Context, id string) (Team, error)
	IsActiveMember(ctx context.Context, teamID, userID string) (bool, error)
	ListActiveRoster(ctx context.Context, teamID string) ([]Member, error)
	ApprovalSettings(ctx context.Context, userID string) (ApprovalSettings, error)
}

type Queries interface {
	GetUser(ctx context.Context, id string) (dbgen.User, error)
	GetTeam(ctx context.Context, id string) (dbgen.Team, error)
	IsActiveTeamMember(ctx context.Context, teamID, userID string) (bool, error)
	ListActiveTeamMembers(ctx context.Context, teamID string) ([]dbgen.TeamMember, error)
	GetUserSettings(ctx context.Context, userID string) (dbgen.UserSetting, error)
}

// Store implements Directory over the users, teams and team_members tables.
type Store struct {
	queries        Queries
	defaultTimeout time.Duration
}

func NewStore(queries Queries, defaultTimeout time.Duration) *Store {
	if defaultTimeout <= 0 {
		defaultTimeout = 5 * time.Minute
	}
	return &Store{queries: queries, defaultTimeout: defaultTimeout}
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	row, err := s.queries.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, cricket.NotFound("user", id)
		}
		return User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return User{
		ID:    row.ID,
		Name:  row.Name,
		Email: row.Email.String,
		Role:  row.Role,
	}, nil
}

func (s *Store) GetTeam(ctx context.Context, id string) (Team, error) {
	row, err := s.queries.GetTeam(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Team{}, cricket.NotFound("team", id)
		}
		return Team{}, fmt.Errorf("get team %s: %w", id, err)
	}
	return Team{
		ID:        row.ID,
		Name:      row.Name,
		CaptainID: row.CaptainID.String,
	}, nil
}

func (s *Store) IsActiveMember(ctx context.Context, teamID, userID string) (bool, error) {
	member, err := s.queries.IsActiveTeamMember(ctx, teamID, userID)
	if err != nil {
		return false, fmt.Errorf("check membership of %s in team %s: %w", userID, teamID, err)
	}
	return member, nil
}

func (s *Store) ListActiveRoster(ctx context.Context, teamID string) ([]Member, error) {
	rows, err := s.queries.ListActiveTeamMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list roster of team %s: %w", teamID, err)
	}
	members := make([]Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, Member{UserID: row.UserID, Name: row.Name})
	}
	return members, nil
}

// ApprovalSettings falls back to auto-approval enabled with the configured
// timeout when the user has no settings row.
func (s *Store) ApprovalSettings(ctx context.Context, userID string) (ApprovalSettings, error) {
	row, err := s.queries.GetUserSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ApprovalSettings{AutoApproveEnabled: true, AutoApproveTimeout: s.defaultTimeout}, nil
		}
		return ApprovalSettings{}, fmt.Errorf("get settings of user %s: %w", userID, err)
	}
	timeout := time.Duration(row.AutoApproveTimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	return ApprovalSettings{
		AutoApproveEnabled: row.AutoApproveEnabled,
		AutoApproveTimeout: timeout,
	}, nil
}
