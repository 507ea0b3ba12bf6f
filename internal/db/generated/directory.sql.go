package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const getUser = `SELECT id, name, email, role, created_at FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	var i User
	err := q.db.QueryRowContext(ctx, getUser, id).Scan(&i.ID, &i.Name, &i.Email, &i.Role, &i.CreatedAt)
	return i, err
}

const createUser = `
INSERT INTO users (id, name, email, role, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, name, email, role, created_at`

type CreateUserParams struct {
	ID        string
	Name      string
	Email     sql.NullString
	Role      string
	CreatedAt time.Time
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	var i User
	err := q.db.QueryRowContext(ctx, createUser, arg.ID, arg.Name, arg.Email, arg.Role, arg.CreatedAt).
		Scan(&i.ID, &i.Name, &i.Email, &i.Role, &i.CreatedAt)
	return i, err
}

const getUserSettings = `
SELECT user_id, auto_approve_enabled, auto_approve_timeout_minutes
FROM user_settings
WHERE user_id = ?`

func (q *Queries) GetUserSettings(ctx context.Context, userID string) (UserSetting, error) {
	var i UserSetting
	err := q.db.QueryRowContext(ctx, getUserSettings, userID).
		Scan(&i.UserID, &i.AutoApproveEnabled, &i.AutoApproveTimeoutMinutes)
	return i, err
}

const upsertUserSettings = `
INSERT INTO user_settings (user_id, auto_approve_enabled, auto_approve_timeout_minutes)
VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    auto_approve_enabled = excluded.auto_approve_enabled,
    auto_approve_timeout_minutes = excluded.auto_approve_timeout_minutes`

func (q *Queries) UpsertUserSettings(ctx context.Context, arg UserSetting) error {
	_, err := q.db.ExecContext(ctx, upsertUserSettings, arg.UserID, arg.AutoApproveEnabled, arg.AutoApproveTimeoutMinutes)
	return err
}

const getTeam = `SELECT id, name, captain_id, created_at FROM teams WHERE id = ?`

func (q *Queries) GetTeam(ctx context.Context, id string) (Team, error) {
	var i Team
	err := q.db.QueryRowContext(ctx, getTeam, id).Scan(&i.ID, &i.Name, &i.CaptainID, &i.CreatedAt)
	return i, err
}

const createTeam = `
INSERT INTO teams (id, name, captain_id, created_at)
VALUES (?, ?, ?, ?)
RETURNING id, name, captain_id, created_at`

type CreateTeamParams struct {
	ID        string
	Name      string
	CaptainID sql.NullString
	CreatedAt time.Time
}

func (q *Queries) CreateTeam(ctx context.Context, arg CreateTeamParams) (Team, error) {
	var i Team
	err := q.db.QueryRowContext(ctx, createTeam, arg.ID, arg.Name, arg.CaptainID, arg.CreatedAt).
		Scan(&i.ID, &i.Name, &i.CaptainID, &i.CreatedAt)
	return i, err
}

const addTeamMember = `
INSERT INTO team_members (team_id, user_id, status, joined_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (team_id, user_id) DO UPDATE SET status = excluded.status`

type AddTeamMemberParams struct {
	TeamID   string
	UserID   string
	Status   string
	JoinedAt time.Time
}

func (q *Queries) AddTeamMember(ctx context.Context, arg AddTeamMemberParams) error {
	_, err := q.db.ExecContext(ctx, addTeamMember, arg.TeamID, arg.UserID, arg.Status, arg.JoinedAt)
	return err
}

const isActiveTeamMember = `
SELECT EXISTS (
    SELECT 1 FROM team_members
    WHERE team_id = ? AND user_id = ? AND status = 'active'
)`

func (q *Queries) IsActiveTeamMember(ctx context.Context, teamID, userID string) (bool, error) {
	var member bool
	err := q.db.QueryRowContext(ctx, isActiveTeamMember, teamID, userID).Scan(&member)
	return member, err
}

const listActiveTeamMembers = `
SELECT tm.team_id, tm.user_id, u.name, tm.status, tm.joined_at
FROM team_members tm
JOIN users u ON u.id = tm.user_id
WHERE tm.team_id = ? AND tm.status = 'active'
ORDER BY u.name, tm.user_id`

func (q *Queries) ListActiveTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	rows, err := q.db.QueryContext(ctx, listActiveTeamMembers, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TeamMember
	for rows.Next() {
		var i TeamMember
		if err := rows.Scan(&i.TeamID, &i.UserID, &i.Name, &i.Status, &i.JoinedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTournament = `INSERT INTO tournaments (id, name, created_at) VALUES (?, ?, ?)`

func (q *Queries) CreateTournament(ctx context.Context, id, name string, createdAt time.Time) error {
	_, err := q.db.ExecContext(ctx, createTournament, id, name, createdAt)
	return err
}
