// internal/models/match.go
package models

import (
	"database/sql"
	"time"

	"github.com/codr1/crease/internal/cricket"
	dbgen "github.com/codr1/crease/internal/db/generated"
)

func MatchFromDB(row dbgen.Match) cricket.Match {
	return cricket.Match{
		ID:           row.ID,
		TournamentID: stringPtr(row.TournamentID),
		TeamAID:      row.TeamAID,
		TeamBID:      row.TeamBID,
		Venue:        row.Venue,
		ScheduledAt:  row.ScheduledAt,
		Status:       cricket.MatchStatus(row.Status),
		Innings1: cricket.InningsScore{
			Runs:    int(row.Innings1Runs),
			Wickets: int(row.Innings1Wickets),
			Overs:   row.Innings1Overs,
		},
		Innings2: cricket.InningsScore{
			Runs:    int(row.Innings2Runs),
			Wickets: int(row.Innings2Wickets),
			Overs:   row.Innings2Overs,
		},
		ScoringApprovedBy:       stringPtr(row.ScoringApprovedBy),
		ScoringApprovedAt:       timePtr(row.ScoringApprovedAt),
		SecondInningsApprovedBy: stringPtr(row.SecondInningsApprovedBy),
		SecondInningsApprovedAt: timePtr(row.SecondInningsApprovedAt),
		FirstInningsComplete:    row.FirstInningsComplete,
		SecondInningsComplete:   row.SecondInningsComplete,
		FinalApprovedAt:         timePtr(row.FinalApprovedAt),
		LiveApprovedBy:          stringPtr(row.LiveApprovedBy),
		UpdatedAt:               row.UpdatedAt,
	}
}

func ApprovalRequestFromDB(row dbgen.ApprovalRequest) cricket.ApprovalRequest {
	return cricket.ApprovalRequest{
		ID:                 row.ID,
		MatchID:            row.MatchID,
		Type:               cricket.ApprovalType(row.Type),
		RequestedBy:        row.RequestedBy,
		Status:             cricket.ApprovalStatus(row.Status),
		ApprovedBy:         stringPtr(row.ApprovedBy),
		RequestedAt:        row.RequestedAt,
		ResolvedAt:         timePtr(row.ResolvedAt),
		AutoApproveAt:      row.AutoApproveAt,
		AutoApproveEnabled: row.AutoApproveEnabled,
		WasAutoApproved:    row.WasAutoApproved,
	}
}

func ApprovalRequestsFromDB(rows []dbgen.ApprovalRequest) []cricket.ApprovalRequest {
	requests := make([]cricket.ApprovalRequest, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, ApprovalRequestFromDB(row))
	}
	return requests
}

func MatchStartApprovalFromDB(row dbgen.MatchStartApproval) cricket.MatchStartApproval {
	return cricket.MatchStartApproval{
		ID:          row.ID,
		MatchID:     row.MatchID,
		RequestedBy: row.RequestedBy,
		Status:      cricket.ApprovalStatus(row.Status),
		ApprovedBy:  stringPtr(row.ApprovedBy),
		RequestedAt: row.RequestedAt,
		ResolvedAt:  timePtr(row.ResolvedAt),
	}
}

func DeliveryFromDB(row dbgen.Delivery) cricket.Delivery {
	d := cricket.Delivery{
		ID:           row.ID,
		Seq:          row.Seq,
		MatchID:      row.MatchID,
		Innings:      int(row.Innings),
		OverNumber:   int(row.OverNumber),
		BallNumber:   int(row.BallNumber),
		StrikerID:    row.StrikerID,
		NonStrikerID: row.NonStrikerID,
		BowlerID:     row.BowlerID,
		Runs:         int(row.Runs),
		IsWicket:     row.IsWicket,
		DismissedID:  stringPtr(row.DismissedID),
		FielderID:    stringPtr(row.FielderID),
		IsWide:       row.IsWide,
		IsNoBall:     row.IsNoBall,
		IsBye:        row.IsBye,
		IsLegBye:     row.IsLegBye,
		EnteredAt:    row.EnteredAt,
		EnteredBy:    row.EnteredBy,
	}
	if row.WicketKind.Valid {
		kind := cricket.WicketKind(row.WicketKind.String)
		d.WicketKind = &kind
	}
	return d
}

// DeliveriesFromDB never returns nil so an empty ledger encodes as [].
func DeliveriesFromDB(rows []dbgen.Delivery) []cricket.Delivery {
	deliveries := make([]cricket.Delivery, 0, len(rows))
	for _, row := range rows {
		deliveries = append(deliveries, DeliveryFromDB(row))
	}
	return deliveries
}

func NullString(value *string) sql.NullString {
	if value == nil || *value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
