package scoring

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/codr1/crease/internal/cricket"
	db "github.com/codr1/crease/internal/db"
	dbgen "github.com/codr1/crease/internal/db/generated"
	"github.com/codr1/crease/internal/directory"
	"github.com/codr1/crease/internal/models"
)

// GetBallsByMatch lists deliveries in position order (innings, over, ball).
// innings and overNumber narrow the result when non-zero. A ledger that has
// not been provisioned yet reads as empty.
func (e *Engine) GetBallsByMatch(ctx context.Context, matchID string, innings, overNumber int) ([]cricket.Delivery, error) {
	if err := cricket.ValidateID("matchId", matchID); err != nil {
		return nil, err
	}
	if innings < 0 || innings > 2 {
		return nil, cricket.Validationf("innings must be 1 or 2, got %d", innings)
	}
	if overNumber < 0 {
		return nil, cricket.Validationf("overNumber must be at least 1, got %d", overNumber)
	}

	var (
		rows []dbgen.Delivery
		err  error
	)
	switch {
	case innings != 0 && overNumber != 0:
		rows, err = e.db.Queries.ListDeliveriesByOver(ctx, dbgen.OverKey{
			MatchID:    matchID,
			Innings:    int64(innings),
			OverNumber: int64(overNumber),
		})
	case innings != 0:
		rows, err = e.db.Queries.ListDeliveriesByInnings(ctx, matchID, int64(innings))
	default:
		rows, err = e.db.Queries.ListDeliveriesByMatch(ctx, matchID)
	}
	if err != nil {
		if db.IsMissingTable(err) {
			return []cricket.Delivery{}, nil
		}
		return nil, db.Classify(err, "list deliveries")
	}

	deliveries := models.DeliveriesFromDB(rows)
	if innings == 0 && overNumber != 0 {
		filtered := deliveries[:0]
		for _, d := range deliveries {
			if d.OverNumber == overNumber {
				filtered = append(filtered, d)
			}
		}
		deliveries = filtered
	}
	return deliveries, nil
}

// ScoringData is everything a scorer's screen needs for one match.
type ScoringData struct {
	Match      cricket.Match      `json:"match"`
	TeamA      directory.Team     `json:"teamA"`
	TeamB      directory.Team     `json:"teamB"`
	RosterA    []directory.Member `json:"rosterA"`
	RosterB    []directory.Member `json:"rosterB"`
	Deliveries []cricket.Delivery `json:"deliveries"`
	// CurrentInnings is the innings open for scoring, or the last innings
	// with deliveries when scoring is closed.
	CurrentInnings int `json:"currentInnings"`
	// CurrentOver is the over the next legal delivery belongs to.
	CurrentOver      int                 `json:"currentOver"`
	CurrentOverBalls int                 `json:"currentOverLegalBalls"`
	CurrentOverState cricket.OverSummary `json:"currentOverSummary"`
	BattingTeamID    string              `json:"battingTeamId"`
	BowlingTeamID    string              `json:"bowlingTeamId"`
	CanScore         bool                `json:"canScore"`
}

// GetScoringData assembles the read view for a scorer. callerID may be empty
// for anonymous viewers, who never get CanScore.
func (e *Engine) GetScoringData(ctx context.Context, matchID, callerID string) (ScoringData, error) {
	if err := cricket.ValidateID("matchId", matchID); err != nil {
		return ScoringData{}, err
	}
	if callerID != "" {
		if err := cricket.ValidateID("callerId", callerID); err != nil {
			return ScoringData{}, err
		}
	}

	row, err := e.loadMatch(ctx, e.db.Queries, matchID)
	if err != nil {
		return ScoringData{}, err
	}
	data := ScoringData{Match: models.MatchFromDB(row)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		team, err := e.directory.GetTeam(gctx, row.TeamAID)
		if err != nil {
			return err
		}
		data.TeamA = team
		data.RosterA, err = e.directory.ListActiveRoster(gctx, row.TeamAID)
		return err
	})
	g.Go(func() error {
		team, err := e.directory.GetTeam(gctx, row.TeamBID)
		if err != nil {
			return err
		}
		data.TeamB = team
		data.RosterB, err = e.directory.ListActiveRoster(gctx, row.TeamBID)
		return err
	})
	g.Go(func() error {
		deliveries, err := e.GetBallsByMatch(gctx, matchID, 0, 0)
		data.Deliveries = deliveries
		return err
	})
	if callerID != "" {
		g.Go(func() error {
			allowed, err := e.canScore(gctx, row, callerID)
			data.CanScore = allowed
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return ScoringData{}, err
	}

	open := data.Match.Status.ScoringInnings()
	data.CanScore = data.CanScore && open != 0
	data.CurrentInnings = currentInnings(open, data.Deliveries)
	data.CurrentOver = currentOver(data.CurrentInnings, data.Deliveries)
	data.CurrentOverState = cricket.SummarizeOver(data.CurrentInnings, data.CurrentOver, data.Deliveries)
	data.CurrentOverBalls = data.CurrentOverState.LegalBalls
	data.BattingTeamID = data.Match.BattingTeamID(data.CurrentInnings)
	data.BowlingTeamID = data.Match.BowlingTeamID(data.CurrentInnings)
	return data, nil
}

func currentInnings(open int, deliveries []cricket.Delivery) int {
	if open != 0 {
		return open
	}
	if n := len(deliveries); n > 0 {
		return deliveries[n-1].Innings
	}
	return 1
}

// currentOver is the highest over with deliveries in the innings, or the one
// after it when that over is complete.
func currentOver(innings int, deliveries []cricket.Delivery) int {
	last := 0
	for _, d := range deliveries {
		if d.Innings == innings && d.OverNumber > last {
			last = d.OverNumber
		}
	}
	if last == 0 {
		return 1
	}
	if cricket.SummarizeOver(innings, last, deliveries).IsComplete {
		return last + 1
	}
	return last
}

// GetOverSummary aggregates one over of one innings.
func (e *Engine) GetOverSummary(ctx context.Context, matchID string, innings, overNumber int) (cricket.OverSummary, error) {
	if err := cricket.ValidateID("matchId", matchID); err != nil {
		return cricket.OverSummary{}, err
	}
	if innings != 1 && innings != 2 {
		return cricket.OverSummary{}, cricket.Validationf("innings must be 1 or 2, got %d", innings)
	}
	if overNumber < 1 {
		return cricket.OverSummary{}, cricket.Validationf("overNumber must be at least 1, got %d", overNumber)
	}
	if _, err := e.loadMatch(ctx, e.db.Queries, matchID); err != nil {
		return cricket.OverSummary{}, err
	}

	deliveries, err := e.GetBallsByMatch(ctx, matchID, innings, overNumber)
	if err != nil {
		return cricket.OverSummary{}, err
	}
	return cricket.SummarizeOver(innings, overNumber, deliveries), nil
}
