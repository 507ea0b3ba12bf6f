package cricket

import "github.com/shopspring/decimal"

var ballsPerOverDivisor = decimal.NewFromInt(10)

// ComputeInningsScore derives the score of one innings from its deliveries.
// It must be given exactly the deliveries of a single (match, innings) pair.
func ComputeInningsScore(deliveries []Delivery) InningsScore {
	var runs, wickets, legalBalls int
	for _, d := range deliveries {
		runs += d.Runs
		if d.IsWicket {
			wickets++
		}
		if d.IsLegal() {
			legalBalls++
		}
	}
	return InningsScore{
		Runs:    runs,
		Wickets: wickets,
		Overs:   OversFromBalls(legalBalls),
	}
}

// OversFromBalls encodes a legal-ball count as X.Y overs where Y is the ball
// within the current over.
func OversFromBalls(legalBalls int) decimal.Decimal {
	complete := decimal.NewFromInt(int64(legalBalls / MaxLegalBallsPerOver))
	partial := decimal.NewFromInt(int64(legalBalls % MaxLegalBallsPerOver)).Div(ballsPerOverDivisor)
	return complete.Add(partial)
}

// BallsFromOvers reverses OversFromBalls.
func BallsFromOvers(overs decimal.Decimal) int {
	complete := overs.Floor()
	partial := overs.Sub(complete).Mul(ballsPerOverDivisor).Round(0)
	return int(complete.IntPart())*MaxLegalBallsPerOver + int(partial.IntPart())
}

// OverSummary aggregates one over of one innings.
type OverSummary struct {
	Innings    int        `json:"innings"`
	OverNumber int        `json:"overNumber"`
	Runs       int        `json:"runs"`
	Wickets    int        `json:"wickets"`
	LegalBalls int        `json:"legalBalls"`
	IsComplete bool       `json:"isComplete"`
	Balls      []Delivery `json:"balls"`
}

func SummarizeOver(innings, overNumber int, deliveries []Delivery) OverSummary {
	summary := OverSummary{
		Innings:    innings,
		OverNumber: overNumber,
		Balls:      make([]Delivery, 0, len(deliveries)),
	}
	for _, d := range deliveries {
		if d.Innings != innings || d.OverNumber != overNumber {
			continue
		}
		summary.Runs += d.Runs
		if d.IsWicket {
			summary.Wickets++
		}
		if d.IsLegal() {
			summary.LegalBalls++
		}
		summary.Balls = append(summary.Balls, d)
	}
	summary.IsComplete = summary.LegalBalls >= MaxLegalBallsPerOver
	return summary
}
