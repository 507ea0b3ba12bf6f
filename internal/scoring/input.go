package scoring

import (
	"strings"

	"github.com/codr1/crease/internal/cricket"
)

// BallInput is one delivery as entered by a scorer. Zero values for Innings,
// OverNumber and BallNumber mean the field was not supplied.
type BallInput struct {
	Innings           int    `json:"innings"`
	OverNumber        int    `json:"overNumber"`
	BallNumber        int    `json:"ballNumber"`
	StrikerID         string `json:"strikerId"`
	NonStrikerID      string `json:"nonStrikerId"`
	BowlerID          string `json:"bowlerId"`
	Runs              int    `json:"runs"`
	IsWicket          bool   `json:"isWicket"`
	WicketType        string `json:"wicketType,omitempty"`
	DismissedPlayerID string `json:"dismissedPlayerId,omitempty"`
	FielderID         string `json:"fielderId,omitempty"`
	IsWide            bool   `json:"isWide"`
	IsNoBall          bool   `json:"isNoBall"`
	IsBye             bool   `json:"isBye"`
	IsLegBye          bool   `json:"isLegBye"`
}

// ball is a validated BallInput.
type ball struct {
	BallInput
	wicketKind *cricket.WicketKind
	dismissed  *string
	fielder    *string
}

func (b ball) legal() bool {
	return !b.IsWide && !b.IsNoBall
}

// validate checks everything that can be checked without the database.
func (in BallInput) validate() (ball, error) {
	switch {
	case in.Innings == 0:
		return ball{}, cricket.Validation("innings is required")
	case in.Innings != 1 && in.Innings != 2:
		return ball{}, cricket.Validationf("innings must be 1 or 2, got %d", in.Innings)
	case in.OverNumber == 0:
		return ball{}, cricket.Validation("overNumber is required")
	case in.OverNumber < 1:
		return ball{}, cricket.Validationf("overNumber must be at least 1, got %d", in.OverNumber)
	case in.BallNumber == 0:
		return ball{}, cricket.Validation("ballNumber is required")
	case in.BallNumber < 1 || in.BallNumber > cricket.MaxBallNumber:
		return ball{}, cricket.Validationf("ballNumber must be between 1 and %d, got %d", cricket.MaxBallNumber, in.BallNumber)
	case in.Runs < 0 || in.Runs > cricket.MaxRunsPerDelivery:
		return ball{}, cricket.Validationf("runs must be between 0 and %d, got %d", cricket.MaxRunsPerDelivery, in.Runs)
	case in.IsWide && in.IsNoBall:
		return ball{}, cricket.Validation("a delivery cannot be both a wide and a no-ball")
	case in.IsBye && in.IsLegBye:
		return ball{}, cricket.Validation("a delivery cannot be both a bye and a leg-bye")
	}

	for _, field := range []struct{ name, id string }{
		{"strikerId", in.StrikerID},
		{"nonStrikerId", in.NonStrikerID},
		{"bowlerId", in.BowlerID},
	} {
		if err := cricket.ValidateID(field.name, field.id); err != nil {
			return ball{}, err
		}
	}
	if in.StrikerID == in.NonStrikerID {
		return ball{}, cricket.Validation("striker and non-striker must be different players")
	}

	b := ball{BallInput: in}
	if !in.IsWicket {
		if strings.TrimSpace(in.WicketType) != "" || in.DismissedPlayerID != "" || in.FielderID != "" {
			return ball{}, cricket.Validation("wicket details given for a delivery that is not a wicket")
		}
		return b, nil
	}

	if strings.TrimSpace(in.WicketType) == "" {
		return ball{}, cricket.Validation("wicketType is required when isWicket is true")
	}
	kind, ok := cricket.ParseWicketKind(in.WicketType)
	if !ok {
		return ball{}, cricket.Validationf("unknown wicketType %q", in.WicketType)
	}
	b.wicketKind = &kind

	dismissed := in.StrikerID
	if in.DismissedPlayerID != "" {
		if err := cricket.ValidateID("dismissedPlayerId", in.DismissedPlayerID); err != nil {
			return ball{}, err
		}
		if in.DismissedPlayerID != in.StrikerID && in.DismissedPlayerID != in.NonStrikerID {
			return ball{}, cricket.Validation("dismissedPlayerId must be the striker or the non-striker")
		}
		dismissed = in.DismissedPlayerID
	}
	b.dismissed = &dismissed

	if kind.RequiresFielder() {
		if in.FielderID == "" {
			return ball{}, cricket.Validationf("fielderId is required for %s", kind)
		}
		if err := cricket.ValidateID("fielderId", in.FielderID); err != nil {
			return ball{}, err
		}
		fielder := in.FielderID
		b.fielder = &fielder
	} else if in.FielderID != "" {
		return ball{}, cricket.Validationf("fielderId is not used for %s", kind)
	}
	return b, nil
}
