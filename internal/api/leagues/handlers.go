// internal/api/leagues/handlers.go
package leagues

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/api/apiutil"
	"github.com/codr1/crease/internal/leagues"
)

const (
	leagueQueryTimeout  = 5 * time.Second
	tournamentIDPathKey = "tournamentID"
)

type StandingsReader interface {
	Standings(ctx context.Context, tournamentID string) ([]leagues.TeamStanding, error)
}

type Handler struct {
	standings StandingsReader
}

func NewHandler(standings StandingsReader) *Handler {
	return &Handler{standings: standings}
}

type standingsResponse struct {
	TournamentID string                 `json:"tournamentId"`
	Standings    []leagues.TeamStanding `json:"standings"`
}

// GET /api/v1/tournaments/{tournamentID}/standings
func (h *Handler) HandleStandings(w http.ResponseWriter, r *http.Request) {
	tournamentID := chi.URLParam(r, tournamentIDPathKey)

	ctx, cancel := context.WithTimeout(r.Context(), leagueQueryTimeout)
	defer cancel()

	standings, err := h.standings.Standings(ctx, tournamentID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if standings == nil {
		standings = []leagues.TeamStanding{}
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, standingsResponse{TournamentID: tournamentID, Standings: standings}); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("tournament_id", tournamentID).Msg("Failed to write standings response")
	}
}
