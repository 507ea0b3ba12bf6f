// internal/api/router.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/codr1/crease/internal/api/apiutil"
	apiapprovals "github.com/codr1/crease/internal/api/approvals"
	apileagues "github.com/codr1/crease/internal/api/leagues"
	apiscoring "github.com/codr1/crease/internal/api/scoring"
	"github.com/codr1/crease/internal/cricket"
	"github.com/codr1/crease/internal/directory"
	"github.com/codr1/crease/internal/ratelimit"
)

// LiveServer upgrades a request into a match subscription.
type LiveServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, matchID string)
}

// Dependencies are the services the router exposes.
type Dependencies struct {
	Directory      directory.Directory
	Approvals      apiapprovals.Engine
	Scoring        apiscoring.Engine
	Standings      apileagues.StandingsReader
	Live           LiveServer
	AllowedOrigins []string
	// WriteLimiter is optional; nil disables throttling.
	WriteLimiter  *ratelimit.Limiter
	TrustProxyIPs bool
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(WithLogging)
	r.Use(WithRecovery)
	r.Use(middleware.CleanPath)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(deps.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", UserIDHeader, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = apiutil.WriteJSON(w, http.StatusNotFound, apiutil.ErrorResponse{Error: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = apiutil.WriteJSON(w, http.StatusMethodNotAllowed, apiutil.ErrorResponse{Error: "Method Not Allowed"})
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	approvals := apiapprovals.NewHandler(deps.Approvals)
	scoring := apiscoring.NewHandler(deps.Scoring)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(WithCaller(deps.Directory))
		r.Use(WithWriteLimit(deps.WriteLimiter, deps.TrustProxyIPs))

		r.Get("/approvals/pending", approvals.HandlePending)
		r.Post("/approvals/{approvalID}/respond", approvals.HandleRespond)
		r.Post("/approvals/{approvalID}/cancel", approvals.HandleCancel)
		r.Post("/match-start/{approvalID}/respond", approvals.HandleRespondMatchStart)

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/approvals", approvals.HandleList)
			r.Post("/approvals", approvals.HandleRequestApproval)
			r.Post("/start-request", approvals.HandleRequestMatchStart)

			r.Get("/balls", scoring.HandleListBalls)
			r.Post("/balls", scoring.HandleEnterBall)
			r.Delete("/balls/last", scoring.HandleUndoLastBall)
			r.Get("/scoring", scoring.HandleScoringData)
			r.Get("/overs/{innings}/{over}", scoring.HandleOverSummary)

			if deps.Live != nil {
				r.Get("/live", func(w http.ResponseWriter, r *http.Request) {
					matchID := chi.URLParam(r, "matchID")
					if err := cricket.ValidateID("matchId", matchID); err != nil {
						apiutil.WriteError(w, r, err)
						return
					}
					deps.Live.ServeWS(w, r, matchID)
				})
			}
		})

		if deps.Standings != nil {
			r.Get("/tournaments/{tournamentID}/standings", apileagues.NewHandler(deps.Standings).HandleStandings)
		}
	})

	return r
}

func allowedOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}
	return configured
}
