// cmd/server/server.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/api"
	"github.com/codr1/crease/internal/approvals"
	"github.com/codr1/crease/internal/audit"
	"github.com/codr1/crease/internal/config"
	"github.com/codr1/crease/internal/db"
	"github.com/codr1/crease/internal/directory"
	"github.com/codr1/crease/internal/email"
	"github.com/codr1/crease/internal/leagues"
	"github.com/codr1/crease/internal/live"
	"github.com/codr1/crease/internal/ratelimit"
	"github.com/codr1/crease/internal/retry"
	"github.com/codr1/crease/internal/scoring"
)

// app holds the wired services behind the router.
type app struct {
	directory *directory.Store
	approvals *approvals.Engine
	scoring   *scoring.Engine
	standings *leagues.Recalculator
	hub       *live.Hub
	limiter   *ratelimit.Limiter
}

func newApp(ctx context.Context, cfg *config.Config, database *db.DB) (*app, error) {
	dir := directory.NewStore(database.Queries, cfg.Approvals.DefaultAutoApproveTimeout)
	recorder := audit.NewRecorder(database.Queries)
	hub := live.NewHub(cfg.Live.AllowedOrigins, cfg.Live.WriteTimeout)

	notifier, err := newNotifier(ctx, cfg, dir)
	if err != nil {
		return nil, err
	}

	recalculator, err := leagues.NewRecalculator(database)
	if err != nil {
		return nil, fmt.Errorf("create stats recalculator: %w", err)
	}

	approvalEngine, err := approvals.NewEngine(database, dir,
		approvals.WithAudit(recorder),
		approvals.WithNotifier(notifier),
		approvals.WithStats(recalculator),
		approvals.WithPublisher(hub),
	)
	if err != nil {
		return nil, fmt.Errorf("create approval engine: %w", err)
	}

	scoringEngine, err := scoring.NewEngine(database, dir,
		scoring.WithAudit(recorder),
		scoring.WithPublisher(hub),
		scoring.WithRetry(retry.Options{
			MaxRetries:   cfg.Scoring.MaxRetries,
			InitialDelay: cfg.Scoring.InitialRetryDelay,
			MaxDelay:     cfg.Scoring.MaxRetryDelay,
		}),
		scoring.WithTransactionTimeout(cfg.Scoring.TransactionTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create scoring engine: %w", err)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(&ratelimit.Config{
			Window:       cfg.RateLimit.Window,
			MaxPerCaller: cfg.RateLimit.MaxPerCaller,
			MaxPerIP:     cfg.RateLimit.MaxPerIP,
		})
	}

	return &app{
		directory: dir,
		approvals: approvalEngine,
		scoring:   scoringEngine,
		standings: recalculator,
		hub:       hub,
		limiter:   limiter,
	}, nil
}

func (a *app) close() {
	if a.limiter != nil {
		a.limiter.Close()
	}
}

func newNotifier(ctx context.Context, cfg *config.Config, users email.UserLookup) (email.Notifier, error) {
	if !cfg.Email.Enabled {
		log.Info().Msg("Email notifications disabled")
		return email.NoopNotifier{}, nil
	}
	client, err := email.NewSESClient(ctx, cfg.Email.AccessKeyID, cfg.Email.SecretAccessKey, cfg.Email.Region, cfg.Email.Sender)
	if err != nil {
		return nil, fmt.Errorf("create SES client: %w", err)
	}
	log.Info().Str("region", cfg.Email.Region).Msg("Email notifications enabled")
	return email.NewMailNotifier(client, users), nil
}

func newServer(cfg *config.Config, a *app) *http.Server {
	handler := api.NewRouter(api.Dependencies{
		Directory:      a.directory,
		Approvals:      a.approvals,
		Scoring:        a.scoring,
		Standings:      a.standings,
		Live:           a.hub,
		AllowedOrigins: cfg.Live.AllowedOrigins,
		WriteLimiter:   a.limiter,
		TrustProxyIPs:  cfg.RateLimit.TrustProxy,
	})

	return &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Websocket connections manage their own write deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
}
