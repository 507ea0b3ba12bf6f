// Package scoring records deliveries ball by ball and keeps each innings'
// score snapshot on the match in step with the ledger.
package scoring

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/audit"
	"github.com/codr1/crease/internal/cricket"
	db "github.com/codr1/crease/internal/db"
	dbgen "github.com/codr1/crease/internal/db/generated"
	"github.com/codr1/crease/internal/directory"
	"github.com/codr1/crease/internal/live"
	"github.com/codr1/crease/internal/models"
	"github.com/codr1/crease/internal/retry"
)

const defaultTransactionTimeout = 15 * time.Second

type Engine struct {
	db        *db.DB
	directory directory.Directory
	audit     audit.Logger
	publisher live.Publisher
	clock     func() time.Time
	retry     retry.Options
	txTimeout time.Duration
}

type Option func(*Engine)

func WithAudit(logger audit.Logger) Option {
	return func(e *Engine) { e.audit = logger }
}

func WithPublisher(publisher live.Publisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithRetry sets the backoff used for ball entry and undo. The Retryable
// predicate is always replaced by the engine's own.
func WithRetry(opts retry.Options) Option {
	return func(e *Engine) { e.retry = opts }
}

// WithTransactionTimeout bounds each attempt of a ball entry or undo.
func WithTransactionTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.txTimeout = timeout
		}
	}
}

func NewEngine(database *db.DB, dir directory.Directory, opts ...Option) (*Engine, error) {
	if database == nil {
		return nil, errors.New("scoring engine requires a database")
	}
	if dir == nil {
		return nil, errors.New("scoring engine requires a directory")
	}
	e := &Engine{
		db:        database,
		directory: dir,
		audit:     audit.Nop{},
		publisher: live.NopPublisher{},
		clock:     time.Now,
		retry:     retry.DefaultOptions(),
		txTimeout: defaultTransactionTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.retry.Retryable = isRetryable
	return e, nil
}

func isRetryable(err error) bool {
	return errors.Is(err, cricket.ErrTransient) || db.IsBusy(err) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

func (e *Engine) loadMatch(ctx context.Context, queries *dbgen.Queries, matchID string) (dbgen.Match, error) {
	match, err := queries.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbgen.Match{}, cricket.NotFound("match", matchID)
		}
		return dbgen.Match{}, db.Classify(err, "load match")
	}
	return match, nil
}

// canScore reports whether the caller captains either team or is an admin.
func (e *Engine) canScore(ctx context.Context, match dbgen.Match, callerID string) (bool, error) {
	for _, teamID := range []string{match.TeamAID, match.TeamBID} {
		team, err := e.directory.GetTeam(ctx, teamID)
		if err != nil {
			return false, err
		}
		if team.CaptainID != "" && team.CaptainID == callerID {
			return true, nil
		}
	}
	user, err := e.directory.GetUser(ctx, callerID)
	if err != nil {
		if errors.Is(err, cricket.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.IsAdmin(), nil
}

func (e *Engine) authorize(ctx context.Context, match dbgen.Match, callerID string) error {
	allowed, err := e.canScore(ctx, match, callerID)
	if err != nil {
		return err
	}
	if !allowed {
		return cricket.Forbidden("only a team captain or an admin can score this match")
	}
	return nil
}

// runScoped runs fn in its own transaction per attempt, bounded by the
// transaction timeout and retried on lock contention.
func runScoped[T any](ctx context.Context, e *Engine, op string, fn func(ctx context.Context, txdb *db.DB) (T, error)) (T, error) {
	result, err := retry.Do(ctx, e.retry, func(ctx context.Context) (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, e.txTimeout)
		defer cancel()

		var out T
		err := e.db.RunInTx(attemptCtx, func(txdb *db.DB) error {
			var err error
			out, err = fn(attemptCtx, txdb)
			return err
		})
		return out, err
	})
	if err != nil {
		var zero T
		return zero, db.Classify(err, op)
	}
	return result, nil
}

// recompute rebuilds the score snapshot of one innings from its deliveries.
func recompute(ctx context.Context, queries *dbgen.Queries, matchID string, innings int, now time.Time) (cricket.InningsScore, error) {
	rows, err := queries.ListDeliveriesByInnings(ctx, matchID, int64(innings))
	if err != nil {
		return cricket.InningsScore{}, db.Classify(err, "list innings deliveries")
	}
	score := cricket.ComputeInningsScore(models.DeliveriesFromDB(rows))
	err = queries.UpdateInningsScore(ctx, dbgen.UpdateInningsScoreParams{
		ID:        matchID,
		Innings:   int64(innings),
		Runs:      int64(score.Runs),
		Wickets:   int64(score.Wickets),
		Overs:     score.Overs,
		UpdatedAt: now,
	})
	if err != nil {
		return cricket.InningsScore{}, db.Classify(err, "update innings score")
	}
	return score, nil
}

type ballResult struct {
	delivery dbgen.Delivery
	score    cricket.InningsScore
}

// EnterBall records one delivery and refreshes the innings score in the same
// transaction.
func (e *Engine) EnterBall(ctx context.Context, matchID, callerID string, input BallInput) (cricket.Delivery, error) {
	if err := cricket.ValidateID("matchId", matchID); err != nil {
		return cricket.Delivery{}, err
	}
	if err := cricket.ValidateID("callerId", callerID); err != nil {
		return cricket.Delivery{}, err
	}
	b, err := input.validate()
	if err != nil {
		return cricket.Delivery{}, err
	}

	logger := log.Ctx(ctx).With().
		Str("component", "scoring_engine").
		Str("match_id", matchID).
		Str("caller_id", callerID).
		Int("innings", b.Innings).
		Int("over", b.OverNumber).
		Int("ball", b.BallNumber).
		Logger()

	match, err := e.loadMatch(ctx, e.db.Queries, matchID)
	if err != nil {
		return cricket.Delivery{}, err
	}
	if err := e.authorize(ctx, match, callerID); err != nil {
		return cricket.Delivery{}, err
	}
	if err := checkScoringInnings(cricket.MatchStatus(match.Status), b.Innings); err != nil {
		return cricket.Delivery{}, err
	}

	bowlingTeam := models.MatchFromDB(match).BowlingTeamID(b.Innings)
	onRoster, err := e.directory.IsActiveMember(ctx, bowlingTeam, b.BowlerID)
	if err != nil {
		return cricket.Delivery{}, err
	}
	if !onRoster {
		return cricket.Delivery{}, cricket.Validation("bowler is not on the bowling team roster")
	}

	now := e.now()
	result, err := runScoped(ctx, e, "enter ball", func(ctx context.Context, txdb *db.DB) (ballResult, error) {
		current, err := e.loadMatch(ctx, txdb.Queries, matchID)
		if err != nil {
			return ballResult{}, err
		}
		if err := checkScoringInnings(cricket.MatchStatus(current.Status), b.Innings); err != nil {
			return ballResult{}, err
		}

		key := dbgen.OverKey{MatchID: matchID, Innings: int64(b.Innings), OverNumber: int64(b.OverNumber)}
		taken, err := txdb.Queries.DeliveryPositionTaken(ctx, key, int64(b.BallNumber))
		if err != nil {
			return ballResult{}, db.Classify(err, "check delivery position")
		}
		if taken {
			return ballResult{}, cricket.Conflictf("ball %d.%d of innings %d is already recorded", b.OverNumber, b.BallNumber, b.Innings)
		}

		if b.legal() {
			legalBalls, err := txdb.Queries.CountLegalBallsInOver(ctx, key)
			if err != nil {
				return ballResult{}, db.Classify(err, "count legal balls")
			}
			if legalBalls >= cricket.MaxLegalBallsPerOver {
				return ballResult{}, cricket.Conflictf("over %d of innings %d already has %d legal deliveries", b.OverNumber, b.Innings, cricket.MaxLegalBallsPerOver)
			}
		}

		inserted, err := txdb.Queries.InsertDelivery(ctx, insertParams(matchID, callerID, b, now))
		if err != nil {
			if db.IsUniqueViolation(err) {
				return ballResult{}, cricket.Conflictf("ball %d.%d of innings %d is already recorded", b.OverNumber, b.BallNumber, b.Innings)
			}
			return ballResult{}, db.Classify(err, "insert delivery")
		}

		score, err := recompute(ctx, txdb.Queries, matchID, b.Innings, now)
		if err != nil {
			return ballResult{}, err
		}
		return ballResult{delivery: inserted, score: score}, nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Ball entry failed")
		return cricket.Delivery{}, err
	}

	delivery := models.DeliveryFromDB(result.delivery)
	logger.Info().
		Str("delivery_id", delivery.ID).
		Int("runs", result.score.Runs).
		Int("wickets", result.score.Wickets).
		Str("overs", result.score.Overs.String()).
		Msg("Ball entered")

	e.audit.LogAction(ctx, audit.Event{
		ActorID: callerID,
		Action:  audit.ActionBallEntered,
		MatchID: matchID,
		After:   map[string]any{"delivery": delivery, "score": result.score},
		At:      now,
	})
	e.publish(ctx, live.EventBallEntered, matchID, &delivery)

	return delivery, nil
}

func insertParams(matchID, callerID string, b ball, now time.Time) dbgen.InsertDeliveryParams {
	params := dbgen.InsertDeliveryParams{
		ID:           uuid.NewString(),
		MatchID:      matchID,
		Innings:      int64(b.Innings),
		OverNumber:   int64(b.OverNumber),
		BallNumber:   int64(b.BallNumber),
		StrikerID:    b.StrikerID,
		NonStrikerID: b.NonStrikerID,
		BowlerID:     b.BowlerID,
		Runs:         int64(b.Runs),
		IsWicket:     b.IsWicket,
		DismissedID:  models.NullString(b.dismissed),
		FielderID:    models.NullString(b.fielder),
		IsWide:       b.IsWide,
		IsNoBall:     b.IsNoBall,
		IsBye:        b.IsBye,
		IsLegBye:     b.IsLegBye,
		EnteredAt:    now,
		EnteredBy:    callerID,
	}
	if b.wicketKind != nil {
		params.WicketKind = sql.NullString{String: string(*b.wicketKind), Valid: true}
	}
	return params
}

// checkScoringInnings rejects deliveries for an innings that is not open.
func checkScoringInnings(status cricket.MatchStatus, innings int) error {
	open := status.ScoringInnings()
	if open == 0 {
		return cricket.StatusConflict([]cricket.MatchStatus{cricket.StatusFirstInnings, cricket.StatusSecondInnings}, status)
	}
	if innings != open {
		return cricket.Conflictf("innings %d is not open for scoring, current innings: %d", innings, open)
	}
	return nil
}

// UndoLastBall removes the most recently entered delivery, optionally only
// looking at one innings, and refreshes that innings' score. innings 0 means
// any innings.
func (e *Engine) UndoLastBall(ctx context.Context, matchID, callerID string, innings int) (cricket.Delivery, error) {
	if err := cricket.ValidateID("matchId", matchID); err != nil {
		return cricket.Delivery{}, err
	}
	if err := cricket.ValidateID("callerId", callerID); err != nil {
		return cricket.Delivery{}, err
	}
	if innings != 0 && innings != 1 && innings != 2 {
		return cricket.Delivery{}, cricket.Validationf("innings must be 1 or 2, got %d", innings)
	}

	logger := log.Ctx(ctx).With().
		Str("component", "scoring_engine").
		Str("match_id", matchID).
		Str("caller_id", callerID).
		Int("innings_filter", innings).
		Logger()

	match, err := e.loadMatch(ctx, e.db.Queries, matchID)
	if err != nil {
		return cricket.Delivery{}, err
	}
	if err := e.authorize(ctx, match, callerID); err != nil {
		return cricket.Delivery{}, err
	}

	now := e.now()
	result, err := runScoped(ctx, e, "undo ball", func(ctx context.Context, txdb *db.DB) (ballResult, error) {
		current, err := e.loadMatch(ctx, txdb.Queries, matchID)
		if err != nil {
			return ballResult{}, err
		}
		if status := cricket.MatchStatus(current.Status); status.IsTerminal() {
			return ballResult{}, cricket.Conflictf("cannot undo a delivery when the match is %s", status)
		}

		var latest dbgen.Delivery
		if innings == 0 {
			latest, err = txdb.Queries.GetLatestDelivery(ctx, matchID)
		} else {
			latest, err = txdb.Queries.GetLatestDeliveryInInnings(ctx, matchID, int64(innings))
		}
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ballResult{}, cricket.NotFound("delivery", matchID)
			}
			return ballResult{}, db.Classify(err, "load latest delivery")
		}

		deleted, err := txdb.Queries.DeleteDelivery(ctx, latest.ID)
		if err != nil {
			return ballResult{}, db.Classify(err, "delete delivery")
		}
		if deleted == 0 {
			return ballResult{}, cricket.NotFound("delivery", latest.ID)
		}

		score, err := recompute(ctx, txdb.Queries, matchID, int(latest.Innings), now)
		if err != nil {
			return ballResult{}, err
		}
		return ballResult{delivery: latest, score: score}, nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Undo failed")
		return cricket.Delivery{}, err
	}

	removed := models.DeliveryFromDB(result.delivery)
	logger.Info().
		Str("delivery_id", removed.ID).
		Int("runs", result.score.Runs).
		Int("wickets", result.score.Wickets).
		Str("overs", result.score.Overs.String()).
		Msg("Ball undone")

	e.audit.LogAction(ctx, audit.Event{
		ActorID: callerID,
		Action:  audit.ActionBallUndone,
		MatchID: matchID,
		Before:  map[string]any{"delivery": removed},
		After:   map[string]any{"score": result.score},
		At:      now,
	})
	e.publish(ctx, live.EventBallUndone, matchID, &removed)

	return removed, nil
}

func (e *Engine) publish(ctx context.Context, kind, matchID string, delivery *cricket.Delivery) {
	match, err := e.db.Queries.GetMatch(ctx, matchID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("match_id", matchID).Msg("Failed to load match for live update")
		return
	}
	update := live.NewUpdate(kind, models.MatchFromDB(match))
	update.Delivery = delivery
	e.publisher.Publish(update)
}
