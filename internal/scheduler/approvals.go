package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/crease/internal/approvals"
	"github.com/codr1/crease/internal/config"
	"github.com/codr1/crease/internal/cricket"
)

const (
	approvalSweepJobName = "approval_auto_resolve"
	approvalSweepTimeout = 2 * time.Minute
)

// ApprovalResolver is the part of the approval engine the sweep drives.
type ApprovalResolver interface {
	DueApprovals(ctx context.Context, now time.Time) ([]cricket.ApprovalRequest, error)
	AutoApprove(ctx context.Context, approvalID string) (approvals.Outcome, error)
	Expire(ctx context.Context, approvalID string) (approvals.Outcome, error)
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	AutoApproved int
	Expired      int
	// Skipped requests were resolved by someone else between listing and
	// resolving.
	Skipped int
	Failed  int
}

// SweepApprovals resolves every pending request whose deadline has passed:
// auto-approved when the requester allows it, expired otherwise. Each request
// is resolved in its own transaction and a failure does not stop the sweep.
func SweepApprovals(ctx context.Context, resolver ApprovalResolver, now time.Time) (SweepResult, error) {
	if resolver == nil {
		return SweepResult{}, fmt.Errorf("approval sweep requires a resolver")
	}

	due, err := resolver.DueApprovals(ctx, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list due approvals: %w", err)
	}

	var result SweepResult
	if len(due) == 0 {
		return result, nil
	}

	logger := log.Ctx(ctx)
	for _, request := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		requestLogger := logger.With().
			Str("approval_id", request.ID).
			Str("match_id", request.MatchID).
			Str("type", string(request.Type)).
			Time("auto_approve_at", request.AutoApproveAt).
			Logger()

		var resolveErr error
		if request.AutoApproveEnabled {
			_, resolveErr = resolver.AutoApprove(ctx, request.ID)
		} else {
			_, resolveErr = resolver.Expire(ctx, request.ID)
		}

		switch {
		case resolveErr == nil && request.AutoApproveEnabled:
			result.AutoApproved++
			requestLogger.Info().Msg("Approval auto-approved")
		case resolveErr == nil:
			result.Expired++
			requestLogger.Info().Msg("Approval expired")
		case errors.Is(resolveErr, cricket.ErrConflict), errors.Is(resolveErr, cricket.ErrNotFound):
			result.Skipped++
			requestLogger.Debug().Err(resolveErr).Msg("Approval no longer due")
		default:
			result.Failed++
			requestLogger.Error().Err(resolveErr).Msg("Failed to resolve due approval")
		}
	}
	return result, nil
}

// RegisterApprovalSweep schedules SweepApprovals on the configured cron
// expression. It does nothing when the sweep is disabled.
func RegisterApprovalSweep(svc *Service, cfg config.ApprovalsConfig, resolver ApprovalResolver, clock func() time.Time) error {
	if !cfg.SweepEnabled {
		log.Info().Msg("Approval sweep disabled")
		return nil
	}
	if resolver == nil {
		return fmt.Errorf("approval sweep requires a resolver")
	}
	if clock == nil {
		clock = time.Now
	}

	_, err := svc.AddJob(approvalSweepJobName, cfg.SweepSchedule, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, approvalSweepTimeout)
		defer cancel()

		result, err := SweepApprovals(ctx, resolver, clock().UTC())
		logger := log.Ctx(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Approval sweep failed")
			return
		}
		if result == (SweepResult{}) {
			return
		}
		logger.Info().
			Int("auto_approved", result.AutoApproved).
			Int("expired", result.Expired).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Msg("Approval sweep finished")
	})
	return err
}
