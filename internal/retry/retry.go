// Package retry wraps a unit of work with bounded exponential backoff for
// errors that a second attempt can clear.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

type Options struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Retryable decides whether an error is worth another attempt. Errors it
	// rejects are returned immediately.
	Retryable func(error) bool
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:   2,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. The last error is returned unchanged.
func Do[T any](ctx context.Context, opts Options, op func(context.Context) (T, error)) (T, error) {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = DefaultOptions().InitialDelay
	}
	if opts.MaxDelay < opts.InitialDelay {
		opts.MaxDelay = opts.InitialDelay
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = opts.InitialDelay
	policy.MaxInterval = opts.MaxDelay

	attempt := 0
	operation := func() (T, error) {
		attempt++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if opts.Retryable != nil && !opts.Retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(opts.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Ctx(ctx).Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("retry_in", next).
				Msg("Retrying after transient failure")
		}),
	)
}
