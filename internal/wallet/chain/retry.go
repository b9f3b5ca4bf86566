package chain

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github/chapool/go-custody/internal/util"
)

// RetryPolicy bounds the exponential backoff used around adapter calls.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Backoff returns the wait before attempt n (1-based) following the first failure.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}

	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}

	return d
}

// Retry runs fn until it succeeds, fails with a non transient error or the attempts are used up.
func Retry[T any](ctx context.Context, policy RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(policy.MaxAttempts, 1)

	var (
		result T
		err    error
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil || !IsTransient(err) {
			return result, err
		}

		if attempt == attempts {
			break
		}

		wait := policy.Backoff(attempt)
		log.Debug().
			Str("op", op).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Err(err).
			Msg("Transient chain error, retrying")

		if !util.ContextSleep(ctx, wait) {
			return result, ctx.Err()
		}
	}

	return result, err
}
