package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy holds retry behaviour for one class of API call. The same policy
// shape is reused by the ranking fetch, the metadata lookups and the
// text-generation call; only the attempt ceiling and backoff differ.
type Policy struct {
	MaxAttempts int                                        // Maximum number of attempts before giving up
	Backoff     func(attempt int, err error) time.Duration // Wait before the next attempt (attempt is 1-based)
}

// LinearBackoff returns a backoff function that grows by a fixed increment
// per attempt, waiting rateLimitBase increments on 429 responses and the
// shorter transientBase increments on everything else.
func LinearBackoff(transientBase, rateLimitBase time.Duration) func(int, error) time.Duration {
	return func(attempt int, err error) time.Duration {
		if IsRateLimited(err) {
			return rateLimitBase * time.Duration(attempt)
		}
		return transientBase * time.Duration(attempt)
	}
}

// ExponentialBackoff returns a backoff function that doubles from base each
// attempt regardless of error class.
func ExponentialBackoff(base time.Duration) func(int, error) time.Duration {
	return func(attempt int, err error) time.Duration {
		return base << (attempt - 1)
	}
}

// Do runs fn up to p.MaxAttempts times, waiting p.Backoff between attempts.
// Non-retryable errors fail immediately; waits respect context cancellation.
// The returned error is always the last error from fn (wrapped on exhaustion),
// so callers can classify it with errors.As.
func (p Policy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Debug().
					Str("operation", op).
					Int("attempts", attempt).
					Msg("Request succeeded after retries")
			}
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		if attempt >= p.MaxAttempts {
			break
		}

		wait := p.Backoff(attempt, err)
		log.Warn().
			Err(err).
			Str("operation", op).
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("retry_in", wait).
			Msg("Request failed, retrying...")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s retry cancelled: %w", op, ctx.Err())
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, p.MaxAttempts, lastErr)
}
