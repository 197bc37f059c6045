package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
)

// rateLimitMultiplier stretches the delay after a rate-limited attempt.
const rateLimitMultiplier = 3

// sleep waits for d or until ctx is done. Replaced in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn until it succeeds, fails with an error that is not retryable, or
// the policy's retries are exhausted. Only classified errors marked retryable
// are retried.
func Do(ctx context.Context, p Policy, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying operation", slog.String("operation", op), slog.Int("attempt", attempt))
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.IsRetryable(err) || attempt == p.MaxRetries {
			break
		}

		delay := p.Delay(attempt + 1)
		if c, ok := errors.AsClassified(err); ok && c.RetryStrategy() == errors.RetryRateLimit {
			delay *= rateLimitMultiplier
		}
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if attempt := p.MaxRetries; attempt > 0 && errors.IsRetryable(lastErr) {
		return fmt.Errorf("%s failed after %d retries: %w", op, attempt, lastErr)
	}
	return lastErr
}
