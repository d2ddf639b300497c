package queryengine

import (
	"context"
	"time"
)

// runWithRetry invokes fn until it succeeds or the policy's retry
// budget is exhausted, sleeping policy.RetryDelay(attempt) between
// attempts. A context cancellation (including a network-offline
// transition routed through ctx) aborts the wait immediately.
func runWithRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	delay := policy.RetryDelay
	if delay == nil {
		delay = exponentialBackoff
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= policy.Retries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay(attempt)):
		}
	}
}
