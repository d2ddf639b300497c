package mutationengine

import (
	"context"
	"time"

	"querycache/queryengine"
)

// runWithRetry invokes fn until it succeeds or policy's retry budget is
// exhausted, waiting policy.RetryDelay(attempt) between attempts and
// aborting immediately on context cancellation. Grounded on the
// teacher's Saga.executeStepWithRetry, adapted from a fixed time.Sleep
// to a context-aware wait so canceling the caller's context cuts a
// mutation's retry wait short. The mutation engine does not observe
// network status, so going offline does not by itself end the wait.
func runWithRetry(ctx context.Context, policy queryengine.RetryPolicy, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	delay := policy.RetryDelay
	if delay == nil {
		delay = defaultRetryDelay
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if attempt >= policy.Retries {
			return nil, lastErr
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay(attempt)):
		}
	}
}

func defaultRetryDelay(int) time.Duration { return time.Second }
