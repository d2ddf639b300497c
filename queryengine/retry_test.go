package queryengine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunWithRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	err := runWithRetry(context.Background(), RetryPolicy{Retries: 3}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestRunWithRetryStopsAfterBudgetExhausted(t *testing.T) {
	calls := 0
	err := runWithRetry(context.Background(), RetryPolicy{
		Retries:    2,
		RetryDelay: func(int) time.Duration { return time.Millisecond },
	}, func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected 1 initial attempt + 2 retries, got %d calls", calls)
	}
}

func TestRunWithRetryAbortsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runWithRetry(ctx, RetryPolicy{
		Retries:    5,
		RetryDelay: func(int) time.Duration { return time.Hour },
	}, func(ctx context.Context) error {
		return errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
