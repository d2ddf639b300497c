package queryengine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerRunsFirstTriggerImmediately(t *testing.T) {
	var calls int32
	d := newDebouncer(50*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	d.trigger()
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected first trigger to run synchronously, got %d calls", calls)
	}
}

func TestDebouncerCollapsesRapidSubsequentTriggers(t *testing.T) {
	var calls int32
	d := newDebouncer(30*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	d.trigger() // immediate, primes the debouncer

	d.trigger()
	d.trigger()
	d.trigger()

	time.Sleep(80 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected exactly 2 calls (immediate + one collapsed timer fire), got %d", got)
	}
}
