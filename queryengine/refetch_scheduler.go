package queryengine

import (
	"sync"
	"time"
)

// gcd returns the greatest common divisor of a and b via the Euclidean
// algorithm; no big.Int is needed since intervals fit comfortably in
// an int64 millisecond count.
func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// refetchEntry is one instance registered with the scheduler.
type refetchEntry struct {
	intervalMs int64
	ticks      int64 // fires every intervalMs/baseMs ticks
	fn         func()
	inFlight   bool
}

// refetchScheduler drives every instance with a refetchInterval off a
// single time.Ticker running at the GCD of active intervals, skipping
// an instance's tick if its prior fetch is still in flight — the same
// ticker-with-in-flight-guard shape as any periodic processing loop,
// generalized from one fixed interval to a dynamically recomputed GCD
// base across many registered intervals.
type refetchScheduler struct {
	mu         sync.Mutex
	multiplier float64
	entries    map[Key]*refetchEntry
	baseMs     int64
	ticker     *time.Ticker
	tickCount  int64
	stop       chan struct{}
}

func newRefetchScheduler(multiplier float64) *refetchScheduler {
	if multiplier <= 0 {
		multiplier = 1
	}
	return &refetchScheduler{multiplier: multiplier, entries: make(map[Key]*refetchEntry)}
}

// register adds or replaces key's refetch interval and recomputes the
// ticker base. fn is called (never concurrently with itself) every time
// key's interval elapses, unless a prior call to fn hasn't returned via
// markDone yet.
func (s *refetchScheduler) register(key Key, interval time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := int64(float64(interval.Milliseconds()) * s.multiplier)
	if ms <= 0 {
		ms = 1
	}
	s.entries[key] = &refetchEntry{intervalMs: ms, fn: fn}
	s.rebuildLocked()
}

// unregister removes key, recomputing the ticker base. Deactivation of
// an instance (last watcher drops) calls this.
func (s *refetchScheduler) unregister(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	s.rebuildLocked()
}

// markDone clears key's in-flight guard, allowing its next due tick to
// fire fn again.
func (s *refetchScheduler) markDone(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.inFlight = false
	}
}

func (s *refetchScheduler) rebuildLocked() {
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.ticker = nil
	}
	if len(s.entries) == 0 {
		return
	}

	base := int64(0)
	for _, e := range s.entries {
		if base == 0 {
			base = e.intervalMs
		} else {
			base = gcd(base, e.intervalMs)
		}
		e.ticks = 0
	}
	if base <= 0 {
		base = 1
	}
	s.baseMs = base
	s.tickCount = 0
	s.stop = make(chan struct{})
	s.ticker = time.NewTicker(time.Duration(base) * time.Millisecond)
	go s.loop(s.ticker, s.stop)
}

func (s *refetchScheduler) loop(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *refetchScheduler) tick() {
	s.mu.Lock()
	s.tickCount++
	due := make([]*refetchEntry, 0)
	for _, e := range s.entries {
		multiple := e.intervalMs / s.baseMs
		if multiple <= 0 {
			multiple = 1
		}
		if s.tickCount%multiple != 0 {
			continue
		}
		if e.inFlight {
			continue
		}
		e.inFlight = true
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		e.fn()
	}
}

// close stops the underlying ticker, if any.
func (s *refetchScheduler) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.ticker = nil
	}
}
