package queryclient

import (
	"sync"
	"time"

	"querycache/queryengine"
)

// Evictor is the two-generation rotating-set memory eviction manager:
// scheduleEviction places a key in the next generation, so it survives
// at least one full tick before being dropped; a tick moves the next
// generation to current (evicting whatever was in current before the
// move) and starts a fresh next generation. cancelEviction removes a
// key from both generations, e.g. when a watcher re-subscribes before
// the key is swept.
//
// The two-bucket rotation follows the same windowed-bucket shape as a
// sliding-window rate limiter (current-window counter rolling into the
// next), generalized from a counter-per-window to a
// membership-set-per-generation; the underlying single-ticker loop
// reuses this module's own queryengine.refetchScheduler convention.
type Evictor struct {
	mu       sync.Mutex
	interval time.Duration
	current  map[queryengine.Key]bool
	next     map[queryengine.Key]bool
	ticker   *time.Ticker
	stop     chan struct{}
	onEvict  func(key queryengine.Key)
}

// NewEvictor builds an Evictor ticking at interval, invoking onEvict for
// every key that survives a full rotation with no re-registration.
func NewEvictor(interval time.Duration, onEvict func(key queryengine.Key)) *Evictor {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	e := &Evictor{
		interval: interval,
		current:  make(map[queryengine.Key]bool),
		next:     make(map[queryengine.Key]bool),
		stop:     make(chan struct{}),
		onEvict:  onEvict,
	}
	e.ticker = time.NewTicker(interval)
	go e.loop()
	return e
}

// ScheduleEviction puts key in the next generation.
func (e *Evictor) ScheduleEviction(key queryengine.Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.current, key)
	e.next[key] = true
}

// CancelEviction removes key from both generations.
func (e *Evictor) CancelEviction(key queryengine.Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.current, key)
	delete(e.next, key)
}

func (e *Evictor) loop() {
	for {
		select {
		case <-e.stop:
			return
		case <-e.ticker.C:
			e.tick()
		}
	}
}

func (e *Evictor) tick() {
	e.mu.Lock()
	evicted := e.current
	e.current = e.next
	e.next = make(map[queryengine.Key]bool)
	e.mu.Unlock()

	for key := range evicted {
		if e.onEvict != nil {
			e.onEvict(key)
		}
	}
}

// Close stops the eviction ticker.
func (e *Evictor) Close() {
	e.ticker.Stop()
	close(e.stop)
}
