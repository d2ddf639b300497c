package reactive

import "sync"

// Notifier tracks a monotonically increasing version and a set of
// subscriber callbacks. It is the low-level dependency-graph edge that
// Signal and Watcher are built from.
type Notifier struct {
	mu       sync.Mutex
	version  uint64
	nextID   int
	subs     map[int]func()
	sched    *Scheduler
}

// NewNotifier builds a Notifier whose subscriber callbacks are always
// run through sched, never synchronously from the caller's goroutine.
func NewNotifier(sched *Scheduler) *Notifier {
	return &Notifier{subs: make(map[int]func()), sched: sched}
}

// Version returns the current version, useful for memoization checks.
func (n *Notifier) Version() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.version
}

// Subscribe registers fn to be invoked after every Notify call and
// returns an unsubscribe function.
func (n *Notifier) Subscribe(fn func()) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// TrackDependency registers n as a dependency of the currently running
// tracked consumer (a Watcher.Run body), if any. Proxy property reads
// call this with the entity record's notifier, so the dependency is on
// the whole record: a change to any of its fields re-runs the consumer.
func TrackDependency(n *Notifier) {
	if c := currentConsumer(); c != nil {
		c.deps[n] = struct{}{}
	}
}

// Notify bumps the version and schedules every subscriber to run on the
// next scheduler tick, batching with whatever else was dirtied in the
// same synchronous step: dirty propagation from one synchronous step
// completes before any listener callback fires.
func (n *Notifier) Notify() {
	n.mu.Lock()
	n.version++
	callbacks := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		callbacks = append(callbacks, fn)
	}
	n.mu.Unlock()
	for _, fn := range callbacks {
		fn := fn
		n.sched.Defer(fn)
	}
}
