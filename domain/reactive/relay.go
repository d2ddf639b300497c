package reactive

import "sync"

// Relay is a push-driven, promise-like value: producers call Push or
// Fail to deliver results over time, consumers call Get for the latest
// settled value, and Activate/Deactivate track whether anyone currently
// cares, mirroring a stream query's subscribe/unsubscribe lifecycle.
type Relay[T any] struct {
	mu        sync.Mutex
	value     T
	err       error
	hasValue  bool
	active    int
	n         *Notifier
	onActivate   func()
	onDeactivate func()
}

// NewRelay builds a Relay backed by sched for change notification.
// onActivate is invoked the moment the active-subscriber count goes
// from zero to one; onDeactivate when it drops back to zero.
func NewRelay[T any](sched *Scheduler, onActivate, onDeactivate func()) *Relay[T] {
	return &Relay[T]{n: NewNotifier(sched), onActivate: onActivate, onDeactivate: onDeactivate}
}

// Activate marks one more consumer as interested in this relay,
// invoking onActivate if this is the first one.
func (r *Relay[T]) Activate() {
	r.mu.Lock()
	r.active++
	first := r.active == 1
	r.mu.Unlock()
	if first && r.onActivate != nil {
		r.onActivate()
	}
}

// Deactivate marks one fewer consumer as interested, invoking
// onDeactivate if none remain.
func (r *Relay[T]) Deactivate() {
	r.mu.Lock()
	r.active--
	last := r.active == 0
	r.mu.Unlock()
	if last && r.onDeactivate != nil {
		r.onDeactivate()
	}
}

// ActiveCount reports how many consumers currently hold this relay
// active.
func (r *Relay[T]) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Push delivers a new value and notifies dependents.
func (r *Relay[T]) Push(v T) {
	r.mu.Lock()
	r.value = v
	r.err = nil
	r.hasValue = true
	r.mu.Unlock()
	r.n.Notify()
}

// Fail delivers an error in place of a value and notifies dependents.
func (r *Relay[T]) Fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.n.Notify()
}

// Get reads the latest pushed value or error, registering a dependency
// if called from within a tracked consumer.
func (r *Relay[T]) Get() (T, bool, error) {
	if c := currentConsumer(); c != nil {
		c.deps[r.n] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.hasValue, r.err
}

// Notifier exposes the underlying notifier for composition.
func (r *Relay[T]) Notifier() *Notifier {
	return r.n
}
