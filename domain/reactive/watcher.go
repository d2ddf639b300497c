package reactive

// Watcher is the outer root that drives dirty propagation: it runs a
// computation while tracking every Signal it reads, then re-runs the
// computation (on the scheduler) whenever any of those signals change.
// Queries and memoized derivations are built on top of this.
type Watcher struct {
	sched *Scheduler
	fn    func()
	unsub []func()
}

// NewWatcher builds a Watcher bound to sched. Call Run to execute fn for
// the first time and begin tracking its dependencies.
func NewWatcher(sched *Scheduler, fn func()) *Watcher {
	return &Watcher{sched: sched, fn: fn}
}

// Run executes the tracked function, replacing any previous dependency
// subscriptions with the set discovered on this run (signals read on an
// earlier branch of a conditional are not re-subscribed to if unread on
// this run).
func (w *Watcher) Run() {
	w.teardown()
	c := &consumer{deps: make(map[*Notifier]struct{})}
	pushConsumer(c)
	func() {
		defer popConsumer()
		w.fn()
	}()
	for n := range c.deps {
		n := n
		w.unsub = append(w.unsub, n.Subscribe(func() {
			w.sched.Go(w.Run)
		}))
	}
}

func (w *Watcher) teardown() {
	for _, u := range w.unsub {
		u()
	}
	w.unsub = w.unsub[:0]
}

// Stop tears down all active subscriptions, making the Watcher inert.
func (w *Watcher) Stop() {
	w.teardown()
}
