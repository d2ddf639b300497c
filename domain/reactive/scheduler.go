// Package reactive implements the single-threaded cooperative scheduling
// primitives the rest of the module is built on: a notifier-based
// dependency graph, async tasks with lifecycle flags, and a push-driven
// relay. There is no third-party reactive runtime in the dependency
// corpus this module was grown from, so this is a from-scratch
// implementation of the "assumed available" substrate the design calls
// for (see DESIGN.md).
package reactive

import "sync"

// Scheduler runs all state transitions on one goroutine, exactly as spec
// section 5 requires: "all state transitions ... happen on one task
// loop". Work is posted from any goroutine but always executed serially
// on the scheduler's own goroutine.
type Scheduler struct {
	work    chan func()
	deferred chan func()
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler starts a scheduler goroutine and returns it running.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		work:     make(chan func(), 256),
		deferred: make(chan func(), 256),
		quit:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	var pending []func()
	for {
		select {
		case <-s.quit:
			return
		case d := <-s.deferred:
			// Deferred while no job was running: run it on this tick.
			d()
		case fn := <-s.work:
			fn()
			// Drain anything deferred during fn before accepting new work,
			// giving stream updates "next microtask" semantics relative to
			// the job that produced them.
			pending = pending[:0]
		drain:
			for {
				select {
				case d := <-s.deferred:
					pending = append(pending, d)
				default:
					break drain
				}
			}
			for _, d := range pending {
				d()
			}
		}
	}
}

// Run posts fn to the scheduler and blocks until it has executed.
func (s *Scheduler) Run(fn func()) {
	done := make(chan struct{})
	s.work <- func() {
		fn()
		close(done)
	}
	<-done
}

// Go posts fn to the scheduler without waiting for completion.
func (s *Scheduler) Go(fn func()) {
	s.work <- fn
}

// Defer schedules fn to run on the next tick after the job currently
// executing finishes: stream updates delivered while a reactive read is
// in flight are deferred to the next microtask rather than interrupting
// it.
func (s *Scheduler) Defer(fn func()) {
	s.deferred <- fn
}

// Close stops the scheduler goroutine. Safe to call once.
func (s *Scheduler) Close() {
	close(s.quit)
	s.wg.Wait()
}
