package mutationengine

import (
	"context"
	"sync"

	"querycache/domain/reactive"
	"querycache/entitystore"
	"querycache/normalize"
	"querycache/parser"
)

// State is one of the four lifecycle states a mutation task occupies.
type State int

const (
	StateIdle State = iota
	StatePending
	StateResolved
	StateRejected
)

// Task owns one mutation's long-lived run/reset lifecycle. Run may be
// called more than once on the same Task; each call starts from
// whatever optimistic/pending state the previous call left behind.
type Task[TRequest any, TResponse any] struct {
	mu     sync.Mutex
	engine *Engine
	def    *Definition[TRequest, TResponse]

	notifier *reactive.Notifier

	state   State
	value   TResponse
	err     error
	pending []entitystore.Key
}

// NewTask builds a fresh, Idle task bound to def.
func NewTask[TRequest any, TResponse any](e *Engine, def *Definition[TRequest, TResponse]) *Task[TRequest, TResponse] {
	return &Task[TRequest, TResponse]{
		engine:   e,
		def:      def,
		notifier: reactive.NewNotifier(e.sched),
	}
}

// Run executes the mutation's run sequence:
//  1. if OptimisticUpdates and a request schema are declared, walk the
//     request and snapshot+merge every entity it touches, recording the
//     touched keys as the pending set;
//  2. invoke MutateFn with retry per def.Retry;
//  3. on success, parse the response into entities, clear the pending
//     set (commit), and resolve;
//  4. on failure, revert every pending key to its snapshot, clear the
//     pending set, and reject.
func (t *Task[TRequest, TResponse]) Run(ctx context.Context, request TRequest) (TResponse, error) {
	t.mu.Lock()
	t.state = StatePending
	t.err = nil
	t.mu.Unlock()
	t.notifier.Notify()

	if t.def.OptimisticUpdates && t.def.RequestDef != nil {
		pending := t.applyOptimisticLocked(request)
		t.mu.Lock()
		t.pending = pending
		t.mu.Unlock()
	}

	raw, err := runWithRetry(ctx, t.def.Retry, func(ctx context.Context) (interface{}, error) {
		return t.def.MutateFn(ctx, request)
	})

	var zero TResponse
	if err != nil {
		t.rejectLocked(err)
		return zero, err
	}

	value, refs, perr := t.parseResponse(raw)
	if perr != nil {
		t.rejectLocked(perr)
		return zero, perr
	}

	typed, _ := value.(TResponse)

	t.mu.Lock()
	for _, key := range t.pending {
		t.engine.store.ClearOptimistic(key)
	}
	t.pending = nil
	t.value = typed
	t.err = nil
	t.state = StateResolved
	_ = refs
	t.mu.Unlock()
	t.notifier.Notify()

	return typed, nil
}

func (t *Task[TRequest, TResponse]) rejectLocked(err error) {
	t.mu.Lock()
	for _, key := range t.pending {
		t.engine.store.RevertOptimistic(key)
	}
	t.pending = nil
	t.err = err
	t.state = StateRejected
	t.mu.Unlock()
	t.notifier.Notify()
}

// applyOptimisticLocked walks request against the request schema,
// snapshotting and merging every entity it discovers, and returns the
// set of keys touched (the pending set), following the same
// snapshot/revert shape as a saga's compensating steps but keyed
// per-entity instead of per-step.
func (t *Task[TRequest, TResponse]) applyOptimisticLocked(request TRequest) []entitystore.Key {
	optCtx := &parser.Context{
		Store:              t.engine.store,
		Logger:             t.engine.parserCtx.Logger,
		OptimisticSnapshot: true,
	}
	result, err := parser.WalkEntities(optCtx, interface{}(request), t.def.RequestDef)
	if err != nil {
		return nil
	}
	keys := make([]entitystore.Key, 0, len(result.ChildRefs))
	for key := range result.ChildRefs {
		keys = append(keys, key)
	}
	return keys
}

func (t *Task[TRequest, TResponse]) parseResponse(raw interface{}) (interface{}, []entitystore.Key, error) {
	value, err := parser.ParseValue(t.engine.parserCtx, raw, t.def.ResponseDef, nil)
	if err != nil {
		return nil, nil, err
	}
	result, err := parser.WalkEntities(t.engine.parserCtx, raw, t.def.ResponseDef)
	if err != nil {
		return nil, nil, err
	}
	normalize.PersistEntities(context.Background(), t.engine.store, t.engine.persist, result)
	return value, result.RootRefs, nil
}

// Reset reverts any pending optimistic updates and returns the task to
// Idle, clearing its value and error.
func (t *Task[TRequest, TResponse]) Reset() {
	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.state = StateIdle
	var zero TResponse
	t.value = zero
	t.err = nil
	t.mu.Unlock()

	for _, key := range pending {
		t.engine.store.RevertOptimistic(key)
	}
	t.notifier.Notify()
}

func (t *Task[TRequest, TResponse]) Value() TResponse {
	reactive.TrackDependency(t.notifier)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

func (t *Task[TRequest, TResponse]) Error() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task[TRequest, TResponse]) currentState() State {
	reactive.TrackDependency(t.notifier)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task[TRequest, TResponse]) IsPending() bool  { return t.currentState() == StatePending }
func (t *Task[TRequest, TResponse]) IsResolved() bool { return t.currentState() == StateResolved }
func (t *Task[TRequest, TResponse]) IsRejected() bool { return t.currentState() == StateRejected }
func (t *Task[TRequest, TResponse]) IsReady() bool    { return t.IsResolved() }
func (t *Task[TRequest, TResponse]) IsSettled() bool {
	s := t.currentState()
	return s == StateResolved || s == StateRejected
}
