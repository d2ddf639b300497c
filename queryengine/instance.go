package queryengine

import (
	"context"
	"sync"
	"time"

	"querycache/domain/reactive"
	"querycache/domain/typedef"
	"querycache/entitystore"
	"querycache/querystore"
)

// State is one of the five lifecycle states a query instance occupies.
type State int

const (
	StateIdle State = iota
	StatePending
	StateResolved
	StateRejected
	StatePaused
)

// instance is the engine's untyped representation of one query/params
// pair. The generic Result[T] wrapper returned to callers type-asserts
// against Value() at the boundary; everything below is schema-agnostic,
// since the response shape only exists as a typedef.TypeDef at runtime.
type instance struct {
	mu sync.Mutex

	key       Key
	engine    *Engine
	queryDef  string
	cache     CacheOptions
	isStream  bool
	isInfinite bool

	state     State
	value     interface{}
	pages     []interface{}
	rootRefs  []entitystore.Key
	err       error
	updatedAt time.Time

	isFetching   bool
	isRefetching bool
	isFetchingMore bool
	hasNextPage  bool
	nextParams   interface{}

	watchers int
	notifier *reactive.Notifier

	optimistic *optimisticSet
	orphans    map[entitystore.Key]bool

	debounce   *debouncer
	cancelStream func()
	fetchSeq   int

	// retryCancel cancels the context a retry loop is currently waiting
	// on; set for the duration of runFetch so an offline transition can
	// abort an in-flight retry wait immediately instead of letting it
	// run its course.
	retryCancel context.CancelFunc

	// optimisticInsertsDef is the entity type InsertOptimistic values
	// must resolve to, set from the definition's OptimisticInsertsDef at
	// wiring time so a rehydrated instance can reconstruct its
	// optimistic overlay against the same schema.
	optimisticInsertsDef *typedef.TypeDef

	doFetch    func(ctx context.Context) (raw interface{}, refs []entitystore.Key, err error)
	doNextPage func(ctx context.Context, last interface{}) (raw interface{}, refs []entitystore.Key, hasNext bool, err error)

	// doRehydrate decodes a persisted LoadResult back into a usable
	// value for this instance's response schema, resolving entityRef
	// stubs into live proxies as it goes.
	doRehydrate func(ctx context.Context, res *querystore.LoadResult) (value interface{}, refs []entitystore.Key, err error)

	// doSubscribe and doParseStream are set instead of doFetch for
	// stream queries.
	doSubscribe   func(ctx context.Context, onUpdate func(raw interface{})) (cancel func())
	doParseStream func(raw interface{}) (value interface{}, refs []entitystore.Key, err error)
}

func newInstance(e *Engine, key Key, queryDefID string, cache CacheOptions) *instance {
	inst := &instance{
		key:      key,
		engine:   e,
		queryDef: queryDefID,
		cache:    cache,
		state:    StateIdle,
		notifier: reactive.NewNotifier(e.sched),
		orphans:  make(map[entitystore.Key]bool),
	}
	inst.optimistic = newOptimisticSet()
	inst.debounce = newDebouncer(cache.Debounce, func() { e.sched.Go(func() { inst.runFetch(context.Background(), true) }) })
	return inst
}

// Value returns the current result, overlaid with any active
// optimistic inserts.
func (i *instance) Value() interface{} {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.optimistic.overlay(i.value)
}

func (i *instance) Error() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

func (i *instance) snapshotState() (State, bool, bool, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state, i.isFetching, i.isRefetching, i.isFetchingMore
}

// addWatcher registers a live consumer, canceling any pending
// deactivation/eviction. On the first watcher it hydrates from the
// query store if nothing is in memory yet, then either launches the
// initial fetch (still Idle: no persisted value either), serves a
// fresh hydrated/cached value with no fetch at all, or serves it
// immediately while refetching in the background if it's gone stale.
func (i *instance) addWatcher(ctx context.Context) {
	i.mu.Lock()
	i.watchers++
	first := i.watchers == 1
	i.mu.Unlock()

	i.engine.cancelEviction(i.key)

	if first {
		i.hydrateFromPersistence(ctx)
		i.activateStream(ctx)
		i.activateRefetchInterval()
	}

	i.mu.Lock()
	state := i.state
	fresh := i.isFreshLocked(time.Now())
	i.mu.Unlock()

	switch {
	case state == StateIdle:
		i.debounce.primed = true // initial fetch is never debounced
		i.runFetch(ctx, false)
	case state == StateResolved && !fresh:
		i.runFetch(ctx, true) // stale cache hit: serve now, refetch in background
	}
}

// removeWatcher drops a consumer; once the last one drops, deactivation
// is scheduled through the engine's eviction manager rather than
// happening immediately.
func (i *instance) removeWatcher() {
	i.mu.Lock()
	i.watchers--
	last := i.watchers <= 0
	i.mu.Unlock()

	if last {
		i.engine.refetch.unregister(i.key)
		if i.cancelStream != nil {
			i.cancelStream()
			i.cancelStream = nil
		}
		i.engine.scheduleEviction(i.key)
	}
}

func (i *instance) activateRefetchInterval() {
	if i.cache.RefetchInterval <= 0 || i.isStream {
		return
	}
	i.engine.refetch.register(i.key, i.cache.RefetchInterval, func() {
		i.runFetch(context.Background(), true)
		i.engine.refetch.markDone(i.key)
	})
}

// refetch triggers a user-initiated refetch, bypassing the debouncer
// and clearing the optimistic insert set as required on every refetch.
func (i *instance) refetch(ctx context.Context) {
	i.mu.Lock()
	i.optimistic.clear()
	i.mu.Unlock()
	i.runFetch(ctx, true)
}

// triggerDebounced is used for parameter-signal-driven refetches, which
// must go through the debouncer.
func (i *instance) triggerDebounced() {
	i.debounce.trigger()
}

func (i *instance) runFetch(ctx context.Context, isRefetch bool) {
	if i.doFetch == nil {
		return
	}

	i.mu.Lock()
	offline := i.engine.network != nil && !i.engine.network.IsOnline()
	if i.cache.NetworkMode != NetworkModeAlways && offline {
		if i.cache.NetworkMode == NetworkModeOnline || (i.cache.NetworkMode == NetworkModeOfflineFirst && i.value == nil) {
			i.state = StatePaused
			i.mu.Unlock()
			i.notifier.Notify()
			return
		}
	}
	i.isFetching = true
	i.isRefetching = isRefetch
	if i.state == StateIdle {
		i.state = StatePending
	}
	i.fetchSeq++
	seq := i.fetchSeq
	fetchCtx, cancel := context.WithCancel(ctx)
	i.retryCancel = cancel
	i.mu.Unlock()
	i.notifier.Notify()

	err := runWithRetry(fetchCtx, i.cache.Retry, func(ctx context.Context) error {
		raw, refs, ferr := i.doFetch(ctx)
		if ferr != nil {
			return ferr
		}
		i.mu.Lock()
		if seq == i.fetchSeq {
			i.applySuccessLocked(raw, refs)
		}
		i.mu.Unlock()
		return nil
	})
	cancel()

	i.mu.Lock()
	if seq != i.fetchSeq {
		i.mu.Unlock()
		return
	}
	i.retryCancel = nil
	i.isFetching = false
	i.isRefetching = false
	if err != nil {
		i.err = err
		i.state = StateRejected
	}
	i.mu.Unlock()
	i.notifier.Notify()
}

// handleNetworkChange reacts to a connectivity transition fanned out by
// the engine. Going offline cancels any in-flight retry wait so a
// retry loop aborts immediately instead of working through its backoff
// schedule against a dead network. Coming back online resumes a Paused
// instance: one with no cached value resumes its initial fetch; one
// with a cached value resumes serving it immediately, refetching in
// the background only when stale and the definition opted into
// RefreshStaleOnReconnect.
func (i *instance) handleNetworkChange(online bool) {
	if !online {
		i.mu.Lock()
		cancel := i.retryCancel
		i.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}

	i.mu.Lock()
	wasPaused := i.state == StatePaused
	hasValue := i.value != nil
	fresh := hasValue && time.Since(i.updatedAt) <= i.cache.StaleTime
	needsFetch := wasPaused && (!hasValue || (i.cache.RefreshStaleOnReconnect && !fresh))
	resumed := wasPaused && !needsFetch
	if resumed {
		i.state = StateResolved
	}
	i.mu.Unlock()

	if needsFetch {
		i.runFetch(context.Background(), hasValue)
	} else if resumed {
		i.notifier.Notify()
	}
}

func (i *instance) applySuccessLocked(raw interface{}, refs []entitystore.Key) {
	i.value = raw
	i.rootRefs = refs
	i.err = nil
	i.state = StateResolved
	i.updatedAt = time.Now()
	i.reconcileOrphansLocked(refs)
	i.persistLocked()
}

func (i *instance) isFresh(now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.isFreshLocked(now)
}

// isFreshLocked is isFresh for callers that already hold i.mu.
func (i *instance) isFreshLocked(now time.Time) bool {
	if i.state != StateResolved {
		return false
	}
	return now.Sub(i.updatedAt) <= i.cache.StaleTime
}
