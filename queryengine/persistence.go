package queryengine

import (
	"context"
	"encoding/json"
	"time"

	"querycache/entitystore"
	"querycache/querystore"
)

// hydrateFromPersistence registers the instance with the query store's
// LRU family for its definition (evicting the family's tail if it now
// exceeds maxCount), then, if nothing is resident in memory yet, loads
// a previously persisted value and rehydrates this instance from it:
// the main value (via doRehydrate, which resolves entityRef stubs back
// into live proxies), the root ref set, and the optimistic-insert and
// stream-orphan overlays. A hydrated instance lands in StateResolved
// with updatedAt set from the persisted record, so addWatcher's
// freshness check sees it exactly as it would a value produced by a
// live fetch.
func (i *instance) hydrateFromPersistence(ctx context.Context) {
	if i.engine.persist == nil {
		return
	}
	_ = i.engine.persist.ActivateQuery(ctx, i.queryDef, uint32(i.key))

	i.mu.Lock()
	idle := i.state == StateIdle
	i.mu.Unlock()
	if !idle || i.doRehydrate == nil {
		return
	}

	res, ok := i.engine.loadPersisted(ctx, i.key)
	if !ok {
		return
	}
	value, refs, err := i.doRehydrate(ctx, res)
	if err != nil || value == nil {
		return
	}

	i.mu.Lock()
	if i.state == StateIdle {
		i.value = value
		i.rootRefs = refs
		i.state = StateResolved
		i.updatedAt = time.UnixMilli(res.UpdatedAt)
		for _, id := range res.StreamOrphanRefs {
			i.orphans[entitystore.Key(id)] = true
		}
		if i.optimisticInsertsDef != nil {
			for _, id := range res.OptimisticInsertRefs {
				key := entitystore.Key(id)
				if proxy, found := i.engine.store.Proxy(key); found {
					i.optimistic.insert(key, proxy, refs)
				}
			}
		}
	}
	i.mu.Unlock()
}

// persistLocked writes the instance's current value and ref set to the
// query store. Called with i.mu already held, so the write itself is
// fire-and-forget from the caller's perspective: a slow or failing
// persistence layer never blocks a reactive consumer's read.
func (i *instance) persistLocked() {
	if i.engine.persist == nil {
		return
	}
	value, err := json.Marshal(i.value)
	if err != nil {
		return
	}
	refIds := make([]uint32, len(i.rootRefs))
	for idx, r := range i.rootRefs {
		refIds[idx] = uint32(r)
	}
	updatedAt := i.updatedAt.UnixMilli()
	persist := i.engine.persist
	queryDef := i.queryDef
	key := uint32(i.key)
	i.engine.sched.Go(func() {
		_ = persist.SaveQuery(context.Background(), queryDef, key, string(value), updatedAt, refIds)
	})
}

// loadPersisted reads a previously persisted value for key, honoring
// the query store's own gc-horizon check.
func (e *Engine) loadPersisted(ctx context.Context, key Key) (*querystore.LoadResult, bool) {
	if e.persist == nil {
		return nil, false
	}
	res, err := e.persist.LoadQuery(ctx, uint32(key), time.Now().UnixMilli())
	if err != nil || res == nil {
		return nil, false
	}
	return res, true
}

// persistOptimisticRefsLocked writes the current optimistic-insert key
// set so it survives a client restart the same way the main value does.
// Called with i.mu already held; the write itself is fire-and-forget.
func (i *instance) persistOptimisticRefsLocked() {
	if i.engine.persist == nil {
		return
	}
	refs := make([]uint32, 0, len(i.optimistic.keys))
	for key := range i.optimistic.keys {
		refs = append(refs, uint32(key))
	}
	persist := i.engine.persist
	key := uint32(i.key)
	i.engine.sched.Go(func() {
		_ = persist.SaveOptimisticInsertRefs(context.Background(), key, refs)
	})
}

// persistStreamOrphanRefsLocked writes the current stream-orphan key
// set. Called with i.mu already held.
func (i *instance) persistStreamOrphanRefsLocked() {
	if i.engine.persist == nil {
		return
	}
	refs := make([]uint32, 0, len(i.orphans))
	for key := range i.orphans {
		refs = append(refs, uint32(key))
	}
	persist := i.engine.persist
	key := uint32(i.key)
	i.engine.sched.Go(func() {
		_ = persist.SaveStreamOrphanRefs(context.Background(), key, refs)
	})
}
