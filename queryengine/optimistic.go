package queryengine

import "querycache/entitystore"

// optimisticSet tracks entity keys overlaid on a query's parsed result.
// Inserts are only meaningful for queries whose definition declares an
// OptimisticInsertsDef; callers gate that at the Engine boundary.
type optimisticSet struct {
	keys map[entitystore.Key]interface{}
}

func newOptimisticSet() *optimisticSet {
	return &optimisticSet{keys: make(map[entitystore.Key]interface{})}
}

// insert adds key/value if key isn't already among the query's parsed
// refs (a no-op per the rule that an insert whose key already appears
// in the query's own refs does nothing).
func (o *optimisticSet) insert(key entitystore.Key, value interface{}, existingRefs []entitystore.Key) {
	for _, ref := range existingRefs {
		if ref == key {
			return
		}
	}
	o.keys[key] = value
}

func (o *optimisticSet) remove(key entitystore.Key) {
	delete(o.keys, key)
}

func (o *optimisticSet) clear() {
	o.keys = make(map[entitystore.Key]interface{})
}

func (o *optimisticSet) has(key entitystore.Key) bool {
	_, ok := o.keys[key]
	return ok
}

// overlay appends the optimistic values after base; callers needing
// entity-level dedup do so against the root ref list, not here.
func (o *optimisticSet) overlay(base interface{}) interface{} {
	if len(o.keys) == 0 {
		return base
	}
	extra := make([]interface{}, 0, len(o.keys))
	for _, v := range o.keys {
		extra = append(extra, v)
	}
	switch b := base.(type) {
	case []interface{}:
		out := make([]interface{}, 0, len(b)+len(extra))
		out = append(out, b...)
		out = append(out, extra...)
		return out
	default:
		if base == nil {
			return extra
		}
		return append([]interface{}{base}, extra...)
	}
}

// reconcileOrphansLocked auto-removes any optimistic insert whose
// entity key has now arrived as a genuine ref in a fresh response,
// since the insert's purpose (standing in ahead of confirmation) is
// satisfied.
func (i *instance) reconcileOrphansLocked(refs []entitystore.Key) {
	changedOptimistic := false
	changedOrphans := false
	for _, ref := range refs {
		if i.optimistic.has(ref) {
			i.optimistic.remove(ref)
			changedOptimistic = true
		}
		if i.orphans[ref] {
			delete(i.orphans, ref)
			changedOrphans = true
		}
	}
	if changedOptimistic {
		i.persistOptimisticRefsLocked()
	}
	if changedOrphans {
		i.persistStreamOrphanRefsLocked()
	}
}

// insertOptimistic adds an optimistic entity to the query's overlay.
// def must be non-nil (the definition declared OptimisticInsertsDef);
// the Engine enforces that before calling this.
func (i *instance) insertOptimistic(key entitystore.Key, value interface{}) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.optimistic.insert(key, value, i.rootRefs)
	i.persistOptimisticRefsLocked()
	i.notifier.Notify()
}
