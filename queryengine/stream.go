package queryengine

import (
	"context"

	"querycache/entitystore"
)

// activateStream starts a push-driven query's subscription on first
// watcher. Each delivered value runs through the same parse path a
// fetch response does; values whose entities are already reachable from
// the query's current refs merge directly, and values for entities not
// yet reachable are recorded as stream orphans, visible to consumers
// until the next refetch reconciles them.
func (i *instance) activateStream(ctx context.Context) {
	if !i.isStream || i.doSubscribe == nil {
		return
	}
	i.cancelStream = i.doSubscribe(ctx, func(raw interface{}) {
		i.engine.sched.Go(func() { i.handleStreamUpdate(raw) })
	})
	i.mu.Lock()
	if i.state == StateIdle {
		i.state = StatePending
	}
	i.mu.Unlock()
}

func (i *instance) handleStreamUpdate(raw interface{}) {
	value, refs, err := i.doParseStream(raw)
	if err != nil {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	reachable := make(map[entitystore.Key]bool, len(i.rootRefs))
	for _, r := range i.rootRefs {
		reachable[r] = true
	}

	newlyReachable := true
	for _, r := range refs {
		if !reachable[r] {
			newlyReachable = false
			break
		}
	}

	if newlyReachable {
		i.value = value
		i.state = StateResolved
		i.persistLocked()
	} else {
		for _, r := range refs {
			if !reachable[r] {
				i.orphans[r] = true
			}
		}
		i.persistStreamOrphanRefsLocked()
	}
	i.notifier.Notify()
}

// streamOrphans returns the entity keys seen on the stream that are not
// yet reachable from the query's parsed value.
func (i *instance) streamOrphans() []entitystore.Key {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]entitystore.Key, 0, len(i.orphans))
	for k := range i.orphans {
		out = append(out, k)
	}
	return out
}
