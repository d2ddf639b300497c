package querystore

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LoadResult is what LoadQuery returns on a cache hit.
type LoadResult struct {
	Value     string
	UpdatedAt int64
	RefIds    []uint32

	// OptimisticInsertRefs and StreamOrphanRefs are the query's two
	// persistent per-id buffers, carried alongside the main value so a
	// rehydrated instance can restore both overlays, not just its value.
	OptimisticInsertRefs []uint32
	StreamOrphanRefs     []uint32
}

// processor implements every persistence operation against a single
// KV. It has no goroutine or queue of its own;
// SyncStore calls it inline, Writer calls it once per dequeued
// message. Keeping the logic in one place means the sync and async
// configurations can never drift.
type processor struct {
	kv       KV
	logger   *zap.Logger
	maxCount int
	gcTime   time.Duration
}

func newProcessor(kv KV, logger *zap.Logger, maxCount int, gcTime time.Duration) *processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxCount <= 0 {
		maxCount = 50
	}
	if gcTime <= 0 {
		gcTime = 24 * time.Hour
	}
	return &processor{kv: kv, logger: logger, maxCount: maxCount, gcTime: gcTime}
}

// saveQuery diffs refIds against the previously persisted set: added
// refs increment counts, removed refs decrement (cascade-deleting on
// reaching zero), then writes the new value/updatedAt/refIds atomically
// from the caller's point of view (this runs to completion before the
// writer dequeues the next message).
func (p *processor) saveQuery(ctx context.Context, key uint32, value string, updatedAt int64, refIds []uint32) error {
	prev, _, err := p.kv.GetBuffer(ctx, refIdsKey(key))
	if err != nil {
		return err
	}

	added, removed := diffRefs(prev, refIds)
	for _, ref := range added {
		if err := p.incRefCount(ctx, ref); err != nil {
			return err
		}
	}
	for _, ref := range removed {
		if err := p.decRefCountCascade(ctx, ref); err != nil {
			return err
		}
	}

	if err := p.kv.SetString(ctx, valueKey(key), value); err != nil {
		return err
	}
	if err := p.kv.SetNumber(ctx, updatedAtKey(key), float64(updatedAt)); err != nil {
		return err
	}
	return p.kv.SetBuffer(ctx, refIdsKey(key), refIds)
}

// saveEntity persists an entity's serialized value and its immediate
// child-entity ref buffer, the latter consulted only during cascade
// deletion so recursion isn't artificially stopped at depth one.
func (p *processor) saveEntity(ctx context.Context, key uint32, value string, childRefs []uint32) error {
	if err := p.kv.SetString(ctx, valueKey(key), value); err != nil {
		return err
	}
	return p.kv.SetBuffer(ctx, entityRefsKey(key), childRefs)
}

// activateQuery moves key to the head of queryDefID's LRU queue,
// cascade-deleting and evicting the tail if the family now exceeds
// maxCount.
func (p *processor) activateQuery(ctx context.Context, queryDefID string, key uint32) error {
	queue, _, err := p.kv.GetBuffer(ctx, queueKey(queryDefID))
	if err != nil {
		return err
	}
	queue = moveToFront(queue, key)

	var tail uint32
	evict := false
	if len(queue) > p.maxCount {
		tail = queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		evict = true
	}
	if err := p.kv.SetBuffer(ctx, queueKey(queryDefID), queue); err != nil {
		return err
	}
	if evict {
		return p.evictQueryValue(ctx, tail)
	}
	return nil
}

// evictQuery removes key from queryDefID's LRU queue and cascade-
// deletes its persisted value.
func (p *processor) evictQuery(ctx context.Context, queryDefID string, key uint32) error {
	queue, _, err := p.kv.GetBuffer(ctx, queueKey(queryDefID))
	if err != nil {
		return err
	}
	if idx := indexOf(queue, key); idx >= 0 {
		queue = append(queue[:idx], queue[idx+1:]...)
		if err := p.kv.SetBuffer(ctx, queueKey(queryDefID), queue); err != nil {
			return err
		}
	}
	return p.evictQueryValue(ctx, key)
}

func (p *processor) evictQueryValue(ctx context.Context, key uint32) error {
	refIds, _, err := p.kv.GetBuffer(ctx, refIdsKey(key))
	if err != nil {
		return err
	}
	for _, ref := range refIds {
		if err := p.decRefCountCascade(ctx, ref); err != nil {
			return err
		}
	}
	for _, k := range []string{
		valueKey(key), updatedAtKey(key), refIdsKey(key),
		streamOrphanRefsKey(key), optimisticInsertRefsKey(key),
	} {
		if err := p.kv.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (p *processor) clearOptimisticInsertRefs(ctx context.Context, key uint32) error {
	return p.kv.Delete(ctx, optimisticInsertRefsKey(key))
}

// saveOptimisticInsertRefs persists the current optimistic-insert key
// set for key, so it survives a client restart the same way the
// query's value and root ref set do.
func (p *processor) saveOptimisticInsertRefs(ctx context.Context, key uint32, refs []uint32) error {
	return p.kv.SetBuffer(ctx, optimisticInsertRefsKey(key), refs)
}

// saveStreamOrphanRefs persists the current stream-orphan key set for
// key.
func (p *processor) saveStreamOrphanRefs(ctx context.Context, key uint32, refs []uint32) error {
	return p.kv.SetBuffer(ctx, streamOrphanRefsKey(key), refs)
}

func (p *processor) loadQuery(ctx context.Context, key uint32, nowMillis int64) (*LoadResult, error) {
	value, ok, err := p.kv.GetString(ctx, valueKey(key))
	if err != nil || !ok {
		return nil, err
	}
	updatedAt, _, err := p.kv.GetNumber(ctx, updatedAtKey(key))
	if err != nil {
		return nil, err
	}
	if nowMillis-int64(updatedAt) > p.gcTime.Milliseconds() {
		return nil, nil
	}
	refIds, _, err := p.kv.GetBuffer(ctx, refIdsKey(key))
	if err != nil {
		return nil, err
	}
	optimisticRefs, _, err := p.kv.GetBuffer(ctx, optimisticInsertRefsKey(key))
	if err != nil {
		return nil, err
	}
	orphanRefs, _, err := p.kv.GetBuffer(ctx, streamOrphanRefsKey(key))
	if err != nil {
		return nil, err
	}
	return &LoadResult{
		Value:                value,
		UpdatedAt:            int64(updatedAt),
		RefIds:               refIds,
		OptimisticInsertRefs: optimisticRefs,
		StreamOrphanRefs:     orphanRefs,
	}, nil
}

// loadEntity reads a previously persisted entity record without the
// gc-horizon check loadQuery applies, since entities are garbage
// collected by reference count, not by age.
func (p *processor) loadEntity(ctx context.Context, key uint32) (string, []uint32, bool, error) {
	value, ok, err := p.kv.GetString(ctx, valueKey(key))
	if err != nil || !ok {
		return "", nil, false, err
	}
	childRefs, _, err := p.kv.GetBuffer(ctx, entityRefsKey(key))
	if err != nil {
		return "", nil, false, err
	}
	return value, childRefs, true, nil
}

func (p *processor) incRefCount(ctx context.Context, ref uint32) error {
	count, _, err := p.kv.GetNumber(ctx, refCountKey(ref))
	if err != nil {
		return err
	}
	return p.kv.SetNumber(ctx, refCountKey(ref), count+1)
}

// decRefCountCascade decrements ref's count; on reaching zero it
// deletes the entity's value and its own ref-count/entity-ref-buffer
// keys, then recursively decrements whatever children that entity
// itself referenced. This resolves the cascade-deletion open question
// in favor of true recursion rather than stopping at depth one.
func (p *processor) decRefCountCascade(ctx context.Context, ref uint32) error {
	count, _, err := p.kv.GetNumber(ctx, refCountKey(ref))
	if err != nil {
		return err
	}
	count--
	if count > 0 {
		return p.kv.SetNumber(ctx, refCountKey(ref), count)
	}

	children, _, err := p.kv.GetBuffer(ctx, entityRefsKey(ref))
	if err != nil {
		return err
	}
	for _, k := range []string{refCountKey(ref), valueKey(ref), updatedAtKey(ref), entityRefsKey(ref)} {
		if err := p.kv.Delete(ctx, k); err != nil {
			return err
		}
	}
	for _, child := range children {
		if err := p.decRefCountCascade(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

func diffRefs(prev, next []uint32) (added, removed []uint32) {
	prevSet := toSet(prev)
	nextSet := toSet(next)
	for ref := range nextSet {
		if !prevSet[ref] {
			added = append(added, ref)
		}
	}
	for ref := range prevSet {
		if !nextSet[ref] {
			removed = append(removed, ref)
		}
	}
	return added, removed
}

func toSet(s []uint32) map[uint32]bool {
	m := make(map[uint32]bool, len(s))
	for _, v := range s {
		m[v] = true
	}
	return m
}

func indexOf(s []uint32, v uint32) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func moveToFront(queue []uint32, key uint32) []uint32 {
	out := make([]uint32, 0, len(queue)+1)
	out = append(out, key)
	for _, k := range queue {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}
