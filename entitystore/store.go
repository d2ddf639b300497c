package entitystore

import (
	"context"
	"sync"

	"querycache/domain/reactive"
	"querycache/domain/typedef"
)

// Store is the in-memory normalized entity store. The Query Client
// holds exactly one Store; entity records and query instances only
// hold back-references through their Keys.
type Store struct {
	mu     sync.Mutex
	sched  *reactive.Scheduler
	byKey  map[Key]*record
}

// NewStore builds an empty Store driven by sched, which is used to
// defer stream-update application to the next scheduler tick.
func NewStore(sched *reactive.Scheduler) *Store {
	return &Store{sched: sched, byKey: make(map[Key]*record)}
}

// GetOrCreate returns the record for key, creating an empty one lazily
// on first observation. The record returned is the canonical identity
// for that (typename, id, shapeKey) triple.
func (s *Store) GetOrCreate(key Key, def *typedef.TypeDef) *record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.byKey[key]; ok {
		return r
	}
	r := &record{
		key:      key,
		def:      def,
		value:    make(map[string]interface{}),
		notifier: reactive.NewNotifier(s.sched),
	}
	s.byKey[key] = r
	return r
}

// Lookup returns the record for key without creating one.
func (s *Store) Lookup(key Key) (*record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byKey[key]
	return r, ok
}

// Merge shallow-merges partial into the record's value, clears the
// parse cache, and bumps the change notifier. Nested structures are
// replaced by reference; the proxy layer provides field-level
// granularity on read, not this merge.
func (s *Store) Merge(key Key, partial map[string]interface{}) {
	s.mu.Lock()
	r, ok := s.byKey[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	for k, v := range partial {
		r.value[k] = v
	}
	r.parseCache = nil
	s.mu.Unlock()
	r.notifier.Notify()
}

// Preload sets a record's value without bumping the notifier, used
// when hydrating from the persistent store before any reader exists.
func (s *Store) Preload(key Key, def *typedef.TypeDef, value map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byKey[key]
	if !ok {
		r = &record{key: key, def: def, notifier: reactive.NewNotifier(s.sched)}
		s.byKey[key] = r
	}
	r.value = value
	r.parseCache = nil
}

// SetProxy attaches the live proxy for key, making it the canonical
// proxy identity returned by future createEntityProxy calls for the
// same key.
func (s *Store) SetProxy(key Key, proxy Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.byKey[key]; ok {
		r.proxy = proxy
	}
}

// Proxy returns the canonical live proxy for key, if one has been
// minted yet.
func (s *Store) Proxy(key Key) (Proxy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byKey[key]
	if !ok || r.proxy == nil {
		return nil, false
	}
	return r.proxy, true
}

// SetOptimisticSnapshot captures the record's current value before an
// optimistic mutation. A second call on an un-cleared key is a no-op:
// nested snapshots are disallowed so the first snapshot is never
// overwritten.
func (s *Store) SetOptimisticSnapshot(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byKey[key]
	if !ok || r.hasSnapshot {
		return
	}
	snapshot := make(map[string]interface{}, len(r.value))
	for k, v := range r.value {
		snapshot[k] = v
	}
	r.optimisticSnapshot = snapshot
	r.hasSnapshot = true
}

// RevertOptimistic restores the record's value from its snapshot and
// clears it, notifying dependents of the rollback.
func (s *Store) RevertOptimistic(key Key) {
	s.mu.Lock()
	r, ok := s.byKey[key]
	if !ok || !r.hasSnapshot {
		s.mu.Unlock()
		return
	}
	r.value = r.optimisticSnapshot
	r.optimisticSnapshot = nil
	r.hasSnapshot = false
	r.parseCache = nil
	s.mu.Unlock()
	r.notifier.Notify()
}

// ClearOptimistic discards a record's snapshot on successful commit
// without touching the current value.
func (s *Store) ClearOptimistic(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.byKey[key]; ok {
		r.optimisticSnapshot = nil
		r.hasSnapshot = false
	}
}

// ActivateStream subscribes to the entity's stream descriptor, if any,
// the first time a reactive consumer reads it. Stream updates are
// always applied outside the scope of an in-flight reactive read:
// merge application is deferred to the next scheduler tick, preserving
// the single-writer-per-tick invariant of the reactive substrate.
// The returned unsubscribe closure should be invoked when the last
// reactive consumer drops the record.
func (s *Store) ActivateStream(ctx context.Context, key Key) (unsubscribe func(), active bool) {
	s.mu.Lock()
	r, ok := s.byKey[key]
	if !ok || r.def.Stream == nil || r.streamActive {
		s.mu.Unlock()
		if ok {
			return func() { s.deactivateStream(key) }, r.streamActive
		}
		return func() {}, false
	}
	r.streamActive = true
	def := r.def
	typenameValue := def.TypenameValue
	s.mu.Unlock()

	id, _ := r.value[def.IDField].(string)
	unsub := def.Stream.Subscribe(ctx, id, func(patch map[string]interface{}) {
		s.sched.Defer(func() {
			s.Merge(key, patch)
		})
	})
	_ = typenameValue

	s.mu.Lock()
	r.unsubscribeStream = unsub
	s.mu.Unlock()

	return func() { s.deactivateStream(key) }, true
}

func (s *Store) deactivateStream(key Key) {
	s.mu.Lock()
	r, ok := s.byKey[key]
	if !ok || !r.streamActive {
		s.mu.Unlock()
		return
	}
	unsub := r.unsubscribeStream
	r.streamActive = false
	r.unsubscribeStream = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// IncRef increments key's incoming reference count. It does nothing
// when key has no record; no record is created here.
func (s *Store) IncRef(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.byKey[key]; ok {
		r.refCount++
	}
}

// DecRef decrements key's incoming reference count and reports whether
// it reached zero, in which case the caller (querystore) should
// cascade-delete and then call Delete.
func (s *Store) DecRef(key Key) (reachedZero bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byKey[key]
	if !ok {
		return false
	}
	r.refCount--
	return r.refCount <= 0
}

// Delete removes a record entirely, tearing down any active stream
// subscription first.
func (s *Store) Delete(key Key) {
	s.mu.Lock()
	r, ok := s.byKey[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	unsub := r.unsubscribeStream
	delete(s.byKey, key)
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
