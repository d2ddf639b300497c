package entitystore

import (
	"querycache/domain/reactive"
	"querycache/domain/typedef"
)

// Proxy is the minimal surface the store needs from a live entity
// proxy: just enough to invalidate it without entitystore depending on
// the parser package that actually builds proxies (parser depends on
// entitystore, not the reverse).
type Proxy interface {
	Invalidate()
}

// record is the Entity Store's internal representation; always
// accessed through Store methods, keeping the underlying fields
// private behind accessor methods.
type record struct {
	key      Key
	def      *typedef.TypeDef
	value    map[string]interface{}
	notifier *reactive.Notifier

	parseCache map[string]interface{}
	proxy      Proxy

	unsubscribeStream func()
	streamActive      bool

	optimisticSnapshot map[string]interface{}
	hasSnapshot        bool

	refCount int
}

// Value returns the record's raw JSON-shaped map. Callers must treat it
// as read-only; mutate only through Store.Merge.
func (r *record) Value() map[string]interface{} {
	return r.value
}

// Notifier returns the change notifier every proxy property read
// depends on.
func (r *record) Notifier() *reactive.Notifier {
	return r.notifier
}

// Def returns the schema this record was created against.
func (r *record) Def() *typedef.TypeDef {
	return r.def
}

// ParseCacheGet returns the cached parse of field, if any.
func (r *record) ParseCacheGet(field string) (interface{}, bool) {
	v, ok := r.parseCache[field]
	return v, ok
}

// ParseCacheSet stores the parse of field.
func (r *record) ParseCacheSet(field string, v interface{}) {
	if r.parseCache == nil {
		r.parseCache = make(map[string]interface{})
	}
	r.parseCache[field] = v
}

// RefCount returns the current incoming reference count.
func (r *record) RefCount() int {
	return r.refCount
}
