// Package entitystore is the in-memory normalized store mapping entity
// keys to records: raw JSON value, change notifier, per-field parse
// cache, live proxy, stream subscription handle, and incoming
// reference count.
package entitystore

import "querycache/domain/typedef"

// Key uniquely identifies an entity by (typename, id, shapeKey). Two
// schemas projecting the same server entity differently produce
// different keys, isolating caches by projection.
type Key uint32

// NewKey computes the key for a (typenameValue, idValue) pair under
// def's shape.
func NewKey(typenameValue, idValue string, def *typedef.TypeDef) Key {
	return Key(typedef.EntityKey(typenameValue, idValue, def.ShapeKey))
}
