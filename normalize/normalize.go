// Package normalize is the thin bridge between parser.WalkEntities'
// discovery output and the persistence layer: it writes every entity
// WalkEntities touched (value plus immediate child refs) to a
// querystore.Store. Both the query engine (fetch responses, stream
// updates) and the mutation engine (mutation responses; optimistic
// request bodies are not persisted) call this after a WalkEntities pass, so normalized
// entities reach the persistent layer identically regardless of which
// engine produced them.
package normalize

import (
	"context"
	"encoding/json"

	"querycache/entitystore"
	"querycache/parser"
	"querycache/querystore"
)

// PersistEntities writes every entity discovered by result to store.
// Errors from individual entities are ignored and do not stop the
// walk; the caller's fetch/mutation has already succeeded and entity
// persistence is a best-effort cache warm, not a correctness
// requirement (the Entity Store already holds the live values).
func PersistEntities(ctx context.Context, entities *entitystore.Store, persist querystore.Store, result *parser.ParseResult) {
	if persist == nil || result == nil {
		return
	}
	for key, children := range result.ChildRefs {
		rec, ok := entities.Lookup(key)
		if !ok {
			continue
		}
		value, err := json.Marshal(rec.Value())
		if err != nil {
			continue
		}
		childIDs := make([]uint32, len(children))
		for i, c := range children {
			childIDs[i] = uint32(c)
		}
		_ = persist.SaveEntity(ctx, uint32(key), string(value), childIDs)
	}
}
