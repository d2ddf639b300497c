package parser

import (
	"context"
	"encoding/json"

	"querycache/domain/typedef"
	"querycache/entitystore"
	"querycache/querystore"
)

// ResolveRefs walks value according to def and replaces every entityRef
// stub (the {"entityRef": id} shape Proxy.MarshalJSON produces) with a
// live *Proxy, loading the entity's record from persist and preloading
// it into the store first if it isn't already resident. This is the
// inverse of the discovery WalkEntities performs on a freshly parsed
// response, used to turn a persisted query value back into something a
// consumer can read through without re-fetching.
//
// A stub whose entity record is missing everywhere (neither in the
// store nor in persist) is left as the raw stub rather than failing the
// whole walk; the proxy layer already treats a deleted-entity reference
// as a per-field error rather than a panic, so a caller reading through
// an unresolved stub sees the same failure mode.
func ResolveRefs(pctx *Context, ctx context.Context, persist querystore.Store, value interface{}, def *typedef.TypeDef) interface{} {
	if def == nil || value == nil {
		return value
	}

	switch def.Kind {
	case typedef.KindEntity:
		return resolveEntityRef(pctx, ctx, persist, value, def)

	case typedef.KindArray:
		arr, ok := value.([]interface{})
		if !ok {
			return value
		}
		out := make([]interface{}, len(arr))
		for i, elem := range arr {
			out[i] = ResolveRefs(pctx, ctx, persist, elem, def.Element)
		}
		return out

	case typedef.KindRecord:
		m, ok := value.(map[string]interface{})
		if !ok {
			return value
		}
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[k] = ResolveRefs(pctx, ctx, persist, v, def.Element)
		}
		return out

	case typedef.KindUnion:
		return resolveUnionRefs(pctx, ctx, persist, value, def)

	case typedef.KindObject:
		m, ok := value.(map[string]interface{})
		if !ok || !def.Mask.Contains(typedef.MaskHasSubEntity) {
			return value
		}
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[k] = v
		}
		for _, name := range def.SubEntityPaths {
			out[name] = ResolveRefs(pctx, ctx, persist, m[name], def.Shape[name])
		}
		return out

	default:
		return value
	}
}

func resolveUnionRefs(pctx *Context, ctx context.Context, persist querystore.Store, value interface{}, def *typedef.TypeDef) interface{} {
	switch v := value.(type) {
	case []interface{}:
		if def.UnionArray == nil {
			return value
		}
		return ResolveRefs(pctx, ctx, persist, v, def.UnionArray)
	case map[string]interface{}:
		if typename, ok := v["__typename"].(string); ok {
			if branch, ok := def.UnionBranches[typename]; ok {
				return ResolveRefs(pctx, ctx, persist, v, branch)
			}
		}
		if def.UnionRecord != nil {
			return ResolveRefs(pctx, ctx, persist, v, def.UnionRecord)
		}
	}
	return value
}

func resolveEntityRef(pctx *Context, ctx context.Context, persist querystore.Store, value interface{}, def *typedef.TypeDef) interface{} {
	if already, ok := value.(*Proxy); ok {
		return already
	}
	m, ok := value.(map[string]interface{})
	if !ok {
		return value
	}
	rawID, ok := m["entityRef"]
	if !ok {
		return value
	}
	id, ok := rawID.(float64)
	if !ok {
		return value
	}
	key := entitystore.Key(uint32(id))

	if proxy, ok := pctx.Store.Proxy(key); ok {
		return proxy
	}
	if _, ok := pctx.Store.Lookup(key); !ok {
		if !loadEntityInto(pctx, ctx, persist, key, def) {
			return value
		}
	}
	proxy := NewProxy(pctx, key, def)
	pctx.Store.SetProxy(key, proxy)
	return proxy
}

func loadEntityInto(pctx *Context, ctx context.Context, persist querystore.Store, key entitystore.Key, def *typedef.TypeDef) bool {
	if persist == nil {
		return false
	}
	raw, _, ok, err := persist.LoadEntity(ctx, uint32(key))
	if err != nil || !ok {
		return false
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return false
	}
	pctx.Store.Preload(key, def, decoded)
	return true
}
