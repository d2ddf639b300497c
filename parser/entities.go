package parser

import (
	"fmt"

	"querycache/domain/typedef"
	"querycache/entitystore"
)

// ParseResult is the output of ParseEntities: every entity transitively
// reached from the parsed value, plus which of those are root-level
// (reached directly from the top-level value rather than through an
// enclosing entity).
type ParseResult struct {
	// RootRefs are the entity keys reached directly from the top-level
	// value, propagated up through any intervening array/record/union
	// positions. These are what a query instance or mutation response
	// stores as its own ref set.
	RootRefs []entitystore.Key

	// ChildRefs maps each discovered entity's key to the entity keys it
	// immediately (not transitively) references, mirroring
	// the child-ref buffer querystore.SaveEntity persists per entity, so cascade deletion can walk the
	// graph instead of stopping at depth one.
	ChildRefs map[entitystore.Key][]entitystore.Key
}

// WalkEntities traverses value according to def, registering every
// discovered entity with the store and collecting root-level entity
// keys into the returned ParseResult. Unlike ParseValue, it does not
// validate every primitive field — its only job is entity discovery
// for persistence bookkeeping, so it only descends into positions that
// def.SubEntityPaths (or the array/record/union equivalent) says may
// contain one.
//
// This is the single traversal both the response side (ParseEntities)
// and the mutation engine's request-side optimistic patch discovery
// call, so a fetched response and a locally-constructed mutation body
// register entities through identical logic.
func WalkEntities(ctx *Context, value interface{}, def *typedef.TypeDef) (*ParseResult, error) {
	result := &ParseResult{ChildRefs: make(map[entitystore.Key][]entitystore.Key)}
	refs, err := discover(ctx, value, def, result)
	if err != nil {
		return nil, err
	}
	result.RootRefs = refs
	return result, nil
}

// ParseEntities is WalkEntities under the name used for the
// response-parsing entry point.
func ParseEntities(ctx *Context, value interface{}, def *typedef.TypeDef) (*ParseResult, error) {
	return WalkEntities(ctx, value, def)
}

// discover walks value/def, returning the entity keys reached directly
// from this position (propagated to the caller's accumulator).
func discover(ctx *Context, value interface{}, def *typedef.TypeDef, result *ParseResult) ([]entitystore.Key, error) {
	if def == nil || value == nil {
		return nil, nil
	}

	switch def.Kind {
	case typedef.KindEntity:
		key, err := discoverEntity(ctx, value, def, result)
		if err != nil {
			return nil, err
		}
		return []entitystore.Key{key}, nil

	case typedef.KindArray:
		arr, ok := value.([]interface{})
		if !ok {
			return nil, nil
		}
		var refs []entitystore.Key
		for _, elem := range arr {
			childRefs, err := discover(ctx, elem, def.Element, result)
			if err != nil {
				return nil, err
			}
			refs = append(refs, childRefs...)
		}
		return refs, nil

	case typedef.KindRecord:
		m, ok := value.(map[string]interface{})
		if !ok {
			return nil, nil
		}
		var refs []entitystore.Key
		for _, v := range m {
			childRefs, err := discover(ctx, v, def.Element, result)
			if err != nil {
				return nil, err
			}
			refs = append(refs, childRefs...)
		}
		return refs, nil

	case typedef.KindUnion:
		return discoverUnion(ctx, value, def, result)

	case typedef.KindObject:
		if !def.Mask.Contains(typedef.MaskHasSubEntity) {
			return nil, nil
		}
		m, ok := value.(map[string]interface{})
		if !ok {
			return nil, nil
		}
		var refs []entitystore.Key
		for _, name := range def.SubEntityPaths {
			childRefs, err := discover(ctx, m[name], def.Shape[name], result)
			if err != nil {
				return nil, err
			}
			refs = append(refs, childRefs...)
		}
		return refs, nil

	default:
		return nil, nil
	}
}

func discoverUnion(ctx *Context, value interface{}, def *typedef.TypeDef, result *ParseResult) ([]entitystore.Key, error) {
	switch v := value.(type) {
	case []interface{}:
		if def.UnionArray == nil {
			return nil, nil
		}
		return discover(ctx, v, def.UnionArray, result)
	case map[string]interface{}:
		if typename, ok := v["__typename"].(string); ok {
			if branch, ok := def.UnionBranches[typename]; ok {
				return discover(ctx, v, branch, result)
			}
		}
		if def.UnionRecord != nil {
			return discover(ctx, v, def.UnionRecord, result)
		}
	}
	return nil, nil
}

// discoverEntity registers value's entity record (if not already
// present) and recurses into the entity's own sub-entity paths,
// recording the immediate (non-transitive) child refs against this
// entity's key in result.ChildRefs.
func discoverEntity(ctx *Context, value interface{}, def *typedef.TypeDef, result *ParseResult) (entitystore.Key, error) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("parser: entity position expected an object, got %T", value)
	}

	typenameValue, _ := m[def.TypenameField].(string)
	if typenameValue == "" {
		typenameValue = def.TypenameValue
	}
	idValue := fmt.Sprintf("%v", m[def.IDField])
	key := entitystore.NewKey(typenameValue, idValue, def)

	ctx.Store.GetOrCreate(key, def)
	if ctx.OptimisticSnapshot {
		ctx.Store.SetOptimisticSnapshot(key)
	}
	ctx.Store.Merge(key, m)

	if _, already := result.ChildRefs[key]; already {
		// Cycle guard: this entity's own sub-entity paths have already
		// been (or are being) walked elsewhere in this parse.
		return key, nil
	}
	result.ChildRefs[key] = nil

	var childRefs []entitystore.Key
	for _, name := range def.SubEntityPaths {
		refs, err := discover(ctx, m[name], def.Shape[name], result)
		if err != nil {
			return 0, err
		}
		childRefs = append(childRefs, refs...)
	}
	result.ChildRefs[key] = childRefs
	return key, nil
}
