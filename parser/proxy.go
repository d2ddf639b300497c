package parser

import (
	"encoding/json"
	"fmt"
	"reflect"

	"querycache/domain/reactive"
	"querycache/domain/typedef"
	"querycache/entitystore"
)

// Proxy is a live, lazily-evaluated view over an entity record. Field
// reads are cached per key in the record's parse cache and register a
// reactive dependency on the record's change notifier. That notifier is
// per record, so a reader of proxy.Name is also notified when
// proxy.Email changes.
//
// Reflection is used only in TypedGet's conversion helper below; every
// other code path works through the untyped Get. This module has no
// build-time codegen step, so reflection is the pragmatic stand-in for
// what a generated-binding implementation would otherwise do at
// compile time.
type Proxy struct {
	ctx *Context
	key entitystore.Key
	def *typedef.TypeDef
}

// NewProxy builds the proxy for an already-registered entity record.
// Parser callers should prefer going through Store.Proxy /
// Store.SetProxy so the same key always maps to the same *Proxy
// instance; NewProxy itself does no caching.
func NewProxy(ctx *Context, key entitystore.Key, def *typedef.TypeDef) *Proxy {
	return &Proxy{ctx: ctx, key: key, def: def}
}

// Key returns the entity key this proxy is a view over.
func (p *Proxy) Key() entitystore.Key { return p.key }

// Invalidate satisfies entitystore.Proxy; proxies have no state of
// their own to drop since reads are served fresh from the parse cache
// each time, so this is a deliberate no-op retained to document the
// interface it implements.
func (p *Proxy) Invalidate() {}

// ToJSON returns the wire-stable representation of a proxy reference:
// `{entityRef: key}`.
func (p *Proxy) ToJSON() map[string]interface{} {
	return map[string]interface{}{"entityRef": uint32(p.key)}
}

// MarshalJSON makes *Proxy a json.Marshaler so a parsed value tree
// serializes entity positions as stable refs instead of attempting to
// walk into live record state.
func (p *Proxy) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToJSON())
}

// Get reads a single field: consult the parse cache, on miss fetch the
// raw property and parse it against the field's definition, cache it,
// and register a dependency on the record's change notifier.
func (p *Proxy) Get(field string) (interface{}, error) {
	rec, ok := p.ctx.Store.Lookup(p.key)
	if !ok {
		return nil, fmt.Errorf("parser: proxy references a deleted entity (key %d)", p.key)
	}

	reactive.TrackDependency(rec.Notifier())

	if cached, ok := rec.ParseCacheGet(field); ok {
		return cached, nil
	}

	fieldDef, known := p.def.Shape[field]
	if !known {
		return nil, fmt.Errorf("parser: %q has no field %q", p.def.TypenameValue, field)
	}

	raw, present := rec.Value()[field]
	if !present {
		if !fieldDef.Mask.Contains(typedef.MaskUndefined) {
			return nil, newValidationError([]string{field}, "field present", nil)
		}
		return nil, nil
	}

	if already, ok := raw.(*Proxy); ok {
		return already, nil
	}

	parsed, err := ParseValue(p.ctx, raw, fieldDef, []string{field})
	if err != nil {
		return nil, err
	}
	rec.ParseCacheSet(field, parsed)
	return parsed, nil
}

// TypedGet reads field and converts it to T via reflection, for call
// sites that want a typed accessor instead of interface{}. Isolated
// here as the module's one reflective conversion path.
func TypedGet[T any](p *Proxy, field string) (T, error) {
	var zero T
	v, err := p.Get(field)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	rv := reflect.ValueOf(v)
	want := reflect.TypeOf(zero)
	if want != nil && rv.Type().ConvertibleTo(want) {
		return rv.Convert(want).Interface().(T), nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("parser: field %q is %T, not %T", field, v, zero)
	}
	return typed, nil
}
