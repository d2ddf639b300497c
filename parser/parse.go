package parser

import (
	"fmt"

	"go.uber.org/zap"

	"querycache/domain/typedef"
	"querycache/entitystore"
)

// ParseValue validates value against def and returns its parsed form.
// Primitive positions are checked against def.Mask and any registered
// format; union positions dispatch by value kind or typename
// discriminator; array elements that fail are dropped (with a warning)
// rather than failing the whole array; record entries and object
// fields fail the whole parse on a bad value; entity positions mint or
// fetch the live proxy without eagerly parsing every field.
func ParseValue(ctx *Context, value interface{}, def *typedef.TypeDef, path []string) (interface{}, error) {
	if def == nil {
		return value, nil
	}

	switch def.Kind {
	case typedef.KindPrimitive:
		return parsePrimitive(ctx, value, def, path)
	case typedef.KindUnion:
		return parseUnion(ctx, value, def, path)
	case typedef.KindArray:
		return parseArray(ctx, value, def, path)
	case typedef.KindRecord:
		return parseRecord(ctx, value, def, path)
	case typedef.KindObject:
		return parseObject(ctx, value, def, path)
	case typedef.KindEntity:
		return parseEntityPosition(ctx, value, def, path)
	default:
		return nil, newValidationError(path, "known kind", def.Kind)
	}
}

func parsePrimitive(ctx *Context, value interface{}, def *typedef.TypeDef, path []string) (interface{}, error) {
	vm := typedef.TypeMask(value)
	if value == nil {
		vm = typedef.MaskNull
	}
	if !def.Mask.HasAny(vm) {
		return nil, newValidationError(path, expectedDescription(def), value)
	}

	if len(def.Literals) > 0 && !containsLiteral(def.Literals, value) {
		return nil, newValidationError(path, expectedDescription(def), value)
	}

	if def.Format != "" {
		fn, ok := typedef.LookupFormat(def.Format)
		if !ok {
			return nil, fmt.Errorf("parser: unregistered format %q at %v", def.Format, path)
		}
		parsed, err := fn(value)
		if err != nil {
			return nil, newValidationError(path, def.Format, value)
		}
		return parsed, nil
	}

	return value, nil
}

func containsLiteral(literals []interface{}, value interface{}) bool {
	for _, l := range literals {
		if l == value {
			return true
		}
	}
	return false
}

func expectedDescription(def *typedef.TypeDef) string {
	if len(def.Literals) > 0 {
		return fmt.Sprintf("one of %v", def.Literals)
	}
	return fmt.Sprintf("mask %d", def.Mask)
}

func parseUnion(ctx *Context, value interface{}, def *typedef.TypeDef, path []string) (interface{}, error) {
	switch v := value.(type) {
	case []interface{}:
		if def.UnionArray == nil {
			return nil, newValidationError(path, "union with array branch", value)
		}
		return ParseValue(ctx, v, def.UnionArray, path)
	case map[string]interface{}:
		if typename, ok := v["__typename"].(string); ok {
			if branch, ok := def.UnionBranches[typename]; ok {
				return ParseValue(ctx, v, branch, path)
			}
		}
		if def.UnionRecord != nil {
			return ParseValue(ctx, v, def.UnionRecord, path)
		}
		return nil, newValidationError(path, "union variant with known discriminator", value)
	default:
		return nil, newValidationError(path, "union variant", value)
	}
}

func parseArray(ctx *Context, value interface{}, def *typedef.TypeDef, path []string) (interface{}, error) {
	arr, ok := value.([]interface{})
	if !ok {
		return nil, newValidationError(path, "array", value)
	}
	out := make([]interface{}, 0, len(arr))
	for i, elem := range arr {
		elemPath := append(append([]string(nil), path...), fmt.Sprintf("[%d]", i))
		parsed, err := ParseValue(ctx, elem, def.Element, elemPath)
		if err != nil {
			ctx.logger().Warn("dropping array element that failed validation",
				zap.Strings("path", elemPath),
				zap.Error(err),
			)
			continue
		}
		out = append(out, parsed)
	}
	return out, nil
}

func parseRecord(ctx *Context, value interface{}, def *typedef.TypeDef, path []string) (interface{}, error) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, newValidationError(path, "record", value)
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		entryPath := append(append([]string(nil), path...), k)
		parsed, err := ParseValue(ctx, v, def.Element, entryPath)
		if err != nil {
			return nil, err
		}
		out[k] = parsed
	}
	return out, nil
}

func parseObject(ctx *Context, value interface{}, def *typedef.TypeDef, path []string) (interface{}, error) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, newValidationError(path, "object", value)
	}
	out := make(map[string]interface{}, len(m))
	for _, name := range def.FieldOrder {
		fieldPath := append(append([]string(nil), path...), name)
		raw, present := m[name]
		if !present {
			if !def.Shape[name].Mask.Contains(typedef.MaskUndefined) {
				return nil, newValidationError(fieldPath, "field present", nil)
			}
			continue
		}
		parsed, err := ParseValue(ctx, raw, def.Shape[name], fieldPath)
		if err != nil {
			return nil, err
		}
		out[name] = parsed
	}
	// Extra fields on the input are preserved but unparsed.
	for k, v := range m {
		if _, known := def.Shape[k]; !known {
			out[k] = v
		}
	}
	return out, nil
}

func parseEntityPosition(ctx *Context, value interface{}, def *typedef.TypeDef, path []string) (interface{}, error) {
	if already, ok := value.(*Proxy); ok {
		return already, nil
	}

	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, newValidationError(path, "entity object", value)
	}
	typenameValue, _ := m[def.TypenameField].(string)
	if typenameValue == "" {
		typenameValue = def.TypenameValue
	}
	idValue := fmt.Sprintf("%v", m[def.IDField])

	key := entitystore.NewKey(typenameValue, idValue, def)
	ctx.Store.GetOrCreate(key, def)
	ctx.Store.Merge(key, m)

	proxy, ok := ctx.Store.Proxy(key)
	if !ok {
		proxy = NewProxy(ctx, key, def)
		ctx.Store.SetProxy(key, proxy)
	}
	return proxy, nil
}
