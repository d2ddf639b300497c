// Package typedef implements the declarative schema layer: masks, type
// definitions, shape-key hashing, and a pluggable primitive-format
// registry. A TypeDef tree is built once at startup and is immutable
// afterward, exposing only accessor methods once constructed.
package typedef

// Mask is a bitset of the fundamental and complex value kinds a schema
// position may accept. Composing masks with bitwise OR expresses
// union-of-primitives and optionality (MaskNull/MaskUndefined bits).
type Mask uint32

const (
	MaskUndefined Mask = 1 << iota
	MaskNull
	MaskNumber
	MaskString
	MaskBoolean
	MaskObject
	MaskArray
	MaskID
	MaskRecord
	MaskUnion
	MaskEntity

	// Format flags refine how a string/number position is interpreted;
	// they never appear alone, always OR'd onto a primitive mask.
	MaskHasStringFormat
	MaskHasNumberFormat
	MaskHasSubEntity
)

// Contains reports whether every bit in other is set in m.
func (m Mask) Contains(other Mask) bool {
	return m&other == other
}

// HasAny reports whether m and other share any set bit.
func (m Mask) HasAny(other Mask) bool {
	return m&other != 0
}

// Optional widens m to also accept MaskUndefined.
func (m Mask) Optional() Mask { return m | MaskUndefined }

// Nullable widens m to also accept MaskNull.
func (m Mask) Nullable() Mask { return m | MaskNull }

// Nullish widens m to accept both MaskNull and MaskUndefined.
func (m Mask) Nullish() Mask { return m | MaskNull | MaskUndefined }

// TypeMask classifies a decoded JSON value (as produced by
// encoding/json into interface{}) into the Mask bit it satisfies. Used
// by the parser to check `TypeMask(value) & def.Mask != 0`.
func TypeMask(value interface{}) Mask {
	switch value.(type) {
	case nil:
		return MaskNull
	case float64, int, int64:
		return MaskNumber
	case string:
		return MaskString
	case bool:
		return MaskBoolean
	case []interface{}:
		return MaskArray
	case map[string]interface{}:
		return MaskObject
	default:
		return MaskUndefined
	}
}
