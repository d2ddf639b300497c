package typedef

import "fmt"

// Kind discriminates which fields of a TypeDef are meaningful: one
// struct, a tag field, and the rest of the fields only meaningful for
// certain tags, the same wide-struct-narrow-usage-by-tag shape
// errors.AppError uses for its own ErrorType field.
type Kind int

const (
	KindPrimitive Kind = iota
	KindObject
	KindArray
	KindRecord
	KindUnion
	KindEntity
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindRecord:
		return "record"
	case KindUnion:
		return "union"
	case KindEntity:
		return "entity"
	default:
		return "unknown"
	}
}

// StreamDescriptor marks an entity definition as eligible for push
// updates. The Entity Store consults this to decide whether to call
// Subscribe on first reactive read.
type StreamDescriptor struct {
	// Subscribe starts a push subscription for the entity identified by
	// id, invoking onUpdate with partial merge patches until the
	// returned unsubscribe func is called.
	Subscribe func(ctx interface{}, id string, onUpdate func(patch map[string]interface{})) (unsubscribe func())
}

// TypeDef is a single node in a schema tree.
type TypeDef struct {
	Kind Kind
	Mask Mask

	// Primitive positions: a closed set of allowed literal constants
	// (enum/const). Empty means "any value matching Mask".
	Literals []interface{}

	// Object/Entity: child definitions keyed by field name.
	Shape map[string]*TypeDef
	// FieldOrder preserves declaration order for object/entity parsing,
	// since map iteration order in Go is not stable.
	FieldOrder []string

	// Array/Record: the single child element definition.
	Element *TypeDef

	// Union: dispatch table keyed by typename discriminator, plus
	// reserved branches for array- and record-valued variants.
	UnionBranches map[string]*TypeDef
	UnionArray    *TypeDef
	UnionRecord   *TypeDef

	// Entity-only fields.
	TypenameValue  string
	TypenameField  string
	IDField        string
	SubEntityPaths []string
	Stream         *StreamDescriptor
	Methods        map[string]interface{}

	// Format, if non-empty, names a registered formatter applied after
	// the base mask check passes (e.g. "date", "date-time", "integer").
	Format string

	// ShapeKey is a stable hash of the canonical encoding of this
	// definition, computed once at build time.
	ShapeKey uint32

	parent *TypeDef
}

// String builds a string-typed primitive TypeDef.
func String() *TypeDef { return finalize(&TypeDef{Kind: KindPrimitive, Mask: MaskString}) }

// Number builds a number-typed primitive TypeDef.
func Number() *TypeDef { return finalize(&TypeDef{Kind: KindPrimitive, Mask: MaskNumber}) }

// Boolean builds a boolean-typed primitive TypeDef.
func Boolean() *TypeDef { return finalize(&TypeDef{Kind: KindPrimitive, Mask: MaskBoolean}) }

// ID builds an id-typed primitive TypeDef (string- or number-backed
// identifiers that the entity layer treats as opaque keys).
func ID() *TypeDef { return finalize(&TypeDef{Kind: KindPrimitive, Mask: MaskID}) }

// Null builds a definition matching only the null literal.
func Null() *TypeDef { return finalize(&TypeDef{Kind: KindPrimitive, Mask: MaskNull}) }

// Undefined builds a definition matching only an absent value.
func Undefined() *TypeDef { return finalize(&TypeDef{Kind: KindPrimitive, Mask: MaskUndefined}) }

// Const builds a primitive TypeDef accepting exactly the given literal.
func Const(literal interface{}) *TypeDef {
	return finalize(&TypeDef{Kind: KindPrimitive, Mask: literalMask(literal), Literals: []interface{}{literal}})
}

// Enum builds a primitive TypeDef accepting any of the given literals,
// which must share the same underlying kind.
func Enum(literals ...interface{}) *TypeDef {
	if len(literals) == 0 {
		panic("typedef: Enum requires at least one literal")
	}
	return finalize(&TypeDef{Kind: KindPrimitive, Mask: literalMask(literals[0]), Literals: literals})
}

func literalMask(v interface{}) Mask {
	switch v.(type) {
	case string:
		return MaskString
	case float64, int, int64:
		return MaskNumber
	case bool:
		return MaskBoolean
	default:
		panic(fmt.Sprintf("typedef: unsupported literal type %T", v))
	}
}

// Array builds an array-of-element TypeDef.
func Array(element *TypeDef) *TypeDef {
	return finalize(&TypeDef{Kind: KindArray, Mask: MaskArray, Element: element})
}

// Record builds a map[string]T-shaped TypeDef.
func Record(element *TypeDef) *TypeDef {
	return finalize(&TypeDef{Kind: KindRecord, Mask: MaskRecord, Element: element})
}

// Object builds a fixed-shape object TypeDef. Field order is derived by
// sorting field names, since the map literal callers pass in has no
// inherent order; when true declaration order matters for parsing,
// build the object through ObjectOrdered instead.
func Object(fields map[string]*TypeDef) *TypeDef {
	return finalize(&TypeDef{Kind: KindObject, Mask: MaskObject, Shape: fields, FieldOrder: sortedKeys(fields)})
}

// ObjectOrdered builds a fixed-shape object TypeDef preserving the
// field declaration order given in order, which must list exactly the
// keys present in fields.
func ObjectOrdered(fields map[string]*TypeDef, order []string) *TypeDef {
	return finalize(&TypeDef{Kind: KindObject, Mask: MaskObject, Shape: fields, FieldOrder: order})
}

// Union builds a discriminated union. branches is keyed by typename
// value for object/entity variants; arrayBranch/recordBranch (may be
// nil) handle array- and record-valued variants.
func Union(branches map[string]*TypeDef, arrayBranch, recordBranch *TypeDef) *TypeDef {
	return finalize(&TypeDef{
		Kind:          KindUnion,
		Mask:          MaskUnion,
		UnionBranches: branches,
		UnionArray:    arrayBranch,
		UnionRecord:   recordBranch,
	})
}

// EntityOptions configures Entity.
type EntityOptions struct {
	TypenameValue string
	TypenameField string
	IDField       string
	Methods       map[string]interface{}
	Stream        *StreamDescriptor
}

// Entity builds an entity TypeDef: an object shape plus identity
// metadata used to compute EntityKeys and discover sub-entities.
func Entity(fields map[string]*TypeDef, opts EntityOptions) *TypeDef {
	if opts.TypenameField == "" {
		opts.TypenameField = "__typename"
	}
	if opts.IDField == "" {
		opts.IDField = "id"
	}

	def := &TypeDef{
		Kind:          KindEntity,
		Mask:          MaskObject | MaskEntity,
		Shape:         fields,
		FieldOrder:    sortedKeys(fields),
		TypenameValue: opts.TypenameValue,
		TypenameField: opts.TypenameField,
		IDField:       opts.IDField,
		Methods:       opts.Methods,
		Stream:        opts.Stream,
	}
	def.SubEntityPaths = computeSubEntityPaths(def)
	if len(def.SubEntityPaths) > 0 {
		def.Mask |= MaskHasSubEntity
	}
	return finalize(def)
}

// Extend returns a new entity TypeDef whose shape is the parent's shape
// plus additionalFields. It panics at build time if a field name
// collides with a parent field of a different definition — ambiguity
// here is a programmer error, not a runtime data error.
func (t *TypeDef) Extend(additionalFields map[string]*TypeDef) *TypeDef {
	if t.Kind != KindEntity {
		panic("typedef: Extend is only valid on entity definitions")
	}
	merged := make(map[string]*TypeDef, len(t.Shape)+len(additionalFields))
	for k, v := range t.Shape {
		merged[k] = v
	}
	for k, v := range additionalFields {
		if existing, ok := t.Shape[k]; ok && existing.ShapeKey != v.ShapeKey {
			panic(fmt.Sprintf("typedef: Extend field %q collides with parent field of different type", k))
		}
		merged[k] = v
	}
	child := Entity(merged, EntityOptions{
		TypenameValue: t.TypenameValue,
		TypenameField: t.TypenameField,
		IDField:       t.IDField,
		Methods:       t.Methods,
		Stream:        t.Stream,
	})
	child.parent = t
	return child
}

// Optional returns a copy of t whose mask additionally accepts
// MaskUndefined.
func (t *TypeDef) Optional() *TypeDef {
	return withMask(t, t.Mask.Optional())
}

// Nullable returns a copy of t whose mask additionally accepts MaskNull.
func (t *TypeDef) Nullable() *TypeDef {
	return withMask(t, t.Mask.Nullable())
}

// Nullish returns a copy of t whose mask accepts both MaskNull and
// MaskUndefined.
func (t *TypeDef) Nullish() *TypeDef {
	return withMask(t, t.Mask.Nullish())
}

// FormatAs returns a copy of t tagged with a registered formatter name,
// setting the appropriate format flag bit.
func (t *TypeDef) FormatAs(name string) *TypeDef {
	clone := *t
	clone.Format = name
	if t.Mask.HasAny(MaskNumber) {
		clone.Mask |= MaskHasNumberFormat
	} else {
		clone.Mask |= MaskHasStringFormat
	}
	return finalize(&clone)
}

func withMask(t *TypeDef, m Mask) *TypeDef {
	clone := *t
	clone.Mask = m
	return finalize(&clone)
}

func computeSubEntityPaths(def *TypeDef) []string {
	var paths []string
	for _, name := range def.FieldOrder {
		if containsEntity(def.Shape[name]) {
			paths = append(paths, name)
		}
	}
	return paths
}

func containsEntity(def *TypeDef) bool {
	if def == nil {
		return false
	}
	switch def.Kind {
	case KindEntity:
		return true
	case KindArray, KindRecord:
		return containsEntity(def.Element)
	case KindUnion:
		for _, b := range def.UnionBranches {
			if containsEntity(b) {
				return true
			}
		}
		return containsEntity(def.UnionArray) || containsEntity(def.UnionRecord)
	default:
		return false
	}
}

func finalize(def *TypeDef) *TypeDef {
	def.ShapeKey = computeShapeKey(def)
	return def
}

func sortedKeys(m map[string]*TypeDef) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
