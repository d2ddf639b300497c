package typedef

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// computeShapeKey hashes a canonical textual encoding of def with
// FNV-1a. Shape keys only need to be stable and collision-resistant
// within a single process lifetime (they are never persisted across
// schema versions), so the standard library's fnv package is used
// directly rather than reaching for an external hashing library for
// this kind of in-memory content hash.
func computeShapeKey(def *TypeDef) uint32 {
	h := fnv.New32a()
	var b strings.Builder
	encodeShape(&b, def, make(map[*TypeDef]bool))
	h.Write([]byte(b.String()))
	return h.Sum32()
}

func encodeShape(b *strings.Builder, def *TypeDef, seen map[*TypeDef]bool) {
	if def == nil {
		b.WriteString("nil")
		return
	}
	if seen[def] {
		// Recursive entity reference: encode by typename only to break
		// the cycle, mirroring how entity positions aren't eagerly
		// expanded during parsing either.
		fmt.Fprintf(b, "entity-ref(%s)", def.TypenameValue)
		return
	}

	fmt.Fprintf(b, "%s|%d|", def.Kind, def.Mask)

	if len(def.Literals) > 0 {
		fmt.Fprintf(b, "lit(%v)", def.Literals)
	}

	switch def.Kind {
	case KindObject, KindEntity:
		seen[def] = true
		b.WriteString("{")
		keys := append([]string(nil), def.FieldOrder...)
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "%s:", k)
			encodeShape(b, def.Shape[k], seen)
			b.WriteString(",")
		}
		b.WriteString("}")
		if def.Kind == KindEntity {
			fmt.Fprintf(b, "entity(%s,%s,%s)", def.TypenameValue, def.TypenameField, def.IDField)
		}
		delete(seen, def)
	case KindArray, KindRecord:
		b.WriteString("[")
		encodeShape(b, def.Element, seen)
		b.WriteString("]")
	case KindUnion:
		b.WriteString("<")
		keys := make([]string, 0, len(def.UnionBranches))
		for k := range def.UnionBranches {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "%s:", k)
			encodeShape(b, def.UnionBranches[k], seen)
			b.WriteString(",")
		}
		if def.UnionArray != nil {
			b.WriteString("array:")
			encodeShape(b, def.UnionArray, seen)
		}
		if def.UnionRecord != nil {
			b.WriteString("record:")
			encodeShape(b, def.UnionRecord, seen)
		}
		b.WriteString(">")
	}

	if def.Format != "" {
		fmt.Fprintf(b, "fmt(%s)", def.Format)
	}
}

// EntityKey hashes a (typename, id, shapeKey) triple into the stable
// 32-bit identity used throughout the entity store and query store.
// Two otherwise-equal entities parsed through definitions with
// different ShapeKeys land in different buckets, isolating caches by
// projection as required.
func EntityKey(typenameValue, idValue string, shapeKey uint32) uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%s|%d", typenameValue, idValue, shapeKey)
	return h.Sum32()
}
