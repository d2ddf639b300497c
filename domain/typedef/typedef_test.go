package typedef_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycache/domain/typedef"
)

func TestMaskComposition(t *testing.T) {
	m := typedef.MaskString.Optional().Nullable()
	assert.True(t, m.Contains(typedef.MaskString))
	assert.True(t, m.Contains(typedef.MaskUndefined))
	assert.True(t, m.Contains(typedef.MaskNull))
	assert.False(t, m.Contains(typedef.MaskNumber))
}

func TestTypeMaskClassifiesDecodedJSON(t *testing.T) {
	assert.Equal(t, typedef.MaskString, typedef.TypeMask("hello"))
	assert.Equal(t, typedef.MaskNumber, typedef.TypeMask(float64(3)))
	assert.Equal(t, typedef.MaskBoolean, typedef.TypeMask(true))
	assert.Equal(t, typedef.MaskNull, typedef.TypeMask(nil))
	assert.Equal(t, typedef.MaskArray, typedef.TypeMask([]interface{}{}))
	assert.Equal(t, typedef.MaskObject, typedef.TypeMask(map[string]interface{}{}))
}

func TestObjectShapeKeyStableAcrossFieldInsertionOrder(t *testing.T) {
	a := typedef.Object(map[string]*typedef.TypeDef{
		"name": typedef.String(),
		"age":  typedef.Number(),
	})
	b := typedef.Object(map[string]*typedef.TypeDef{
		"age":  typedef.Number(),
		"name": typedef.String(),
	})
	assert.Equal(t, a.ShapeKey, b.ShapeKey)
}

func TestDifferentShapesProduceDifferentShapeKeys(t *testing.T) {
	a := typedef.Object(map[string]*typedef.TypeDef{"name": typedef.String()})
	b := typedef.Object(map[string]*typedef.TypeDef{"name": typedef.Number()})
	assert.NotEqual(t, a.ShapeKey, b.ShapeKey)
}

func TestEntityDiscoversSubEntityPaths(t *testing.T) {
	author := typedef.Entity(map[string]*typedef.TypeDef{
		"id":   typedef.ID(),
		"name": typedef.String(),
	}, typedef.EntityOptions{TypenameValue: "Author"})

	post := typedef.Entity(map[string]*typedef.TypeDef{
		"id":     typedef.ID(),
		"title":  typedef.String(),
		"author": author,
		"tags":   typedef.Array(typedef.String()),
	}, typedef.EntityOptions{TypenameValue: "Post"})

	assert.Contains(t, post.SubEntityPaths, "author")
	assert.NotContains(t, post.SubEntityPaths, "tags")
	assert.NotContains(t, post.SubEntityPaths, "title")
	assert.True(t, post.Mask.Contains(typedef.MaskHasSubEntity))
}

func TestEntityExtendProducesDistinctShapeKey(t *testing.T) {
	base := typedef.Entity(map[string]*typedef.TypeDef{
		"id":   typedef.ID(),
		"name": typedef.String(),
	}, typedef.EntityOptions{TypenameValue: "User"})

	extended := base.Extend(map[string]*typedef.TypeDef{
		"email": typedef.String(),
	})

	assert.NotEqual(t, base.ShapeKey, extended.ShapeKey)
	assert.Contains(t, extended.Shape, "name")
	assert.Contains(t, extended.Shape, "email")
}

func TestEntityExtendPanicsOnFieldTypeCollision(t *testing.T) {
	base := typedef.Entity(map[string]*typedef.TypeDef{
		"id": typedef.ID(),
	}, typedef.EntityOptions{TypenameValue: "Widget"})

	assert.Panics(t, func() {
		base.Extend(map[string]*typedef.TypeDef{
			"id": typedef.String(),
		})
	})
}

func TestEntityKeyIsolatesByShapeKey(t *testing.T) {
	k1 := typedef.EntityKey("User", "1", 111)
	k2 := typedef.EntityKey("User", "1", 222)
	assert.NotEqual(t, k1, k2)

	k3 := typedef.EntityKey("User", "1", 111)
	assert.Equal(t, k1, k3)
}

func TestFormatDateParsesValidDate(t *testing.T) {
	fn, ok := typedef.LookupFormat("date")
	require.True(t, ok)

	v, err := fn("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, 2024, v.(interface{ Year() int }).Year())
}

func TestFormatIntegerRejectsNonIntegralFloat(t *testing.T) {
	fn, ok := typedef.LookupFormat("integer")
	require.True(t, ok)

	_, err := fn(float64(3.5))
	require.Error(t, err)
}

func TestRegisterFormatAddsCustomFormatter(t *testing.T) {
	typedef.RegisterFormat("upper-flag", func(raw interface{}) (interface{}, error) {
		return raw == "YES", nil
	})
	fn, ok := typedef.LookupFormat("upper-flag")
	require.True(t, ok)
	v, err := fn("YES")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}
