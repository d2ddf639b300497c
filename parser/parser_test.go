package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycache/domain/reactive"
	"querycache/domain/typedef"
	"querycache/entitystore"
	"querycache/parser"
)

func newTestContext() (*parser.Context, *reactive.Scheduler) {
	sched := reactive.NewScheduler()
	return &parser.Context{Store: entitystore.NewStore(sched)}, sched
}

func authorDef() *typedef.TypeDef {
	return typedef.Entity(map[string]*typedef.TypeDef{
		"id":   typedef.ID(),
		"name": typedef.String(),
	}, typedef.EntityOptions{TypenameValue: "Author"})
}

func postDef() *typedef.TypeDef {
	return typedef.Entity(map[string]*typedef.TypeDef{
		"id":     typedef.ID(),
		"title":  typedef.String(),
		"author": authorDef(),
		"tags":   typedef.Array(typedef.String()),
	}, typedef.EntityOptions{TypenameValue: "Post"})
}

func TestParseValuePrimitiveRejectsWrongType(t *testing.T) {
	ctx, sched := newTestContext()
	defer sched.Close()

	_, err := parser.ParseValue(ctx, 5, typedef.String(), nil)
	require.Error(t, err)
	var ve *parser.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestParseValueArrayDropsFailingElements(t *testing.T) {
	ctx, sched := newTestContext()
	defer sched.Close()

	def := typedef.Array(typedef.Number())
	parsed, err := parser.ParseValue(ctx, []interface{}{1.0, "bad", 3.0}, def, nil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, 3.0}, parsed)
}

func TestParseValueRecordFailsWholeOnBadEntry(t *testing.T) {
	ctx, sched := newTestContext()
	defer sched.Close()

	def := typedef.Record(typedef.Number())
	_, err := parser.ParseValue(ctx, map[string]interface{}{"a": 1.0, "b": "bad"}, def, nil)
	require.Error(t, err)
}

func TestParseValueObjectPreservesExtraFields(t *testing.T) {
	ctx, sched := newTestContext()
	defer sched.Close()

	def := typedef.Object(map[string]*typedef.TypeDef{"name": typedef.String()})
	parsed, err := parser.ParseValue(ctx, map[string]interface{}{"name": "Ada", "extra": 42.0}, def, nil)
	require.NoError(t, err)
	m := parsed.(map[string]interface{})
	assert.Equal(t, "Ada", m["name"])
	assert.Equal(t, 42.0, m["extra"])
}

func TestParseValueEntityPositionReturnsStableProxy(t *testing.T) {
	ctx, sched := newTestContext()
	defer sched.Close()
	def := authorDef()

	raw := map[string]interface{}{"id": "1", "name": "Ada"}
	p1, err := parser.ParseValue(ctx, raw, def, nil)
	require.NoError(t, err)
	p2, err := parser.ParseValue(ctx, raw, def, nil)
	require.NoError(t, err)

	assert.Same(t, p1.(*parser.Proxy), p2.(*parser.Proxy))
}

func TestProxyGetParsesAndCachesField(t *testing.T) {
	ctx, sched := newTestContext()
	defer sched.Close()
	def := authorDef()

	raw := map[string]interface{}{"id": "1", "name": "Ada"}
	parsed, err := parser.ParseValue(ctx, raw, def, nil)
	require.NoError(t, err)
	p := parsed.(*parser.Proxy)

	name, err := p.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)

	key := entitystore.NewKey("Author", "1", def)
	rec, ok := ctx.Store.Lookup(key)
	require.True(t, ok)
	cached, ok := rec.ParseCacheGet("name")
	require.True(t, ok)
	assert.Equal(t, "Ada", cached)
}

func TestWalkEntitiesCollectsRootAndChildRefs(t *testing.T) {
	ctx, sched := newTestContext()
	defer sched.Close()
	def := postDef()

	raw := map[string]interface{}{
		"id":    "10",
		"title": "Hello",
		"author": map[string]interface{}{
			"id":   "1",
			"name": "Ada",
		},
		"tags": []interface{}{"go", "cache"},
	}

	result, err := parser.WalkEntities(ctx, raw, def)
	require.NoError(t, err)
	require.Len(t, result.RootRefs, 1)

	postKey := entitystore.NewKey("Post", "10", def)
	authorKey := entitystore.NewKey("Author", "1", authorDef())

	assert.Equal(t, postKey, result.RootRefs[0])
	assert.Contains(t, result.ChildRefs, postKey)
	assert.Contains(t, result.ChildRefs[postKey], authorKey)
	assert.Contains(t, result.ChildRefs, authorKey)
	assert.Empty(t, result.ChildRefs[authorKey])
}

func TestWalkEntitiesHandlesArrayOfEntitiesAsRoot(t *testing.T) {
	ctx, sched := newTestContext()
	defer sched.Close()
	def := typedef.Array(authorDef())

	raw := []interface{}{
		map[string]interface{}{"id": "1", "name": "Ada"},
		map[string]interface{}{"id": "2", "name": "Grace"},
	}

	result, err := parser.WalkEntities(ctx, raw, def)
	require.NoError(t, err)
	assert.Len(t, result.RootRefs, 2)
}
