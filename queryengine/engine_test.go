package queryengine_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycache/domain/reactive"
	"querycache/domain/typedef"
	"querycache/entitystore"
	"querycache/parser"
	"querycache/querystore"
	"querycache/querystore/memkv"
	"querycache/queryengine"
)

var postDef = typedef.Entity(map[string]*typedef.TypeDef{
	"id":    typedef.ID(),
	"title": typedef.String(),
}, typedef.EntityOptions{TypenameValue: "Post", IDField: "id"})

type postParams struct{ id string }

func (p postParams) PathParams() map[string]string { return map[string]string{"id": p.id} }
func (p postParams) SearchParams() url.Values       { return nil }

type stubFetcher struct {
	bodies map[string]string
	calls  int
}

func (f *stubFetcher) Do(ctx context.Context, req queryengine.Request) (*queryengine.Response, error) {
	f.calls++
	body, ok := f.bodies[req.URL]
	if !ok {
		return &queryengine.Response{OK: false, Status: 404}, nil
	}
	return &queryengine.Response{OK: true, Status: 200, Body: []byte(body)}, nil
}

func newTestEngine(t *testing.T) (*queryengine.Engine, *reactive.Scheduler) {
	sched := reactive.NewScheduler()
	t.Cleanup(sched.Close)
	store := entitystore.NewStore(sched)
	pctx := &parser.Context{Store: store}
	persist := querystore.NewSyncStore(memkv.New(), nil, 50, 24*time.Hour)

	e := queryengine.NewEngine(queryengine.Config{
		Scheduler:     sched,
		Store:         store,
		ParserContext: pctx,
		Persist:       persist,
	})
	t.Cleanup(e.Close)
	return e, sched
}

func TestUseFetchesAndResolves(t *testing.T) {
	e, _ := newTestEngine(t)
	fetcher := &stubFetcher{bodies: map[string]string{
		"/posts/1": `{"id":"1","title":"Hello","__typename":"Post"}`,
	}}

	def := &queryengine.Definition[postParams, *parser.Proxy]{
		ID:           "getPost",
		PathTemplate: "/posts/[id]",
		ResponseDef:  postDef,
	}

	result, release := queryengine.Use(context.Background(), e, fetcher, def, postParams{id: "1"})
	defer release()

	require.Eventually(t, result.IsSettled, time.Second, time.Millisecond)
	assert.True(t, result.IsResolved())
	assert.Equal(t, 1, fetcher.calls)

	title, err := result.Value().Get("title")
	require.NoError(t, err)
	assert.Equal(t, "Hello", title)
}

func TestUseSharesInstanceForSameResolvedKey(t *testing.T) {
	e, _ := newTestEngine(t)
	fetcher := &stubFetcher{bodies: map[string]string{
		"/posts/1": `{"id":"1","title":"Hello","__typename":"Post"}`,
	}}
	def := &queryengine.Definition[postParams, *parser.Proxy]{
		ID:           "getPost",
		PathTemplate: "/posts/[id]",
		ResponseDef:  postDef,
		Cache:        queryengine.CacheOptions{StaleTime: time.Minute},
	}

	r1, release1 := queryengine.Use(context.Background(), e, fetcher, def, postParams{id: "1"})
	defer release1()
	require.Eventually(t, r1.IsSettled, time.Second, time.Millisecond)

	r2, release2 := queryengine.Use(context.Background(), e, fetcher, def, postParams{id: "1"})
	defer release2()

	assert.Equal(t, 1, fetcher.calls, "second Use for the same key should reuse the resolved instance rather than refetching")
	assert.True(t, r2.IsResolved())
}

func TestUseRejectsOnFetchFailureAfterNoRetries(t *testing.T) {
	e, _ := newTestEngine(t)
	fetcher := &stubFetcher{bodies: map[string]string{}}
	def := &queryengine.Definition[postParams, *parser.Proxy]{
		ID:           "getMissing",
		PathTemplate: "/posts/[id]",
		ResponseDef:  postDef,
	}

	result, release := queryengine.Use(context.Background(), e, fetcher, def, postParams{id: "404"})
	defer release()

	require.Eventually(t, result.IsSettled, time.Second, time.Millisecond)
	assert.True(t, result.IsRejected())
	assert.Error(t, result.Error())
}
