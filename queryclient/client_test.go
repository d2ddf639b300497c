package queryclient_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycache/domain/typedef"
	"querycache/mutationengine"
	"querycache/parser"
	"querycache/queryclient"
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

type stubFetcher struct{ calls int }

func (f *stubFetcher) Do(ctx context.Context, req queryengine.Request) (*queryengine.Response, error) {
	f.calls++
	return &queryengine.Response{
		OK:     true,
		Status: 200,
		Body:   []byte(`{"id":"1","title":"Hello","__typename":"Post"}`),
	}, nil
}

func newTestClient(fetcher queryengine.Fetcher) *queryclient.Client {
	return queryclient.New(queryclient.Config{
		KV:      memkv.New(),
		Fetcher: fetcher,
	})
}

func TestUseQueryReturnsContextErrorWithoutClient(t *testing.T) {
	_, _, err := queryclient.UseQuery[postParams, *parser.Proxy](context.Background(), nil, nil, postParams{})
	require.Error(t, err)
}

func TestUseQueryResolvesAgainstFetcher(t *testing.T) {
	fetcher := &stubFetcher{}
	c := newTestClient(fetcher)
	defer c.Close()

	def := &queryengine.Definition[postParams, *parser.Proxy]{
		ID:           "getPost",
		PathTemplate: "/posts/[id]",
		ResponseDef:  postDef,
	}

	result, release, err := queryclient.UseQuery(context.Background(), c, def, postParams{id: "1"})
	require.NoError(t, err)
	defer release()

	require.Eventually(t, func() bool { return result.IsResolved() }, time.Second, time.Millisecond)
	assert.Equal(t, 1, fetcher.calls)

	title, err := result.Value().Get("title")
	require.NoError(t, err)
	assert.Equal(t, "Hello", title)
}

func TestUseMutationRunsAgainstClient(t *testing.T) {
	c := newTestClient(&stubFetcher{})
	defer c.Close()

	def := &mutationengine.Definition[map[string]interface{}, *parser.Proxy]{
		ID:          "editPost",
		RequestDef:  postDef,
		ResponseDef: postDef,
		MutateFn: func(ctx context.Context, request map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"id": "1", "title": "Edited", "__typename": "Post"}, nil
		},
	}

	task, err := queryclient.UseMutation(c, def)
	require.NoError(t, err)

	result, err := task.Run(context.Background(), map[string]interface{}{"id": "1", "title": "Edited", "__typename": "Post"})
	require.NoError(t, err)

	title, err := result.Get("title")
	require.NoError(t, err)
	assert.Equal(t, "Edited", title)
}

func TestUseMutationReturnsContextErrorWithoutClient(t *testing.T) {
	_, err := queryclient.UseMutation[map[string]interface{}, *parser.Proxy](nil, nil)
	require.Error(t, err)
}
