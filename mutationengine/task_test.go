package mutationengine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycache/domain/reactive"
	"querycache/domain/typedef"
	"querycache/entitystore"
	"querycache/mutationengine"
	"querycache/parser"
	"querycache/querystore"
	"querycache/querystore/memkv"
)

var postDef = typedef.Entity(map[string]*typedef.TypeDef{
	"id":    typedef.ID(),
	"title": typedef.String(),
}, typedef.EntityOptions{TypenameValue: "Post", IDField: "id"})

func newTestEngine(t *testing.T) (*mutationengine.Engine, *entitystore.Store) {
	sched := reactive.NewScheduler()
	t.Cleanup(sched.Close)
	store := entitystore.NewStore(sched)
	pctx := &parser.Context{Store: store}
	persist := querystore.NewSyncStore(memkv.New(), nil, 50, 24*time.Hour)

	e := mutationengine.NewEngine(mutationengine.Config{
		Scheduler:     sched,
		Store:         store,
		ParserContext: pctx,
		Persist:       persist,
	})
	return e, store
}

func seedPost(store *entitystore.Store, id, title string) entitystore.Key {
	key := entitystore.NewKey("Post", id, postDef)
	store.GetOrCreate(key, postDef)
	store.Merge(key, map[string]interface{}{"id": id, "title": title, "__typename": "Post"})
	return key
}

func TestRunAppliesOptimisticPatchThenCommitsConfirmedResponse(t *testing.T) {
	e, store := newTestEngine(t)
	key := seedPost(store, "1", "Before")

	def := &mutationengine.Definition[map[string]interface{}, *parser.Proxy]{
		ID:                "editPost",
		RequestDef:        postDef,
		ResponseDef:       postDef,
		OptimisticUpdates: true,
		MutateFn: func(ctx context.Context, request map[string]interface{}) (interface{}, error) {
			rec, ok := store.Lookup(key)
			require.True(t, ok)
			assert.Equal(t, "Optimistic", rec.Value()["title"], "optimistic patch should already be merged before MutateFn runs")
			return map[string]interface{}{"id": "1", "title": "Confirmed", "__typename": "Post"}, nil
		},
	}

	task := mutationengine.NewTask(e, def)
	result, err := task.Run(context.Background(), map[string]interface{}{"id": "1", "title": "Optimistic", "__typename": "Post"})
	require.NoError(t, err)
	require.NotNil(t, result)

	title, err := result.Get("title")
	require.NoError(t, err)
	assert.Equal(t, "Confirmed", title)

	rec, ok := store.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "Confirmed", rec.Value()["title"])
	assert.True(t, task.IsResolved())
}

func TestRunRevertsOptimisticPatchOnFailure(t *testing.T) {
	e, store := newTestEngine(t)
	key := seedPost(store, "1", "Before")

	boom := errors.New("boom")
	def := &mutationengine.Definition[map[string]interface{}, *parser.Proxy]{
		ID:                "editPost",
		RequestDef:        postDef,
		ResponseDef:       postDef,
		OptimisticUpdates: true,
		MutateFn: func(ctx context.Context, request map[string]interface{}) (interface{}, error) {
			return nil, boom
		},
	}

	task := mutationengine.NewTask(e, def)
	_, err := task.Run(context.Background(), map[string]interface{}{"id": "1", "title": "Optimistic", "__typename": "Post"})
	require.ErrorIs(t, err, boom)
	assert.True(t, task.IsRejected())

	rec, ok := store.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "Before", rec.Value()["title"], "a failed mutation must revert the entity to its pre-optimistic snapshot")
}

func TestResetRevertsPendingOptimisticUpdatesAndClearsState(t *testing.T) {
	e, store := newTestEngine(t)
	key := seedPost(store, "1", "Before")

	block := make(chan struct{})
	def := &mutationengine.Definition[map[string]interface{}, *parser.Proxy]{
		ID:                "editPost",
		RequestDef:        postDef,
		ResponseDef:       postDef,
		OptimisticUpdates: true,
		MutateFn: func(ctx context.Context, request map[string]interface{}) (interface{}, error) {
			<-block
			return map[string]interface{}{"id": "1", "title": "Confirmed", "__typename": "Post"}, nil
		},
	}

	task := mutationengine.NewTask(e, def)
	done := make(chan error, 1)
	go func() {
		_, err := task.Run(context.Background(), map[string]interface{}{"id": "1", "title": "Optimistic", "__typename": "Post"})
		done <- err
	}()

	require.Eventually(t, task.IsPending, time.Second, time.Millisecond)
	task.Reset()

	rec, ok := store.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "Before", rec.Value()["title"])

	close(block)
	<-done
}
